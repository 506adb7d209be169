package nearby

import (
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

const alias = "e"

// Kind describes one geo-tagged table the engine can search.
type Kind struct {
	Name        models.PlaceKind
	Table       string
	HasCategory bool
}

var (
	Locations = Kind{Name: models.KindLocation, Table: "locations", HasCategory: true}
	Playings  = Kind{Name: models.KindPlaying, Table: "playings"}
	Eatings   = Kind{Name: models.KindEating, Table: "eatings"}
)

func (k Kind) col(name string) string {
	return alias + "." + name
}

func (k Kind) from() string {
	return k.Table + " AS " + alias
}

func (k Kind) geoColumns() geo.Columns {
	return geo.Columns{Latitude: k.col("latitude"), Longitude: k.col("longitude")}
}

func (k Kind) orderColumns() ordering.Columns {
	return ordering.Columns{
		Distance: "distance",
		Created:  k.col("created_at"),
		Updated:  k.col("updated_at"),
		Name:     k.col("name"),
		ID:       k.col("id"),
	}
}

// columns is the uniform projection scanned into models.Place. Kinds without
// a category project NULL and an empty description.
func (k Kind) columns() []string {
	category, description := "NULL::integer AS category", "''::text AS description"
	if k.HasCategory {
		category, description = k.col("category"), k.col("description")
	}
	return []string{
		k.col("id"),
		k.col("name"),
		k.col("latitude"),
		k.col("longitude"),
		category,
		description,
		k.col("discoverer_id"),
		k.col("created_at"),
		k.col("updated_at"),
	}
}
