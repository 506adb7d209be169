package nearby

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

// Clause is one conjunct of a query spec. The count query and the page query
// are both rendered from the same clause list.
type Clause interface {
	where(k Kind) (sq.Sqlizer, error)
}

// NameContains matches a case-insensitive substring of the entity name.
type NameContains string

// CategoryIs matches the location category exactly.
type CategoryIs int32

// OwnerIs matches the discoverer.
type OwnerIs int64

// CreatedFrom matches entities created at or after the instant.
type CreatedFrom time.Time

// CreatedUntil matches entities created at or before the instant.
type CreatedUntil time.Time

// IDIs matches a single entity.
type IDIs int64

// Within matches entities at most Radius metres from Center.
type Within struct {
	Center models.Point
	Radius float64
}

func (c NameContains) where(k Kind) (sq.Sqlizer, error) {
	return sq.ILike{k.col("name"): "%" + EscapeLike(string(c)) + "%"}, nil
}

func (c CategoryIs) where(k Kind) (sq.Sqlizer, error) {
	if !k.HasCategory {
		return nil, fmt.Errorf("%s has no category: %w", k.Name, models.ErrValidation)
	}
	return sq.Eq{k.col("category"): int32(c)}, nil
}

func (c OwnerIs) where(k Kind) (sq.Sqlizer, error) {
	return sq.Eq{k.col("discoverer_id"): int64(c)}, nil
}

func (c CreatedFrom) where(k Kind) (sq.Sqlizer, error) {
	return sq.GtOrEq{k.col("created_at"): time.Time(c)}, nil
}

func (c CreatedUntil) where(k Kind) (sq.Sqlizer, error) {
	return sq.LtOrEq{k.col("created_at"): time.Time(c)}, nil
}

func (c IDIs) where(k Kind) (sq.Sqlizer, error) {
	return sq.Eq{k.col("id"): int64(c)}, nil
}

func (c Within) where(k Kind) (sq.Sqlizer, error) {
	if err := geo.ValidatePoint(c.Center); err != nil {
		return nil, err
	}
	if err := geo.ValidateRadius(c.Radius); err != nil {
		return nil, err
	}
	return geo.WithinSQL(c.Center, c.Radius, k.geoColumns()), nil
}

// Filter is the caller-facing set of optional filters. Zero values mean
// "no constraint".
type Filter struct {
	Name          string
	Category      *int32
	OwnerID       *int64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Clauses converts the filter into spec clauses in a stable order.
func (f Filter) Clauses() []Clause {
	var clauses []Clause
	if name := NormalizeName(f.Name); name != "" {
		clauses = append(clauses, NameContains(name))
	}
	if f.Category != nil {
		clauses = append(clauses, CategoryIs(*f.Category))
	}
	if f.OwnerID != nil {
		clauses = append(clauses, OwnerIs(*f.OwnerID))
	}
	if f.CreatedAfter != nil {
		clauses = append(clauses, CreatedFrom(*f.CreatedAfter))
	}
	if f.CreatedBefore != nil {
		clauses = append(clauses, CreatedUntil(*f.CreatedBefore))
	}
	return clauses
}

// Spec is a center plus the conjunction of its clauses. The center is what
// the projected distance is measured from, whether or not a Within clause
// is present.
type Spec struct {
	Center  models.Point
	Clauses []Clause
}

func (s Spec) where(k Kind) (sq.And, error) {
	pred := sq.And{}
	for _, c := range s.Clauses {
		w, err := c.where(k)
		if err != nil {
			return nil, err
		}
		pred = append(pred, w)
	}
	return pred, nil
}

// NormalizeName trims and NFC-normalizes a name so that composed and
// decomposed forms compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so user input only matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
