// Package geo decides whether a point lies within a radius of a center and
// renders the same decision as a bound-parameter SQL predicate over the
// earthdistance extension.
package geo

import (
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

// EarthRadius is the sphere radius in metres used by earthdistance's earth().
// Distances computed here and in SQL agree because both use it.
const EarthRadius = 6378168.0

// boxPad widens the bounding box by roughly a centimetre so that float
// round-trips through radians never drop a point on the edge.
const boxPad = 1e-7

// Distance returns the great-circle distance in metres between a and b.
func Distance(a, b models.Point) float64 {
	return orbgeo.DistanceHaversine(toOrb(a), toOrb(b)) * EarthRadius / orb.EarthRadius
}

// Within reports whether p lies within radius metres of center, inclusive.
// It is the Go form of WithinSQL; the nearby engine checks scanned rows
// against it.
func Within(p, center models.Point, radius float64) bool {
	if radius < 0 {
		return false
	}
	if p == center {
		return true
	}
	return Distance(p, center) <= radius
}

// ValidatePoint rejects coordinates outside the WGS84 range.
func ValidatePoint(p models.Point) error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range: %w", p.Latitude, models.ErrValidation)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range: %w", p.Longitude, models.ErrValidation)
	}
	return nil
}

// ValidateRadius rejects negative and non-finite radii.
func ValidateRadius(radius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return fmt.Errorf("radius %v must be a finite non-negative number: %w", radius, models.ErrValidation)
	}
	return nil
}

// Box is a latitude/longitude rectangle containing every point within a
// radius of its center. HasLongitude is false when the longitude span wraps
// the antimeridian or covers a pole, in which case only the latitude range
// constrains.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	HasLongitude   bool
}

// BoundingBox returns a Box that is a superset of Within(., center, radius).
// The angular radius is computed with orb's smaller earth radius, which only
// widens the box.
func BoundingBox(center models.Point, radius float64) (Box, bool) {
	if radius >= math.Pi*orb.EarthRadius/2 {
		return Box{}, false
	}
	b := orbgeo.NewBoundAroundPoint(toOrb(center), radius)

	box := Box{
		MinLat: math.Max(b.Min.Lat()-boxPad, -90),
		MaxLat: math.Min(b.Max.Lat()+boxPad, 90),
	}
	if math.IsNaN(box.MinLat) || math.IsNaN(box.MaxLat) {
		return Box{}, false
	}

	minLon, maxLon := b.Min.Lon(), b.Max.Lon()
	if !math.IsNaN(minLon) && !math.IsNaN(maxLon) && minLon <= maxLon && maxLon-minLon < 360 {
		box.MinLon = math.Max(minLon-boxPad, -180)
		box.MaxLon = math.Min(maxLon+boxPad, 180)
		box.HasLongitude = box.MinLon > -180 || box.MaxLon < 180
	}
	return box, true
}

// Contains reports whether p lies inside the box. It mirrors the BETWEEN
// prefilter of WithinSQL.
func (b Box) Contains(p models.Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if !b.HasLongitude {
		return true
	}
	return p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

// Columns names the coordinate columns of a table alias. The names are
// program constants, never user input.
type Columns struct {
	Latitude  string
	Longitude string
}

// DistanceSQL is the single distance expression used for filtering,
// ordering and projection. The center is always bound.
func DistanceSQL(center models.Point, cols Columns) sq.Sqlizer {
	return sq.Expr(
		fmt.Sprintf("earth_distance(ll_to_earth(?, ?), ll_to_earth(%s, %s))", cols.Latitude, cols.Longitude),
		center.Latitude, center.Longitude,
	)
}

// WithinSQL renders the radius predicate: an index-friendly bounding box
// prefilter followed by the precise distance check.
func WithinSQL(center models.Point, radius float64, cols Columns) sq.Sqlizer {
	distanceSQL, distanceArgs, _ := DistanceSQL(center, cols).ToSql()
	precise := sq.Expr(distanceSQL+" <= ?", append(distanceArgs, radius)...)

	box, ok := BoundingBox(center, radius)
	if !ok {
		return precise
	}
	pred := sq.And{
		sq.Expr(cols.Latitude+" BETWEEN ? AND ?", box.MinLat, box.MaxLat),
	}
	if box.HasLongitude {
		pred = append(pred, sq.Expr(cols.Longitude+" BETWEEN ? AND ?", box.MinLon, box.MaxLon))
	}
	return append(pred, precise)
}

func toOrb(p models.Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
