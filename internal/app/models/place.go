package models

import "time"

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PlaceKind names the geo-tagged entity families that share the nearby engine.
type PlaceKind string

const (
	KindLocation PlaceKind = "location"
	KindPlaying  PlaceKind = "playing"
	KindEating   PlaceKind = "eating"
)

// Place is the persisted shape shared by locations, playings and eatings.
// Category and Description are only populated for locations.
type Place struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Category     *int32    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	DiscovererID int64     `json:"discoverer"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p Place) Point() Point {
	return Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// NearbyHit is one row of a nearby page: the place and its distance in metres
// from the query center, as computed by the same expression used to filter and order.
type NearbyHit struct {
	Place    Place
	Distance float64
}

// NearbyLocation is the hydrated location tuple returned by the locations endpoints.
type NearbyLocation struct {
	Location   Place          `json:"location"`
	Discoverer *Discoverer    `json:"discoverer"`
	Equipments []Equipment    `json:"equipments"`
	Photos     []Upload       `json:"photos"`
	Distance   float64        `json:"distance"`
	Rank       *RankAggregate `json:"rank"`
}

// NearbyPlace is the hydrated tuple for playings and eatings.
type NearbyPlace struct {
	Place      Place       `json:"place"`
	Discoverer *Discoverer `json:"discoverer"`
	Photos     []Upload    `json:"photos"`
	Distance   float64     `json:"distance"`
}

type Equipment struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	IsRequired bool      `json:"is_required"`
	Usage      string    `json:"usage"`
	LocationID int64     `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateLocationRequest struct {
	Name        string  `json:"name" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    *int32  `json:"category"`
	Description string  `json:"description"`
	Photos      []int64 `json:"photos"`
}

// UpdateLocationRequest replaces every mutable field and the full photo set.
type UpdateLocationRequest struct {
	Name        string  `json:"name" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    *int32  `json:"category"`
	Description string  `json:"description"`
	Photos      []int64 `json:"photos"`
}

type CreatePlaceRequest struct {
	Name      string  `json:"name" binding:"required"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Photos    []int64 `json:"photos"`
}

type AddEquipmentRequest struct {
	Name       string `json:"name" binding:"required"`
	IsRequired bool   `json:"is_required"`
	Usage      string `json:"usage"`
}

// ListResponse is the envelope of every paginated endpoint.
type ListResponse[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
}
