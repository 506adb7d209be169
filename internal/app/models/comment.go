package models

import "time"

const (
	MinRank int32 = 1
	MaxRank int32 = 5
)

type Comment struct {
	ID         int64     `json:"id"`
	Rank       int32     `json:"rank"`
	Content    string    `json:"content"`
	UserID     int64     `json:"user"`
	LocationID int64     `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RankAggregate holds the running sum and count of comment ranks of a location.
type RankAggregate struct {
	ID         int64     `json:"id"`
	Total      int64     `json:"total"`
	Count      int64     `json:"count"`
	LocationID int64     `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a RankAggregate) Average() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.Total) / float64(a.Count)
}

type CommentRequest struct {
	Rank    int32  `json:"rank"`
	Content string `json:"content"`
}

// UpsertResult reports which branch the rank transaction took and the
// aggregate as committed.
type UpsertResult struct {
	CommentID int64         `json:"comment_id"`
	Created   bool          `json:"created"`
	Aggregate RankAggregate `json:"aggregate"`
}

type CommentFilter struct {
	LocationID int64
	RankGT     *int32
	RankLT     *int32
	Limit      int
	Offset     int
}

type Memory struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	OwnerID    int64     `json:"owner"`
	LocationID int64     `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type MemoryItem struct {
	Memory   Memory   `json:"memory"`
	Photos   []Upload `json:"photos"`
	Distance float64  `json:"distance"`
}

type CreateMemoryRequest struct {
	Title   string  `json:"title" binding:"required"`
	Content string  `json:"content"`
	Photos  []int64 `json:"photos"`
}

// MemoryFilter narrows a memory listing. Nil fields and an empty Title are
// unconstrained.
type MemoryFilter struct {
	LocationID    *int64
	OwnerID       *int64
	Title         string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
