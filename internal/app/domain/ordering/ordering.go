// Package ordering maps the closed set of list orderings onto SQL ORDER BY
// terms. Every list endpoint resolves its ordering here.
package ordering

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

type Key int

const (
	DistanceAsc Key = iota
	DistanceDesc
	CreatedAsc
	CreatedDesc
	UpdatedAsc
	UpdatedDesc
	NameAsc
	NameDesc
)

// Default is applied when the caller does not choose an ordering.
const Default = DistanceAsc

var names = map[Key]string{
	DistanceAsc:  "distance",
	DistanceDesc: "-distance",
	CreatedAsc:   "created_at",
	CreatedDesc:  "-created_at",
	UpdatedAsc:   "updated_at",
	UpdatedDesc:  "-updated_at",
	NameAsc:      "name",
	NameDesc:     "-name",
}

// aliases accepted from older clients.
var aliases = map[string]Key{
	"distance_desc":  DistanceDesc,
	"create_on":      CreatedAsc,
	"create_on_desc": CreatedDesc,
	"update_on":      UpdatedAsc,
	"update_on_desc": UpdatedDesc,
	"name_desc":      NameDesc,
	"title":          NameAsc,
	"-title":         NameDesc,
}

func (k Key) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("ordering(%d)", int(k))
}

// Parse resolves a query-string ordering. An empty string yields Default.
func Parse(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	for k, name := range names {
		if name == s {
			return k, nil
		}
	}
	if k, ok := aliases[s]; ok {
		return k, nil
	}
	return Default, fmt.Errorf("unknown ordering %q: %w", s, models.ErrValidation)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Columns names the sortable expressions of one entity. Distance is usually
// the projected alias of the shared distance expression.
type Columns struct {
	Distance string
	Created  string
	Updated  string
	Name     string
	ID       string
}

// OrderBy returns the ORDER BY terms for k. ID, when set, is appended as a
// tie-breaker so that offset pagination is deterministic.
func (k Key) OrderBy(cols Columns) []string {
	var col, dir string
	switch k {
	case DistanceAsc:
		col, dir = cols.Distance, "ASC"
	case DistanceDesc:
		col, dir = cols.Distance, "DESC"
	case CreatedAsc:
		col, dir = cols.Created, "ASC"
	case CreatedDesc:
		col, dir = cols.Created, "DESC"
	case UpdatedAsc:
		col, dir = cols.Updated, "ASC"
	case UpdatedDesc:
		col, dir = cols.Updated, "DESC"
	case NameAsc:
		col, dir = cols.Name, "ASC"
	case NameDesc:
		col, dir = cols.Name, "DESC"
	default:
		col, dir = cols.Distance, "ASC"
	}

	terms := []string{col + " " + dir}
	if cols.ID != "" {
		terms = append(terms, cols.ID+" ASC")
	}
	return terms
}
