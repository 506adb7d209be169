package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

var cols = Columns{
	Distance: "distance",
	Created:  "e.created_at",
	Updated:  "e.updated_at",
	Name:     "e.name",
	ID:       "e.id",
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"", DistanceAsc},
		{"distance", DistanceAsc},
		{"-distance", DistanceDesc},
		{"created_at", CreatedAsc},
		{"-created_at", CreatedDesc},
		{"updated_at", UpdatedAsc},
		{"-updated_at", UpdatedDesc},
		{"name", NameAsc},
		{" -NAME ", NameDesc},
		{"create_on_desc", CreatedDesc},
		{"-title", NameDesc},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("rank")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{DistanceAsc, "distance ASC"},
		{DistanceDesc, "distance DESC"},
		{CreatedAsc, "e.created_at ASC"},
		{CreatedDesc, "e.created_at DESC"},
		{UpdatedAsc, "e.updated_at ASC"},
		{UpdatedDesc, "e.updated_at DESC"},
		{NameAsc, "e.name ASC"},
		{NameDesc, "e.name DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			assert.Equal(t, []string{tt.want, "e.id ASC"}, tt.key.OrderBy(cols))
		})
	}

	t.Run("no tie-breaker without id column", func(t *testing.T) {
		assert.Equal(t, []string{"distance ASC"}, Default.OrderBy(Columns{Distance: "distance"}))
	})
}

func TestTextRoundTrip(t *testing.T) {
	for k := range names {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var got Key
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}
}
