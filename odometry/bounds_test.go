package odometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomBounds(t *testing.T) {
	assert.Nil(t, NewRoomBounds(nil))
	assert.Nil(t, NewRoomBounds([]Vertex{{0, 0}, {1, 1}}))

	square := []Vertex{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	rb := NewRoomBounds(square)
	require.NotNil(t, rb)

	assert.Equal(t, 0.0, rb.MinX)
	assert.Equal(t, 2.0, rb.MaxX)
	assert.Equal(t, 0.0, rb.MinY)
	assert.Equal(t, 2.0, rb.MaxY)

	square[0].X = -10
	assert.Equal(t, 0.0, rb.Vertices[0].X, "vertices are copied")
}

func TestRoomBounds_Contains(t *testing.T) {
	rb := NewRoomBounds([]Vertex{{0, 0}, {2, 0}, {2, 2}, {0, 2}})
	require.NotNil(t, rb)

	tests := []struct {
		p    Vertex
		want bool
	}{
		{Vertex{1, 1}, true},
		{Vertex{0.1, 1.9}, true},
		{Vertex{3, 3}, false},
		{Vertex{-0.5, 1}, false},
		{Vertex{1, 2.5}, false},
	}
	for _, tt := range tests {
		if got := rb.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestArea(t *testing.T) {
	assert.Equal(t, 0.0, Area(nil))
	assert.Equal(t, 0.0, Area([]Vertex{{0, 0}, {1, 0}}))
	assert.InDelta(t, 4.0, Area([]Vertex{{0, 0}, {2, 0}, {2, 2}, {0, 2}}), 1e-12)
	assert.InDelta(t, 4.0, Area([]Vertex{{0, 2}, {2, 2}, {2, 0}, {0, 0}}), 1e-12, "clockwise")
	assert.InDelta(t, 0.5, Area([]Vertex{{0, 0}, {1, 0}, {0, 1}}), 1e-12)
}
