package odometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerticesToSVGPath(t *testing.T) {
	tests := []struct {
		name     string
		vertices []Vertex
		want     string
	}{
		{"empty", nil, ""},
		{"single", []Vertex{{1, 2}}, "M 1,2 Z"},
		{"triangle", []Vertex{{0, 0}, {1, 0}, {1, 1}}, "M 0,0 L 1,0 L 1,1 Z"},
		{"fractions", []Vertex{{-0.25, 1.5}, {3.125, -2}}, "M -0.25,1.5 L 3.125,-2 Z"},
		{"negative zero", []Vertex{{math.Copysign(0, -1), 1}}, "M 0,1 Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerticesToSVGPath(tt.vertices); got != tt.want {
				t.Errorf("VerticesToSVGPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportRoom(t *testing.T) {
	params := Params{HullMargin: DefaultHullMargin, Jitter: fixedJitter(0.5)}

	t.Run("empty path", func(t *testing.T) {
		assert.Nil(t, ExportRoom("kitchen", nil, params))
		assert.Nil(t, ExportRoom("kitchen", pathOf(1, 1), params))
	})

	t.Run("square", func(t *testing.T) {
		path := pathOf(0, 0, 4, 0, 4, 4, 0, 4)
		room := ExportRoom("", path, params)
		require.NotNil(t, room)

		assert.Equal(t, DefaultRoomName, room.Name)
		assert.Equal(t, "M 0,0 L 4,0 L 4,4 L 0,4 Z", room.SVGPath)
		assert.Equal(t, WallHeight, room.WallHeight)
		assert.Equal(t, path, room.PathHistory)
		assert.Empty(t, room.Installations)
	})

	t.Run("json shape", func(t *testing.T) {
		room := ExportRoom("Garage", pathOf(0, 0, 1, 0, 1, 1), params)
		require.NotNil(t, room)

		out, err := json.Marshal(room)
		require.NoError(t, err)

		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(out, &fields))
		for _, key := range []string{"name", "svg_path", "vertices", "wall_height", "installations", "pathHistory"} {
			assert.Contains(t, fields, key)
		}
		assert.JSONEq(t, `[]`, string(fields["installations"]))
		assert.JSONEq(t, `"Garage"`, string(fields["name"]))
	})
}

func TestNewRoom_KeepsName(t *testing.T) {
	data := SimpleMap(pathOf(0, 0, 1, 1), 0)
	room := NewRoom("Office", data)
	assert.Equal(t, "Office", room.Name)
	assert.Equal(t, data.Vertices, room.Vertices)
}
