package odometry

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestPathAccumulator_EvictionBound(t *testing.T) {
	acc := NewPathAccumulator(DefaultMaxPathHistory)

	total := DefaultMaxPathHistory + 50
	for i := 0; i < total; i++ {
		acc.Add(PathPoint{X: float64(i), Timestamp: int64(i)})
	}

	if acc.Len() != DefaultMaxPathHistory {
		t.Fatalf("Len() = %d, want %d", acc.Len(), DefaultMaxPathHistory)
	}

	points := acc.Points()
	for i, p := range points {
		want := float64(50 + i)
		if p.X != want {
			t.Fatalf("Points()[%d].X = %v, want %v", i, p.X, want)
		}
	}

	last, ok := acc.Last()
	assert.True(t, ok)
	assert.Equal(t, float64(total-1), last.X)
}

func TestPathAccumulator_SmallRing(t *testing.T) {
	acc := NewPathAccumulator(3)

	_, ok := acc.Last()
	assert.False(t, ok, "Last() on empty accumulator")

	for i := 1; i <= 5; i++ {
		acc.Add(PathPoint{X: float64(i)})
	}

	want := []PathPoint{{X: 3}, {X: 4}, {X: 5}}
	if diff := cmp.Diff(want, acc.Points()); diff != "" {
		t.Errorf("Points() mismatch (-want +got):\n%s", diff)
	}

	last, _ := acc.Last()
	assert.Equal(t, 5.0, last.X)
	assert.Equal(t, 3, acc.Cap())
}

func TestPathAccumulator_PointsIsCopy(t *testing.T) {
	acc := NewPathAccumulator(10)
	acc.Add(PathPoint{X: 1})

	points := acc.Points()
	points[0].X = 99

	assert.Equal(t, 1.0, acc.Points()[0].X)
}

func TestPathAccumulator_AddPoseStampsTime(t *testing.T) {
	acc := NewPathAccumulator(10)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	acc.Now = func() time.Time { return fixed }

	acc.AddPose(1.5, -2, 0.25)

	want := PathPoint{X: 1.5, Y: -2, Theta: 0.25, Timestamp: fixed.UnixMilli()}
	assert.Equal(t, []PathPoint{want}, acc.Points())
}

func TestPathAccumulator_Reset(t *testing.T) {
	acc := NewPathAccumulator(2)
	acc.Add(PathPoint{X: 1})
	acc.Add(PathPoint{X: 2})
	acc.Add(PathPoint{X: 3})

	acc.Reset()
	assert.Equal(t, 0, acc.Len())
	assert.Empty(t, acc.Points())

	acc.Add(PathPoint{X: 7})
	assert.Equal(t, []PathPoint{{X: 7}}, acc.Points())
}

func TestNewPathAccumulator_DefaultCap(t *testing.T) {
	assert.Equal(t, DefaultMaxPathHistory, NewPathAccumulator(0).Cap())
	assert.Equal(t, DefaultMaxPathHistory, NewPathAccumulator(-5).Cap())
}
