package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandViews_AllSentinel(t *testing.T) {
	views := ExpandViews([]string{"all"})

	require.Len(t, views, 6)
	want := []string{"front", "back", "left", "right", "top", "bottom"}
	for i, v := range views {
		assert.Equal(t, want[i], v.Name)
		assert.Equal(t, want[i], v.Label)
		assert.False(t, v.Turntable())
	}
}

func TestExpandViews_PassThrough(t *testing.T) {
	views := ExpandViews([]string{"front", "custom"})

	require.Len(t, views, 2)
	assert.Equal(t, "front", views[0].Name)
	// Unknown names are not validated here; they fail at capture time.
	assert.Equal(t, "custom", views[1].Name)
}

func TestExpandViews_SentinelInPlace(t *testing.T) {
	views := ExpandViews([]string{"custom", "all"})

	require.Len(t, views, 7)
	assert.Equal(t, "custom", views[0].Name)
	assert.Equal(t, "front", views[1].Name)
	assert.Equal(t, "bottom", views[6].Name)
}

func TestExpandViews_DefaultsToFront(t *testing.T) {
	views := ExpandViews(nil)

	require.Len(t, views, 1)
	assert.Equal(t, "front", views[0].Name)
}

func TestTurntableFrames_Count(t *testing.T) {
	frames := TurntableFrames(2, 10)

	require.Len(t, frames, 20)
	for i, f := range frames {
		assert.Equal(t, i, f.Frame)
		assert.InDelta(t, float64(i)*18.0, f.Angle, 1e-9)
		assert.True(t, f.Turntable())
	}
	assert.Equal(t, "frame_0000", frames[0].Label)
	assert.Equal(t, "frame_0019", frames[19].Label)
}

func TestTurntableFrames_AtLeastOne(t *testing.T) {
	frames := TurntableFrames(0.01, 1)

	require.Len(t, frames, 1)
	assert.Equal(t, 0.0, frames[0].Angle)
}
