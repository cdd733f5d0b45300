package render

import (
	"fmt"
	"math"
)

// ViewAll is the sentinel view name expanded to the canonical set.
const ViewAll = "all"

// CanonicalViews is the fixed set substituted for the "all" sentinel.
// Order is significant: callers depend on output ordering.
var CanonicalViews = []string{"front", "back", "left", "right", "top", "bottom"}

// ViewDescriptor is a resolved, concrete camera placement. Named views
// carry only a label; turntable frames carry an explicit angle.
type ViewDescriptor struct {
	Label string
	Name  string
	Angle float64
	Frame int
}

// Turntable reports whether the descriptor is a computed rotation
// frame rather than a named view.
func (v ViewDescriptor) Turntable() bool {
	return v.Name == ""
}

// ExpandViews maps a requested view list to concrete descriptors. The
// "all" sentinel is replaced in place by CanonicalViews; any other
// name passes through unvalidated — unknown views surface later as
// per-view capture errors, so expansion never fails.
func ExpandViews(requested []string) []ViewDescriptor {
	if len(requested) == 0 {
		requested = []string{"front"}
	}

	var out []ViewDescriptor
	for _, name := range requested {
		if name == ViewAll {
			for _, canonical := range CanonicalViews {
				out = append(out, ViewDescriptor{Label: canonical, Name: canonical})
			}
			continue
		}
		out = append(out, ViewDescriptor{Label: name, Name: name})
	}
	return out
}

// TurntableFrames computes the rotation sequence for a full revolution
// over the given duration and frame rate. Frame i sits at angle
// i*(360/totalFrames) degrees.
func TurntableFrames(duration float64, fps int) []ViewDescriptor {
	totalFrames := int(math.Round(duration * float64(fps)))
	if totalFrames < 1 {
		totalFrames = 1
	}
	angleStep := 360.0 / float64(totalFrames)

	out := make([]ViewDescriptor, 0, totalFrames)
	for i := 0; i < totalFrames; i++ {
		out = append(out, ViewDescriptor{
			Label: fmt.Sprintf("frame_%04d", i),
			Angle: float64(i) * angleStep,
			Frame: i,
		})
	}
	return out
}
