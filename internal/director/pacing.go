package director

import "github.com/fyrsmithlabs/storyloom/internal/memoir"

// Pacing profile multipliers keyed by the configured profile name.
var pacingProfiles = map[string]float64{
	"slow":     1.25,
	"moderate": 1.0,
	"fast":     0.8,
}

// Position-zone multipliers: openings breathe, the middle tightens, the
// ending returns to neutral.
const (
	openingZoneEnd = 0.3
	middleZoneEnd  = 0.7

	openingMultiplier = 1.2
	middleMultiplier  = 0.9
	closingMultiplier = 1.0
)

// ApplyPacing adjusts every chapter duration by the position-zone curve
// times the configured profile multiplier, then clamps into the chapter
// duration bounds. The clamp is unconditional: whatever the curve does, the
// result lies in [MinChapterDuration, MaxChapterDuration].
func (d *Director) ApplyPacing(chapters []memoir.Chapter) []memoir.Chapter {
	if len(chapters) == 0 {
		return chapters
	}

	profile, ok := pacingProfiles[d.cfg.Pacing]
	if !ok {
		profile = pacingProfiles["moderate"]
	}

	out := make([]memoir.Chapter, len(chapters))
	copy(out, chapters)
	n := float64(len(out))
	for i := range out {
		multiplier := zoneMultiplier(float64(i)/n) * profile
		out[i].DurationSeconds = d.clampDuration(out[i].DurationSeconds * multiplier)
	}
	return out
}

// zoneMultiplier maps a position fraction to its pacing zone.
func zoneMultiplier(fraction float64) float64 {
	switch {
	case fraction < openingZoneEnd:
		return openingMultiplier
	case fraction < middleZoneEnd:
		return middleMultiplier
	default:
		return closingMultiplier
	}
}

func (d *Director) clampDuration(dur float64) float64 {
	if dur < d.cfg.MinChapterDuration {
		return d.cfg.MinChapterDuration
	}
	if dur > d.cfg.MaxChapterDuration {
		return d.cfg.MaxChapterDuration
	}
	return dur
}
