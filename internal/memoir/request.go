package memoir

import "time"

// TimeRange bounds memory selection. Both ends are inclusive; a zero end
// means unbounded on that side.
type TimeRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// IsZero reports whether no bound is set.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Request describes one story or gallery generation run. AvailableMemories is
// the candidate pool; everything else narrows or shapes the selection.
type Request struct {
	AvailableMemories []Memory      `json:"available_memories"`
	Query             string        `json:"query,omitempty"`
	Theme             string        `json:"theme,omitempty"`
	Mode              NarrativeMode `json:"narrative_mode,omitempty"`
	Style             string        `json:"narrative_style,omitempty"`
	MaxResults        int           `json:"max_results,omitempty"`
	TimeRange         TimeRange     `json:"time_range,omitzero"`
}
