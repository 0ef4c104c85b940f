package coordinator

import (
	"fmt"

	"github.com/fyrsmithlabs/storyloom/internal/memoir"
)

// ValidateRequest runs pre-flight checks on a workflow request. Failures
// come back as an issue list and never abort the caller.
func (c *Coordinator) ValidateRequest(req *memoir.Request) (bool, []string) {
	var issues []string

	if req == nil {
		return false, []string{"request is nil"}
	}
	if len(req.AvailableMemories) == 0 {
		issues = append(issues, "available_memories must be present and non-empty")
	}
	for i, m := range req.AvailableMemories {
		if m.ID == "" {
			issues = append(issues, fmt.Sprintf("memory %d: missing id", i+1))
		}
		if m.Timestamp.IsZero() {
			issues = append(issues, fmt.Sprintf("memory %d: missing timestamp", i+1))
		}
		if m.NarrativeSignificance < 0 || m.NarrativeSignificance > 1 {
			issues = append(issues, fmt.Sprintf("memory %d: narrative_significance %v outside [0,1]", i+1, m.NarrativeSignificance))
		}
		if m.StoryPotential < 0 || m.StoryPotential > 1 {
			issues = append(issues, fmt.Sprintf("memory %d: story_potential %v outside [0,1]", i+1, m.StoryPotential))
		}
	}
	if req.Mode != "" && !req.Mode.Valid() {
		issues = append(issues, fmt.Sprintf("narrative_mode %q is not one of %v", req.Mode, memoir.AllModes()))
	}
	if req.MaxResults < 0 {
		issues = append(issues, "max_results must be a positive integer")
	}
	if !req.TimeRange.IsZero() && req.TimeRange.End.Before(req.TimeRange.Start) {
		issues = append(issues, "time_range end precedes start")
	}

	return len(issues) == 0, issues
}
