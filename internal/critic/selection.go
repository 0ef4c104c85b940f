package critic

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

const (
	snippetLength        = 50
	snippetRepeatLimit   = 0.7
	selectionBaseQuality = 0.8
	diversityPenalty     = 0.2
)

// ReviewSelection gates a memory selection before narration. It flags
// selections that cluster in a single time period or repeat the same
// content, and runs the safety rules over each memory's text.
func (c *Critic) ReviewSelection(ctx context.Context, memories []memoir.Memory) memoir.ReviewResult {
	if len(memories) == 0 {
		return c.newResult(false, []string{"no memories selected"}, 0, map[string]string{
			"input_kind": string(pipeline.KindMemories),
		})
	}

	var issues []string
	quality := selectionBaseQuality

	for i, m := range memories {
		for _, s := range c.safetyIssues(m.Text) {
			issues = append(issues, "memory "+strconv.Itoa(i+1)+": "+s)
		}
	}

	if len(memories) > 1 {
		if period, same := samePeriod(memories); same {
			issues = append(issues, "all selected memories fall in the same time period ("+period+")")
			quality -= diversityPenalty
		}
		if ratio := snippetRepetition(memories); ratio > snippetRepeatLimit {
			issues = append(issues, "low content diversity: "+
				strconv.Itoa(int(ratio*100))+"% of memories open with the same text")
			quality -= diversityPenalty
		}
	}

	quality -= 0.2 * float64(countSafety(issues))
	if quality < 0 {
		quality = 0
	}

	approved := len(issues) == 0 && quality >= c.cfg.MinQuality

	c.log.Debug(ctx, "selection reviewed",
		zap.Int("memories", len(memories)),
		zap.Int("issues", len(issues)),
		zap.Bool("approved", approved),
	)

	return c.newResult(approved, issues, quality, map[string]string{
		"input_kind":   string(pipeline.KindMemories),
		"memory_count": strconv.Itoa(len(memories)),
	})
}

// samePeriod reports whether every memory shares the same calendar month.
func samePeriod(memories []memoir.Memory) (string, bool) {
	first := memories[0].Timestamp.Format("2006-01")
	for _, m := range memories[1:] {
		if m.Timestamp.Format("2006-01") != first {
			return "", false
		}
	}
	return first, true
}

// snippetRepetition returns the share of memories whose leading text
// matches the most common leading snippet.
func snippetRepetition(memories []memoir.Memory) float64 {
	counts := make(map[string]int, len(memories))
	for _, m := range memories {
		counts[leadingSnippet(m.Text)]++
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	return float64(max) / float64(len(memories))
}

func leadingSnippet(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if len(s) > snippetLength {
		s = s[:snippetLength]
	}
	return s
}

func countSafety(issues []string) int {
	n := 0
	for _, issue := range issues {
		if strings.Contains(issue, IssueDiagnosticLanguage) ||
			strings.Contains(issue, IssueImpersonation) ||
			strings.Contains(issue, IssueSensitiveData) {
			n++
		}
	}
	return n
}
