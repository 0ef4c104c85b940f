// Package critic implements the final safety and quality gate of the
// storyloom pipeline. Every reviewable artifact — a story, a chapter, a
// memory selection, free text, or a request — yields a ReviewResult with an
// approval verdict, itemized issues, and a quality score.
//
// Approval is strict: zero issues and an overall quality score at or above
// the configured minimum. Disapproval is advisory; the coordinator decides
// what to do with a rejected story.
package critic

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

// ReviewerName identifies this gate in review results.
const ReviewerName = "critic"

// Issue labels. Tests and the coordinator's fix pass match on these.
const (
	IssueDiagnosticLanguage = "diagnostic language"
	IssueImpersonation      = "narrator impersonation"
	IssueSensitiveData      = "sensitive data"
)

// Structural bounds for chapters and stories.
const (
	minChapterDuration = 5.0
	maxChapterDuration = 600.0
	maxTotalDuration   = 3600.0
	maxTitleLength     = 120
	maxSentenceCount   = 50
)

// Critic is the review stage.
type Critic struct {
	cfg config.CriticConfig
	log *logging.Logger

	diagnosticRules   []safetyRule
	impersonationRule safetyRule
	sensitiveRules    []safetyRule

	groundingPhrases   []string
	speculativePhrases []string
	knownTones         map[string]bool

	mu   sync.Mutex
	last memoir.ReviewResult

	ready bool
}

// safetyRule pairs a compiled pattern with the issue label it raises.
type safetyRule struct {
	pattern *regexp.Regexp
	label   string
	detail  string
}

// New creates a critic with the given gate configuration.
func New(cfg config.CriticConfig, log *logging.Logger) *Critic {
	if log == nil {
		log = logging.NewNop()
	}
	return &Critic{cfg: cfg, log: log.Named("critic")}
}

// Name implements pipeline.Stage.
func (c *Critic) Name() string { return "critic" }

// Initialize compiles the safety rules and phrase tables. Idempotent.
func (c *Critic) Initialize() error {
	if c.ready {
		return nil
	}

	compile := func(label, detail, pattern string) (safetyRule, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return safetyRule{}, fmt.Errorf("invalid %s pattern: %w", label, err)
		}
		return safetyRule{pattern: re, label: label, detail: detail}, nil
	}

	diagnostics := []struct{ detail, pattern string }{
		{"second-person clinical claim", `(?i)\byou (are|have|suffer from|need)\b`},
		{"clinical terminology", `(?i)\b(diagnosis|disorder|condition|symptoms)\b`},
	}
	for _, d := range diagnostics {
		rule, err := compile(IssueDiagnosticLanguage, d.detail, d.pattern)
		if err != nil {
			return err
		}
		c.diagnosticRules = append(c.diagnosticRules, rule)
	}

	rule, err := compile(IssueImpersonation, "first-person claim", `(?i)\bI (remember|think|feel|believe|was there|saw)\b`)
	if err != nil {
		return err
	}
	c.impersonationRule = rule

	sensitive := []struct{ detail, pattern string }{
		{"SSN-shaped string", `\b\d{3}-\d{2}-\d{4}\b`},
		{"credit-card-shaped string", `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`},
		{"credential mention", `(?i)\b(password|secret)\b`},
	}
	for _, s := range sensitive {
		rule, err := compile(IssueSensitiveData, s.detail, s.pattern)
		if err != nil {
			return err
		}
		c.sensitiveRules = append(c.sensitiveRules, rule)
	}

	c.groundingPhrases = []string{
		"from your", "on that day", "you visited", "you captured",
		"according to", "based on your", "your photos", "your memories",
	}
	c.speculativePhrases = []string{
		"probably", "must have", "surely", "no doubt",
		"certainly felt", "presumably", "you felt",
	}
	c.knownTones = map[string]bool{
		"peaceful": true, "reflective": true, "nostalgic": true,
		"joyful": true, "excited": true, "growth": true, "hopeful": true,
		"grateful": true, "triumphant": true, "neutral": true,
	}

	c.ready = true
	return nil
}

// Validate accepts every reviewable variant.
func (c *Critic) Validate(in pipeline.Value) error {
	switch in.Kind() {
	case pipeline.KindStory:
		if in.Story == nil {
			return fmt.Errorf("%w: nil story", pipeline.ErrInvalidInput)
		}
	case pipeline.KindChapters, pipeline.KindMemories, pipeline.KindText:
	case pipeline.KindRequest:
		if in.Request == nil {
			return fmt.Errorf("%w: nil request", pipeline.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: critic cannot review %s", pipeline.ErrInvalidInput, in.Kind())
	}
	return nil
}

// Process implements pipeline.Stage. The verdict travels back through the
// pipeline as text; the structured result of the same call is retained and
// readable via LastReview.
func (c *Critic) Process(ctx context.Context, in pipeline.Value) (pipeline.Value, error) {
	result := c.Review(ctx, in)

	c.mu.Lock()
	c.last = result
	c.mu.Unlock()

	verdict := "approved"
	if !result.Approved {
		verdict = "rejected: " + strings.Join(result.Issues, "; ")
	}
	return pipeline.TextValue(verdict), nil
}

// LastReview returns the structured result of the most recent Process call.
func (c *Critic) LastReview() memoir.ReviewResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Review dispatches on the input variant and always returns a fully
// populated ReviewResult.
func (c *Critic) Review(ctx context.Context, in pipeline.Value) memoir.ReviewResult {
	switch in.Kind() {
	case pipeline.KindStory:
		return c.ReviewStory(ctx, in.Story)
	case pipeline.KindChapters:
		return c.reviewChapters(in.Chapters)
	case pipeline.KindMemories:
		return c.ReviewSelection(ctx, in.Memories)
	case pipeline.KindText:
		return c.ReviewText(in.Text)
	case pipeline.KindRequest:
		return c.reviewRequest(in.Request)
	default:
		return c.newResult(false, []string{"nothing to review"}, 0, nil)
	}
}

// newResult builds a ReviewResult with every field populated regardless of
// what was reviewed.
func (c *Critic) newResult(approved bool, issues []string, quality float64, metadata map[string]string) memoir.ReviewResult {
	if issues == nil {
		issues = []string{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return memoir.ReviewResult{
		Approved:     approved,
		Issues:       issues,
		QualityScore: quality,
		Metadata:     metadata,
		ReviewedAt:   time.Now(),
		Reviewer:     ReviewerName,
	}
}

// safetyIssues runs every safety rule against the text.
func (c *Critic) safetyIssues(text string) []string {
	var issues []string
	for _, rule := range c.diagnosticRules {
		if rule.pattern.MatchString(text) {
			issues = append(issues, rule.label+": "+rule.detail)
		}
	}
	if c.impersonationRule.pattern.MatchString(text) {
		issues = append(issues, c.impersonationRule.label+": "+c.impersonationRule.detail)
	}
	for _, rule := range c.sensitiveRules {
		if rule.pattern.MatchString(text) {
			issues = append(issues, rule.label+": "+rule.detail)
		}
	}
	return issues
}

// ReviewText reviews free text: safety rules plus the quality ladder.
func (c *Critic) ReviewText(text string) memoir.ReviewResult {
	issues := c.safetyIssues(text)
	quality := c.textQuality(text, len(issues))
	approved := len(issues) == 0 && quality >= c.cfg.MinQuality
	return c.newResult(approved, issues, quality, map[string]string{
		"input_kind": string(pipeline.KindText),
		"length":     strconv.Itoa(len(text)),
	})
}

// textQuality scores free text on a fixed ladder, clamped to [0,1].
func (c *Critic) textQuality(text string, safetyIssueCount int) float64 {
	quality := 0.5

	switch n := len(text); {
	case n < 20:
		quality -= 0.3
	case n <= 500:
		quality += 0.2
	case n > 1000:
		quality -= 0.2
	}

	lower := strings.ToLower(text)

	grounding := 0.0
	for _, phrase := range c.groundingPhrases {
		if strings.Contains(lower, phrase) {
			grounding += 0.1
		}
	}
	if grounding > 0.2 {
		grounding = 0.2
	}
	quality += grounding

	speculation := 0.0
	for _, phrase := range c.speculativePhrases {
		if strings.Contains(lower, phrase) {
			speculation += 0.1
		}
	}
	if speculation > 0.3 {
		speculation = 0.3
	}
	quality -= speculation

	quality -= 0.2 * float64(safetyIssueCount)

	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	return quality
}

// hasGrounding reports whether text contains at least one grounding phrase.
func (c *Critic) hasGrounding(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range c.groundingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var _ pipeline.Stage = (*Critic)(nil)
