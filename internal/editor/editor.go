// Package editor implements the sanitization and organization stage of the
// storyloom pipeline. It drops memories carrying sensitive content, filters
// on a keyword quality score, reorders survivors by priority, redacts unsafe
// language from narrative text, and vets media references.
//
// The redaction approach follows a rule table of compiled patterns applied in
// order, with the replacement depending on the rule class.
package editor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
	"go.uber.org/zap"
)

// Redaction markers. Diagnostic language is removed outright; sensitive data
// leaves a visible placeholder.
const (
	diagnosticMarker = "[removed]"
	sensitiveMarker  = "[redacted]"
)

// Media quality bonus applied when media preference is enabled.
const mediaQualityBonus = 2

// Priority category bonuses.
const (
	highPriorityBonus   = 0.3
	mediumPriorityBonus = 0.2
	lowPriorityBonus    = 0.1
)

// Editor is the sanitization stage.
type Editor struct {
	cfg config.EditorConfig
	log *logging.Logger

	sensitivePatterns  []*regexp.Regexp
	diagnosticPatterns []*regexp.Regexp
	repeatedSpace      *regexp.Regexp
	repeatedPunct      *regexp.Regexp

	positiveKeywords []string
	negativeKeywords []string
	highPriority     []string
	mediumPriority   []string
	lowPriority      []string
	safeExtensions   map[string]bool

	ready bool
}

// New creates an editor with the given filtering configuration.
func New(cfg config.EditorConfig, log *logging.Logger) *Editor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Editor{cfg: cfg, log: log.Named("editor")}
}

// Name implements pipeline.Stage.
func (e *Editor) Name() string { return "editor" }

// Initialize compiles the pattern tables. Idempotent.
func (e *Editor) Initialize() error {
	if e.ready {
		return nil
	}

	patterns := []string{
		`(?i)\b(depress(ed|ion|ing)|suicid[a-z]*|self[- ]harm)\b`,
		`(?i)\b(panic attack|anxiety attack|mental breakdown)\b`,
		`(?i)\b(password|passwd|secret|api[_-]?key|token)\s*[:=]\s*\S+`,
		`\b\d{3}-\d{2}-\d{4}\b`,
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid sensitive pattern %q: %w", p, err)
		}
		e.sensitivePatterns = append(e.sensitivePatterns, re)
	}

	diagnostics := []string{
		`(?i)\byou (are|have|suffer from|need|should see)\b[^.!?]*`,
		`(?i)\b(diagnosis|diagnosed|disorder|clinical condition|symptoms of)\b`,
	}
	for _, p := range diagnostics {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid diagnostic pattern %q: %w", p, err)
		}
		e.diagnosticPatterns = append(e.diagnosticPatterns, re)
	}

	e.repeatedSpace = regexp.MustCompile(`\s{2,}`)
	e.repeatedPunct = regexp.MustCompile(`(!)!+|(\?)\?+|(\.)\.+|(,),+|(;);+`)

	e.positiveKeywords = []string{
		"photo", "video", "picture", "image", "memory", "moment",
		"trip", "family", "friends", "celebration",
	}
	e.negativeKeywords = []string{
		"spam", "error", "failed", "unsubscribe", "click here", "advertisement",
	}
	e.highPriority = []string{
		"wedding", "birth", "graduation", "milestone", "anniversary", "birthday",
	}
	e.mediumPriority = []string{
		"travel", "vacation", "holiday", "reunion", "achievement",
	}
	e.lowPriority = []string{
		"dinner", "walk", "weekend", "visit", "outing",
	}
	e.safeExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".heic": true, ".mp4": true, ".mov": true, ".avi": true,
	}

	e.ready = true
	return nil
}

// Validate accepts memories, a story, a chapter list, or free text.
func (e *Editor) Validate(in pipeline.Value) error {
	switch in.Kind() {
	case pipeline.KindMemories, pipeline.KindChapters, pipeline.KindText:
		return nil
	case pipeline.KindStory:
		if in.Story == nil {
			return fmt.Errorf("%w: nil story", pipeline.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: editor cannot sanitize %s", pipeline.ErrInvalidInput, in.Kind())
	}
}

// Process implements pipeline.Stage.
func (e *Editor) Process(ctx context.Context, in pipeline.Value) (pipeline.Value, error) {
	switch in.Kind() {
	case pipeline.KindMemories:
		return pipeline.MemoriesValue(e.FilterMemories(ctx, in.Memories)), nil
	case pipeline.KindStory:
		story := e.SanitizeStory(in.Story)
		if story == nil {
			return pipeline.Empty(), nil
		}
		return pipeline.StoryValue(story), nil
	case pipeline.KindChapters:
		out := make([]memoir.Chapter, 0, len(in.Chapters))
		for _, c := range in.Chapters {
			if sanitized, ok := e.SanitizeChapter(c); ok {
				out = append(out, sanitized)
			}
		}
		return pipeline.ChaptersValue(out), nil
	case pipeline.KindText:
		return pipeline.TextValue(e.SanitizeText(in.Text)), nil
	default:
		return pipeline.Empty(), fmt.Errorf("%w: %s", pipeline.ErrInvalidInput, in.Kind())
	}
}

// FilterMemories runs the full memory treatment: sensitive drop, quality
// filter, priority reorder, group cap.
func (e *Editor) FilterMemories(ctx context.Context, memories []memoir.Memory) []memoir.Memory {
	kept := make([]memoir.Memory, 0, len(memories))
	for _, m := range memories {
		if e.isSensitive(m.Text) {
			continue
		}
		if len(m.Text) < e.cfg.MinContentLength || len(m.Text) > e.cfg.MaxContentLength {
			continue
		}
		if e.qualityScore(m) < 0 {
			continue
		}
		kept = append(kept, m)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return e.priorityScore(kept[i]) > e.priorityScore(kept[j])
	})

	if len(kept) > e.cfg.MaxGroupSize {
		kept = kept[:e.cfg.MaxGroupSize]
	}

	e.log.Debug(ctx, "memories filtered",
		zap.Int("in", len(memories)),
		zap.Int("out", len(kept)),
	)
	return kept
}

// isSensitive reports whether text matches any sensitive-content pattern.
func (e *Editor) isSensitive(text string) bool {
	for _, re := range e.sensitivePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// qualityScore is positive-minus-negative keyword count, with a media bonus
// when media preference is on. Items under zero are dropped.
func (e *Editor) qualityScore(m memoir.Memory) int {
	lower := strings.ToLower(m.Text)
	score := 0
	for _, kw := range e.positiveKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	for _, kw := range e.negativeKeywords {
		if strings.Contains(lower, kw) {
			score--
		}
	}
	if e.cfg.PreferMedia && m.HasMedia() {
		score += mediaQualityBonus
	}
	return score
}

// priorityScore orders surviving memories for presentation.
func (e *Editor) priorityScore(m memoir.Memory) float64 {
	score := 0.4*m.NarrativeSignificance + 0.3*m.StoryPotential
	lower := strings.ToLower(m.Text)
	score += categoryBonus(lower, e.highPriority, highPriorityBonus)
	score += categoryBonus(lower, e.mediumPriority, mediumPriorityBonus)
	score += categoryBonus(lower, e.lowPriority, lowPriorityBonus)
	if len(m.PhotoPaths) > 0 {
		score += 0.1
	}
	if len(m.VideoPaths) > 0 {
		score += 0.15
	}
	return score
}

// categoryBonus awards the bonus once per category, not per keyword.
func categoryBonus(lower string, keywords []string, bonus float64) float64 {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return bonus
		}
	}
	return 0
}

// SanitizeStory sanitizes the title and every chapter. Returns nil when no
// chapter survives.
func (e *Editor) SanitizeStory(s *memoir.Story) *memoir.Story {
	if s == nil {
		return nil
	}
	out := *s
	out.Title = e.SanitizeText(s.Title)
	out.Chapters = make([]memoir.Chapter, 0, len(s.Chapters))
	for _, c := range s.Chapters {
		if sanitized, ok := e.SanitizeChapter(c); ok {
			out.Chapters = append(out.Chapters, sanitized)
		}
	}
	if len(out.Chapters) == 0 {
		return nil
	}
	return &out
}

// SanitizeChapter cleans a chapter's text and media. The second return is
// false when the sanitized narrative falls under the minimum content length;
// such chapters are dropped entirely rather than delivered empty.
func (e *Editor) SanitizeChapter(c memoir.Chapter) (memoir.Chapter, bool) {
	c.Title = e.SanitizeText(c.Title)
	c.Narrative = e.SanitizeText(c.Narrative)
	c.MediaPaths = e.FilterMediaPaths(c.MediaPaths)
	if len(c.Narrative) < e.cfg.MinContentLength {
		return memoir.Chapter{}, false
	}
	return c, true
}

// SanitizeText redacts diagnostic and sensitive language, collapses repeated
// whitespace and punctuation, and ensures terminal punctuation.
func (e *Editor) SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range e.diagnosticPatterns {
		text = re.ReplaceAllString(text, diagnosticMarker)
	}
	for _, re := range e.sensitivePatterns {
		text = re.ReplaceAllString(text, sensitiveMarker)
	}
	text = e.repeatedPunct.ReplaceAllString(text, "$1$2$3$4$5")
	text = e.repeatedSpace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if !strings.ContainsRune(".!?", rune(text[len(text)-1])) {
		text += "."
	}
	return text
}

// FilterMediaPaths drops unsafe media references: unknown extensions,
// traversal sequences, and absolute roots.
func (e *Editor) FilterMediaPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if strings.Contains(p, "..") || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") || strings.HasPrefix(p, "~") {
			continue
		}
		dot := strings.LastIndex(p, ".")
		if dot < 0 || !e.safeExtensions[strings.ToLower(p[dot:])] {
			continue
		}
		out = append(out, p)
	}
	return out
}

var _ pipeline.Stage = (*Editor)(nil)
