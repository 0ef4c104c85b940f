// Package archivist implements the selection stage of the storyloom
// pipeline. Given a generation request and a candidate pool, it scores every
// memory against the request and returns a ranked, capped selection.
//
// Scoring is a weighted sum of query-term overlap, theme overlap, narrative
// quality, temporal recency, and a diversity bonus that decays as the running
// selection accumulates near-duplicate or temporally clustered picks.
package archivist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
	"go.uber.org/zap"
)

// Fixed component weights for the request-match portion of the score.
const (
	queryWeight = 0.4
	themeWeight = 0.3
)

// Temporal recency tiers.
const (
	tierRecent   = 0.8 // within 30 days
	tierQuarter  = 0.6 // within 90 days
	tierYear     = 0.4 // within 365 days
	tierArchival = 0.2
)

// Diversity penalties, applied multiplicatively per prior pick.
const (
	temporalPenalty = 0.8 // within 7 days of a prior pick
	overlapPenalty  = 0.7 // >50% word overlap with a prior pick
)

// Archivist is the selection stage.
type Archivist struct {
	cfg config.ArchivistConfig
	log *logging.Logger

	spamKeywords      []string
	narrativeKeywords map[string]bool
	ready             bool
}

// New creates an archivist with the given scoring configuration.
func New(cfg config.ArchivistConfig, log *logging.Logger) *Archivist {
	if log == nil {
		log = logging.NewNop()
	}
	return &Archivist{cfg: cfg, log: log.Named("archivist")}
}

// Name implements pipeline.Stage.
func (a *Archivist) Name() string { return "archivist" }

// Initialize builds the keyword sets. Idempotent.
func (a *Archivist) Initialize() error {
	if a.ready {
		return nil
	}
	a.spamKeywords = []string{
		"click here", "buy now", "subscribe", "limited offer",
		"free money", "winner winner", "act now", "unsubscribe",
	}
	a.narrativeKeywords = map[string]bool{
		"first": true, "finally": true, "remember": true, "milestone": true,
		"amazing": true, "unforgettable": true, "celebrated": true,
		"journey": true, "special": true, "proud": true,
	}
	a.ready = true
	return nil
}

// Validate accepts a request or a raw memory list.
func (a *Archivist) Validate(in pipeline.Value) error {
	switch in.Kind() {
	case pipeline.KindRequest:
		if in.Request == nil {
			return fmt.Errorf("%w: nil request", pipeline.ErrInvalidInput)
		}
	case pipeline.KindMemories:
		if in.Memories == nil {
			return fmt.Errorf("%w: nil memory list", pipeline.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: archivist cannot select from %s", pipeline.ErrInvalidInput, in.Kind())
	}
	return nil
}

// Process implements pipeline.Stage. The output is always a memory list,
// ranked descending by score; every returned memory scored at or above the
// relevance threshold.
func (a *Archivist) Process(ctx context.Context, in pipeline.Value) (pipeline.Value, error) {
	req := a.requestFrom(in)
	selected := a.Select(ctx, req)
	return pipeline.MemoriesValue(selected), nil
}

// requestFrom normalizes the input variants: a raw memory list becomes a
// request with no query, no theme, and the configured cap.
func (a *Archivist) requestFrom(in pipeline.Value) *memoir.Request {
	if in.Kind() == pipeline.KindRequest {
		return in.Request
	}
	return &memoir.Request{AvailableMemories: in.Memories}
}

// scored pairs a memory with its computed relevance.
type scored struct {
	memory memoir.Memory
	score  float64
}

// Select filters, scores, and ranks the candidate pool.
func (a *Archivist) Select(ctx context.Context, req *memoir.Request) []memoir.Memory {
	candidates := a.filter(req)

	// Score incrementally: the diversity bonus for each candidate is
	// computed against the memories already appended to the running list,
	// so it is order-dependent by construction.
	ranked := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		s := a.score(m, req, ranked)
		ranked = append(ranked, scored{memory: m, score: s})
	}

	// Stable sort keeps candidate order on ties, pinning the ranking.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = a.cfg.MaxResults
	}

	out := make([]memoir.Memory, 0, len(ranked))
	for _, r := range ranked {
		if r.score < a.cfg.RelevanceThreshold {
			// Sorted descending: everything after this is below threshold.
			break
		}
		if len(out) >= maxResults {
			break
		}
		out = append(out, r.memory)
	}

	a.log.Debug(ctx, "selection complete",
		zap.Int("candidates", len(req.AvailableMemories)),
		zap.Int("passed_filter", len(candidates)),
		zap.Int("selected", len(out)),
	)
	return out
}

// filter applies the time-range and quality gates.
func (a *Archivist) filter(req *memoir.Request) []memoir.Memory {
	out := make([]memoir.Memory, 0, len(req.AvailableMemories))
	for _, m := range req.AvailableMemories {
		if !req.TimeRange.IsZero() && !req.TimeRange.Contains(m.Timestamp) {
			continue
		}
		if len(m.Text) < a.cfg.MinTextLength {
			continue
		}
		if a.isSpam(m.Text) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (a *Archivist) isSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range a.spamKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// score computes the weighted relevance of one memory against the request,
// with the diversity bonus measured against the already-scored prefix.
func (a *Archivist) score(m memoir.Memory, req *memoir.Request, prior []scored) float64 {
	total := queryWeight * termOverlap(req.Query, m.Text)
	total += themeWeight * themeOverlap(req.Theme, m)
	total += a.cfg.NarrativeWeight * a.narrativeScore(m)
	total += a.cfg.TemporalWeight * recencyTier(m.Timestamp, time.Now())
	// The diversity bonus is neutral at 1.0; only its decay moves the
	// score, so near-duplicate picks are pushed down without handing
	// every candidate a free floor above the relevance threshold.
	total += a.cfg.DiversityWeight * (diversityBonus(m, prior) - 1.0)
	if total < 0 {
		total = 0
	}
	return total
}

// narrativeScore blends the record's own scores with text and media signals.
// Clamped to 1.0.
func (a *Archivist) narrativeScore(m memoir.Memory) float64 {
	s := 0.5*m.NarrativeSignificance + 0.3*m.StoryPotential
	s += a.indicatorDensity(m.Text)
	if len(m.PhotoPaths) > 0 {
		s += 0.1
	}
	if len(m.VideoPaths) > 0 {
		s += 0.1
	}
	if s > 1.0 {
		s = 1.0
	}
	return s
}

// indicatorDensity contributes up to 0.2 based on how densely the text uses
// narrative-indicator keywords.
func (a *Archivist) indicatorDensity(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if a.narrativeKeywords[t] {
			hits++
		}
	}
	density := 2.0 * float64(hits) / float64(len(tokens))
	if density > 0.2 {
		density = 0.2
	}
	return density
}

// recencyTier maps the age of a memory to a fixed tier.
func recencyTier(ts, now time.Time) float64 {
	if ts.IsZero() {
		return tierArchival
	}
	age := now.Sub(ts)
	switch {
	case age <= 30*24*time.Hour:
		return tierRecent
	case age <= 90*24*time.Hour:
		return tierQuarter
	case age <= 365*24*time.Hour:
		return tierYear
	default:
		return tierArchival
	}
}

// diversityBonus starts at 1.0 and is penalized against every prior pick:
// temporal clustering within a week and heavy text overlap each multiply the
// bonus down.
func diversityBonus(m memoir.Memory, prior []scored) float64 {
	bonus := 1.0
	for _, p := range prior {
		if !m.Timestamp.IsZero() && !p.memory.Timestamp.IsZero() {
			gap := m.Timestamp.Sub(p.memory.Timestamp)
			if gap < 0 {
				gap = -gap
			}
			if gap <= 7*24*time.Hour {
				bonus *= temporalPenalty
			}
		}
		if wordOverlapRatio(m.Text, p.memory.Text) > 0.5 {
			bonus *= overlapPenalty
		}
	}
	return bonus
}

// termOverlap returns the fraction of unique query terms found in the text.
func termOverlap(query, text string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := tokenSet(text)

	matched := 0
	counted := make(map[string]bool)
	for _, qt := range queryTokens {
		if docSet[qt] && !counted[qt] {
			matched++
			counted[qt] = true
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// themeOverlap matches the requested theme against thematic tags first, then
// against the text.
func themeOverlap(theme string, m memoir.Memory) float64 {
	if theme == "" {
		return 0
	}
	lower := strings.ToLower(theme)
	for _, t := range m.Themes {
		if strings.ToLower(t) == lower {
			return 1.0
		}
	}
	return termOverlap(theme, m.Text)
}

// wordOverlapRatio is Jaccard similarity over token sets: overlap / union.
func wordOverlapRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	overlap := 0
	for t := range setA {
		if setB[t] {
			overlap++
		}
	}
	union := len(setA) + len(setB) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

// tokenize splits text into lowercase terms, filtering stopwords and short
// tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(text) {
		set[t] = true
	}
	return set
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func isStopword(token string) bool {
	return stopwords[token]
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

var _ pipeline.Stage = (*Archivist)(nil)
