// Package director implements the sequencing stage of the storyloom
// pipeline. It reorders narrative units for presentational flow: chapter
// lists through a pairwise flow matrix and a nearest-neighbor walk, whole
// stories through emotional-flow pattern assignment, and memory lists
// through mode-specific sorts. Re-paced chapter durations always land inside
// the configured bounds.
//
// Sequencing is deterministic for a given RNG seed; the scattered media
// strategy is the only consumer of randomness.
package director

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
	"go.uber.org/zap"
)

// Flow-score component weights for chapter pairs.
const (
	transitionWeight   = 0.4
	durationWeight     = 0.2
	mediaVarietyWeight = 0.1
)

// Media richness threshold: chapters with more references are media-rich.
const mediaRichThreshold = 2

// Director is the sequencing stage.
type Director struct {
	cfg config.DirectorConfig
	log *logging.Logger
	rng *rand.Rand

	transitions map[string]map[string]float64
	ready       bool
}

// New creates a director. A nil rng falls back to a time-seeded source;
// tests inject a fixed seed for reproducible scattering.
func New(cfg config.DirectorConfig, rng *rand.Rand, log *logging.Logger) *Director {
	if log == nil {
		log = logging.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Director{cfg: cfg, rng: rng, log: log.Named("director")}
}

// Name implements pipeline.Stage.
func (d *Director) Name() string { return "director" }

// Initialize builds the emotional-transition table. Idempotent.
func (d *Director) Initialize() error {
	if d.ready {
		return nil
	}
	d.transitions = map[string]map[string]float64{
		"peaceful":   {"reflective": 0.9, "nostalgic": 0.9, "growth": 0.9, "hopeful": 0.8},
		"reflective": {"hopeful": 0.9, "growth": 0.9, "peaceful": 0.8, "nostalgic": 0.8},
		"nostalgic":  {"reflective": 0.9, "grateful": 0.9, "peaceful": 0.8},
		"joyful":     {"excited": 0.9, "grateful": 0.9, "peaceful": 0.8, "reflective": 0.7},
		"excited":    {"joyful": 0.9, "triumphant": 0.9, "peaceful": 0.7},
		"growth":     {"triumphant": 0.9, "hopeful": 0.9, "reflective": 0.8},
		"hopeful":    {"joyful": 0.9, "excited": 0.8, "growth": 0.8},
		"grateful":   {"peaceful": 0.9, "reflective": 0.9, "hopeful": 0.8},
		"triumphant": {"grateful": 0.9, "reflective": 0.8, "peaceful": 0.8},
	}
	d.ready = true
	return nil
}

// Validate accepts a story, a chapter list, or a memory list.
func (d *Director) Validate(in pipeline.Value) error {
	switch in.Kind() {
	case pipeline.KindStory:
		if in.Story == nil {
			return fmt.Errorf("%w: nil story", pipeline.ErrInvalidInput)
		}
	case pipeline.KindChapters, pipeline.KindMemories:
	default:
		return fmt.Errorf("%w: director cannot sequence %s", pipeline.ErrInvalidInput, in.Kind())
	}
	return nil
}

// Process implements pipeline.Stage.
//
// Stories run the emotional-flow pattern optimization; bare chapter lists
// run the pairwise flow-matrix walk. Both are re-paced and have their media
// redistributed under the active strategy. Memory lists are sorted by the
// sequencing mode derived from the value's narrative-mode annotation.
func (d *Director) Process(ctx context.Context, in pipeline.Value) (pipeline.Value, error) {
	switch in.Kind() {
	case pipeline.KindStory:
		story := *in.Story
		story.Chapters = d.OptimizeFlow(story.Chapters)
		story.Chapters = d.ApplyPacing(story.Chapters)
		story.Chapters = d.DistributeMedia(story.Chapters)
		d.log.Debug(ctx, "story sequenced",
			zap.Int("chapters", len(story.Chapters)),
			zap.String("media_strategy", d.cfg.MediaStrategy),
		)
		return pipeline.StoryValue(&story), nil
	case pipeline.KindChapters:
		chapters := d.SequenceChapters(in.Chapters)
		chapters = d.ApplyPacing(chapters)
		chapters = d.DistributeMedia(chapters)
		return pipeline.ChaptersValue(chapters), nil
	case pipeline.KindMemories:
		return pipeline.MemoriesValue(d.SequenceMemories(in.Memories, in.Mode)).WithMode(in.Mode), nil
	default:
		return pipeline.Empty(), fmt.Errorf("%w: %s", pipeline.ErrInvalidInput, in.Kind())
	}
}

// SequenceChapters reorders chapters with a nearest-neighbor walk over the
// pairwise flow matrix. The walk starts at index 0 and repeatedly appends
// the unused chapter with the highest flow score from the current one; ties
// keep the first-encountered index. Not globally optimal.
func (d *Director) SequenceChapters(chapters []memoir.Chapter) []memoir.Chapter {
	if len(chapters) < 2 {
		return chapters
	}

	matrix := d.FlowMatrix(chapters)

	used := make([]bool, len(chapters))
	order := make([]int, 0, len(chapters))
	current := 0
	used[0] = true
	order = append(order, 0)

	for len(order) < len(chapters) {
		best := -1
		bestScore := -1.0
		for j := range chapters {
			if used[j] {
				continue
			}
			if matrix[current][j] > bestScore {
				best = j
				bestScore = matrix[current][j]
			}
		}
		used[best] = true
		order = append(order, best)
		current = best
	}

	out := make([]memoir.Chapter, len(chapters))
	for i, idx := range order {
		out[i] = chapters[idx]
	}
	return out
}

// FlowMatrix builds the NxN pairwise flow scores for an ordered chapter
// transition i -> j.
func (d *Director) FlowMatrix(chapters []memoir.Chapter) [][]float64 {
	n := len(chapters)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			if i == j {
				continue
			}
			matrix[i][j] = d.flowScore(chapters[i], chapters[j])
		}
	}
	return matrix
}

func (d *Director) flowScore(a, b memoir.Chapter) float64 {
	score := transitionWeight * d.TransitionScore(a.Tone, b.Tone)
	score += durationWeight * durationBalance(a.DurationSeconds, b.DurationSeconds)
	score += mediaVarietyWeight * mediaVariety(a, b)
	return score
}

// TransitionScore rates an emotional transition from one tone to another:
// listed pairs score from the adjacency table, identical tones 0.5,
// everything else 0.3.
func (d *Director) TransitionScore(from, to string) float64 {
	if from == to {
		return 0.5
	}
	if targets, ok := d.transitions[from]; ok {
		if s, ok := targets[to]; ok {
			return s
		}
	}
	return 0.3
}

// durationBalance rewards chapters of comparable length: min/max of the two
// durations.
func durationBalance(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return a / b
}

// mediaVariety scores 0.8 when exactly one side is media-rich, 0.5 otherwise.
func mediaVariety(a, b memoir.Chapter) float64 {
	richA := a.MediaRichness() > mediaRichThreshold
	richB := b.MediaRichness() > mediaRichThreshold
	if richA != richB {
		return 0.8
	}
	return 0.5
}

// SequenceMemories sorts a memory list by the sequencing mode derived from
// the story's narrative mode.
func (d *Director) SequenceMemories(memories []memoir.Memory, mode memoir.NarrativeMode) []memoir.Memory {
	out := make([]memoir.Memory, len(memories))
	copy(out, memories)

	switch mode {
	case memoir.ModeChronological:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.Before(out[j].Timestamp)
		})
	case memoir.ModeThematic:
		// Group by leading thematic tag, groups sorted by label,
		// chronological within each group.
		sort.SliceStable(out, func(i, j int) bool {
			ti, tj := leadingTheme(out[i]), leadingTheme(out[j])
			if ti != tj {
				return ti < tj
			}
			return out[i].Timestamp.Before(out[j].Timestamp)
		})
	default:
		// Narrative flow: a weighted blend of significance and story
		// potential, strongest first.
		sort.SliceStable(out, func(i, j int) bool {
			return narrativeFlowScore(out[i]) > narrativeFlowScore(out[j])
		})
	}
	return out
}

func leadingTheme(m memoir.Memory) string {
	if len(m.Themes) > 0 {
		return m.Themes[0]
	}
	return "~" // untagged memories sort after every named theme
}

func narrativeFlowScore(m memoir.Memory) float64 {
	return 0.6*m.NarrativeSignificance + 0.4*m.StoryPotential
}

var _ pipeline.Stage = (*Director)(nil)
