package director

import (
	"sort"

	"github.com/fyrsmithlabs/storyloom/internal/memoir"
)

// FlowStage is one position label in an emotional-flow pattern.
type FlowStage string

const (
	StageCalm       FlowStage = "calm"
	StageBuilding   FlowStage = "building"
	StagePeak       FlowStage = "peak"
	StageResolution FlowStage = "resolution"
)

// Named flow patterns, ordered stage lists a story is shaped against.
var flowPatterns = map[string][]FlowStage{
	"crescendo":  {StageCalm, StageBuilding, StagePeak, StageResolution},
	"gentle_arc": {StageCalm, StagePeak, StageResolution},
	"steady":     {StageCalm, StageCalm, StageResolution},
}

// stageToneCompat scores how well a tone fits a flow stage. Unlisted pairs
// score 0.4.
var stageToneCompat = map[FlowStage]map[string]float64{
	StageCalm: {
		"peaceful": 1.0, "reflective": 0.9, "nostalgic": 0.8, "grateful": 0.7,
	},
	StageBuilding: {
		"hopeful": 1.0, "excited": 0.9, "growth": 0.8, "joyful": 0.7,
	},
	StagePeak: {
		"joyful": 1.0, "excited": 0.9, "triumphant": 0.9, "growth": 0.7,
	},
	StageResolution: {
		"reflective": 1.0, "peaceful": 0.9, "nostalgic": 0.9, "grateful": 0.8,
	},
}

const defaultCompat = 0.4

// Combined position-score weights.
const (
	toneCompatWeight  = 0.6
	durationFitWeight = 0.25
	mediaFitWeight    = 0.15
)

// StageCompatibility exposes the tone-compatibility score for a stage.
func StageCompatibility(stage FlowStage, tone string) float64 {
	if scores, ok := stageToneCompat[stage]; ok {
		if s, ok := scores[tone]; ok {
			return s
		}
	}
	return defaultCompat
}

// OptimizeFlow reorders a story's chapters against a target emotional-flow
// pattern chosen from the dominant tone and tone variety.
//
// Every chapter is scored against every pattern position; assignments are
// made greedily, best-scoring (position, chapter) pair first, and any
// position left unassigned is filled with the leftover chapters in their
// original order.
func (d *Director) OptimizeFlow(chapters []memoir.Chapter) []memoir.Chapter {
	if len(chapters) < 2 {
		return chapters
	}

	pattern := d.selectPattern(chapters)
	stages := positionStages(pattern, len(chapters))

	type pairScore struct {
		position, chapter int
		score             float64
	}

	// Score all pairs, then assign greedily by descending score. Ties
	// resolve to the earliest position, then the earliest chapter, from
	// the stable sort over construction order.
	pairs := make([]pairScore, 0, len(chapters)*len(chapters))
	for pos, stage := range stages {
		for ci, c := range chapters {
			pairs = append(pairs, pairScore{
				position: pos,
				chapter:  ci,
				score:    d.positionScore(stage, c),
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	assigned := make([]int, len(chapters))
	for i := range assigned {
		assigned[i] = -1
	}
	chapterUsed := make([]bool, len(chapters))
	for _, p := range pairs {
		if assigned[p.position] != -1 || chapterUsed[p.chapter] {
			continue
		}
		assigned[p.position] = p.chapter
		chapterUsed[p.chapter] = true
	}

	// Fill unassigned positions with leftovers in original order.
	leftovers := make([]int, 0)
	for ci := range chapters {
		if !chapterUsed[ci] {
			leftovers = append(leftovers, ci)
		}
	}
	for pos := range assigned {
		if assigned[pos] == -1 && len(leftovers) > 0 {
			assigned[pos] = leftovers[0]
			leftovers = leftovers[1:]
		}
	}

	out := make([]memoir.Chapter, 0, len(chapters))
	for _, ci := range assigned {
		if ci >= 0 {
			out = append(out, chapters[ci])
		}
	}
	return out
}

// selectPattern picks the target pattern from dominant tone and variety.
func (d *Director) selectPattern(chapters []memoir.Chapter) []FlowStage {
	counts := make(map[string]int)
	for _, c := range chapters {
		if c.Tone != "" {
			counts[c.Tone]++
		}
	}

	dominant := ""
	max := 0
	for tone, n := range counts {
		if n > max || (n == max && tone < dominant) {
			dominant = tone
			max = n
		}
	}

	variety := len(counts)
	switch {
	case variety >= 3:
		return flowPatterns["crescendo"]
	case dominant == "joyful" || dominant == "excited" || dominant == "triumphant":
		return flowPatterns["crescendo"]
	case variety == 2:
		return flowPatterns["gentle_arc"]
	default:
		return flowPatterns["steady"]
	}
}

// positionStages stretches or shrinks a pattern onto n positions.
func positionStages(pattern []FlowStage, n int) []FlowStage {
	stages := make([]FlowStage, n)
	for i := 0; i < n; i++ {
		idx := i * len(pattern) / n
		if idx >= len(pattern) {
			idx = len(pattern) - 1
		}
		stages[i] = pattern[idx]
	}
	return stages
}

// positionScore combines tone compatibility with duration and media
// appropriateness for the stage.
func (d *Director) positionScore(stage FlowStage, c memoir.Chapter) float64 {
	score := toneCompatWeight * StageCompatibility(stage, c.Tone)
	score += durationFitWeight * d.durationFit(stage, c.DurationSeconds)
	score += mediaFitWeight * mediaFit(stage, c)
	return score
}

// durationFit: peaks carry the longest chapters, calm openers the shortest.
func (d *Director) durationFit(stage FlowStage, dur float64) float64 {
	if d.cfg.MaxChapterDuration <= 0 {
		return 0.5
	}
	norm := dur / d.cfg.MaxChapterDuration
	if norm > 1 {
		norm = 1
	}
	switch stage {
	case StagePeak:
		return norm
	case StageCalm:
		return 1 - norm
	default:
		return 0.5
	}
}

// mediaFit: peaks favor media-rich chapters, calm stages favor quiet ones.
func mediaFit(stage FlowStage, c memoir.Chapter) float64 {
	rich := c.MediaRichness() > mediaRichThreshold
	switch stage {
	case StagePeak:
		if rich {
			return 1.0
		}
		return 0.5
	case StageCalm:
		if rich {
			return 0.4
		}
		return 0.7
	default:
		return 0.5
	}
}
