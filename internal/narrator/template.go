package narrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
)

const (
	maxNarrativeLength = 480
	maxSnippetsPerChap = 3
	readingWordsPerSec = 2.5
	minChapterSeconds  = 10.0
	maxChapterSeconds  = 120.0
)

// emotionTones maps recorded emotions onto the tone vocabulary the rest of
// the pipeline understands.
var emotionTones = map[string]string{
	"joy":       "joyful",
	"happiness": "joyful",
	"love":      "grateful",
	"gratitude": "grateful",
	"awe":       "excited",
	"curiosity": "excited",
	"pride":     "triumphant",
	"calm":      "peaceful",
	"serenity":  "peaceful",
	"nostalgia": "nostalgic",
	"sadness":   "reflective",
	"longing":   "nostalgic",
	"hope":      "hopeful",
}

// Template is a deterministic Narrator. It groups memories by the requested
// narrative mode and renders each group through fixed phrasing, so the same
// selection always yields the same chapters.
type Template struct {
	log *logging.Logger
}

// NewTemplate creates the built-in template narrator.
func NewTemplate(log *logging.Logger) *Template {
	if log == nil {
		log = logging.NewNop()
	}
	return &Template{log: log.Named("narrator")}
}

func (t *Template) Name() string { return "template-narrator" }

// Narrate implements Narrator.
func (t *Template) Narrate(ctx context.Context, memories []memoir.Memory, req *memoir.Request) ([]memoir.Chapter, error) {
	mode := memoir.ModeChronological
	if req != nil && req.Mode != "" {
		mode = req.Mode
	}

	groups := t.group(memories, mode)
	chapters := make([]memoir.Chapter, 0, len(groups))
	for i, g := range groups {
		ch := t.renderChapter(i, g)
		if strings.TrimSpace(ch.Narrative) == "" {
			continue
		}
		chapters = append(chapters, ch)
	}

	t.log.Debug(ctx, "chapters composed",
		zap.String("mode", string(mode)),
		zap.Int("memories", len(memories)),
		zap.Int("chapters", len(chapters)),
	)
	return chapters, nil
}

// group is a labeled slice of memories rendered into one chapter.
type group struct {
	label    string
	memories []memoir.Memory
}

// group buckets memories by the narrative mode. Groups come out in first-seen
// order except chronological, which sorts buckets by time.
func (t *Template) group(memories []memoir.Memory, mode memoir.NarrativeMode) []group {
	keyFor := func(m memoir.Memory) string {
		switch mode {
		case memoir.ModeThematic:
			if len(m.Themes) > 0 {
				return m.Themes[0]
			}
			return "moments"
		case memoir.ModePeopleCentered:
			if len(m.People) > 0 {
				return m.People[0]
			}
			return "quiet moments"
		case memoir.ModePlaceCentered:
			if len(m.Tags) > 0 {
				return m.Tags[0]
			}
			return "places"
		default:
			return m.Timestamp.Format("January 2006")
		}
	}

	index := make(map[string]int)
	var groups []group
	for _, m := range memories {
		key := keyFor(m)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{label: key})
		}
		groups[i].memories = append(groups[i].memories, m)
	}

	for i := range groups {
		sort.SliceStable(groups[i].memories, func(a, b int) bool {
			return groups[i].memories[a].Timestamp.Before(groups[i].memories[b].Timestamp)
		})
	}
	if mode == memoir.ModeChronological {
		sort.SliceStable(groups, func(a, b int) bool {
			return groups[a].memories[0].Timestamp.Before(groups[b].memories[0].Timestamp)
		})
	}
	return groups
}

// renderChapter turns one group into a chapter with grounded phrasing.
func (t *Template) renderChapter(idx int, g group) memoir.Chapter {
	var b strings.Builder

	first := g.memories[0]
	fmt.Fprintf(&b, "On %s, this chapter begins from your memories of %s.",
		first.Timestamp.Format("January 2, 2006"), g.label)

	for i, m := range g.memories {
		if i >= maxSnippetsPerChap {
			break
		}
		snippet := trimSnippet(m.Text)
		if snippet == "" {
			continue
		}
		b.WriteString(" " + snippet)
		if !strings.HasSuffix(snippet, ".") && !strings.HasSuffix(snippet, "!") && !strings.HasSuffix(snippet, "?") {
			b.WriteString(".")
		}
	}

	media := collectMedia(g.memories)
	if len(media) > 0 {
		b.WriteString(" Scenes from your photos carry the moment forward.")
	}

	narrative := b.String()
	if len(narrative) > maxNarrativeLength {
		narrative = narrative[:maxNarrativeLength]
		if i := strings.LastIndex(narrative, " "); i > 0 {
			narrative = narrative[:i]
		}
		narrative = strings.TrimRight(narrative, " ,;") + "."
	}

	words := len(strings.Fields(narrative))
	duration := float64(words) / readingWordsPerSec
	if duration < minChapterSeconds {
		duration = minChapterSeconds
	}
	if duration > maxChapterSeconds {
		duration = maxChapterSeconds
	}

	return memoir.Chapter{
		ID:              fmt.Sprintf("chapter-%02d", idx+1),
		Title:           chapterTitle(g.label),
		Narrative:       narrative,
		MediaPaths:      media,
		DurationSeconds: duration,
		Tone:            dominantTone(g.memories),
	}
}

// trimSnippet takes the first sentence of the memory text, capped in length.
func trimSnippet(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.IndexAny(s, ".!?"); i > 0 && i < 160 {
		s = s[:i+1]
	} else if len(s) > 160 {
		s = s[:160]
		if j := strings.LastIndex(s, " "); j > 0 {
			s = s[:j]
		}
	}
	return s
}

func chapterTitle(label string) string {
	words := strings.Fields(label)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func collectMedia(memories []memoir.Memory) []string {
	var paths []string
	for _, m := range memories {
		paths = append(paths, m.PhotoPaths...)
		paths = append(paths, m.VideoPaths...)
	}
	return paths
}

// dominantTone picks the tone with the highest summed emotion intensity.
func dominantTone(memories []memoir.Memory) string {
	totals := make(map[string]float64)
	for _, m := range memories {
		for emotion, intensity := range m.Emotions {
			if tone, ok := emotionTones[strings.ToLower(emotion)]; ok {
				totals[tone] += intensity
			}
		}
	}
	best, bestScore := "reflective", 0.0
	tones := make([]string, 0, len(totals))
	for tone := range totals {
		tones = append(tones, tone)
	}
	sort.Strings(tones)
	for _, tone := range tones {
		if totals[tone] > bestScore {
			best, bestScore = tone, totals[tone]
		}
	}
	return best
}

var _ Narrator = (*Template)(nil)
