package critic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

// ReviewStory runs the full gate on an assembled story: safety on every
// piece of text, structural bounds, and a grounding check tying the story
// back to its source memories. Overall quality is the mean of the title
// score and the per-chapter scores.
func (c *Critic) ReviewStory(ctx context.Context, story *memoir.Story) memoir.ReviewResult {
	if story == nil {
		return c.newResult(false, []string{"no story to review"}, 0, nil)
	}

	var issues []string
	var scores []float64

	titleIssues := c.safetyIssues(story.Title)
	issues = append(issues, titleIssues...)
	if strings.TrimSpace(story.Title) == "" {
		issues = append(issues, "story has no title")
	} else if len(story.Title) > maxTitleLength {
		issues = append(issues, fmt.Sprintf("story title exceeds %d characters", maxTitleLength))
	}
	scores = append(scores, c.textQuality(story.Title, len(titleIssues)))

	n := len(story.Chapters)
	if n < c.cfg.MinChapters {
		issues = append(issues, fmt.Sprintf("too few chapters: %d < %d", n, c.cfg.MinChapters))
	}
	if n > c.cfg.MaxChapters {
		issues = append(issues, fmt.Sprintf("too many chapters: %d > %d", n, c.cfg.MaxChapters))
	}

	grounded := 0
	for i, ch := range story.Chapters {
		chIssues, score := c.reviewChapter(i, ch)
		issues = append(issues, chIssues...)
		scores = append(scores, score)
		if c.hasGrounding(ch.Narrative) {
			grounded++
		}
	}

	if len(story.SourceMemoryIDs) == 0 {
		issues = append(issues, "story cites no source memories")
	}
	if n > 0 && grounded == 0 {
		issues = append(issues, "no chapter grounds its narrative in the source memories")
	}

	if total := story.TotalDuration(); total > maxTotalDuration {
		issues = append(issues, fmt.Sprintf("total duration %.0fs exceeds %.0fs", total, maxTotalDuration))
	}

	quality := mean(scores)
	approved := len(issues) == 0 && quality >= c.cfg.MinQuality

	c.log.Debug(ctx, "story reviewed",
		zap.String("story_id", story.ID),
		zap.Int("chapters", n),
		zap.Int("issues", len(issues)),
		zap.Float64("quality", quality),
		zap.Bool("approved", approved),
	)

	return c.newResult(approved, issues, quality, map[string]string{
		"input_kind":        string(pipeline.KindStory),
		"story_id":          story.ID,
		"chapter_count":     strconv.Itoa(n),
		"grounded_chapters": strconv.Itoa(grounded),
	})
}

// reviewChapter checks one chapter and returns its issues and quality score.
func (c *Critic) reviewChapter(idx int, ch memoir.Chapter) ([]string, float64) {
	var issues []string
	prefix := fmt.Sprintf("chapter %d: ", idx+1)

	safety := c.safetyIssues(ch.Title)
	safety = append(safety, c.safetyIssues(ch.Narrative)...)
	for _, s := range safety {
		issues = append(issues, prefix+s)
	}

	if strings.TrimSpace(ch.Narrative) == "" {
		issues = append(issues, prefix+"empty narrative")
	}
	if len(ch.Title) > maxTitleLength {
		issues = append(issues, prefix+fmt.Sprintf("title exceeds %d characters", maxTitleLength))
	}
	if sentences := sentenceCount(ch.Narrative); sentences > maxSentenceCount {
		issues = append(issues, prefix+fmt.Sprintf("%d sentences exceeds %d", sentences, maxSentenceCount))
	}
	if ch.DurationSeconds < minChapterDuration || ch.DurationSeconds > maxChapterDuration {
		issues = append(issues, prefix+fmt.Sprintf("duration %.0fs outside [%.0f, %.0f]",
			ch.DurationSeconds, minChapterDuration, maxChapterDuration))
	}
	if ch.Tone != "" && !c.knownTones[strings.ToLower(ch.Tone)] {
		issues = append(issues, prefix+"unrecognized tone "+strconv.Quote(ch.Tone))
	}
	for _, p := range ch.MediaPaths {
		if strings.Contains(p, "..") || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~") {
			issues = append(issues, prefix+"unsafe media path "+strconv.Quote(p))
		}
	}

	score := c.textQuality(ch.Narrative, len(safety))
	return issues, score
}

// reviewChapters gates a bare chapter slice outside any story context.
func (c *Critic) reviewChapters(chapters []memoir.Chapter) memoir.ReviewResult {
	var issues []string
	var scores []float64
	for i, ch := range chapters {
		chIssues, score := c.reviewChapter(i, ch)
		issues = append(issues, chIssues...)
		scores = append(scores, score)
	}
	if len(chapters) == 0 {
		issues = append(issues, "no chapters to review")
	}
	quality := mean(scores)
	approved := len(issues) == 0 && quality >= c.cfg.MinQuality
	return c.newResult(approved, issues, quality, map[string]string{
		"input_kind":    string(pipeline.KindChapters),
		"chapter_count": strconv.Itoa(len(chapters)),
	})
}

// reviewRequest checks the user-supplied free text of a request before the
// pipeline runs.
func (c *Critic) reviewRequest(req *memoir.Request) memoir.ReviewResult {
	var issues []string
	for _, s := range c.safetyIssues(req.Query) {
		issues = append(issues, "query: "+s)
	}
	for _, s := range c.safetyIssues(req.Theme) {
		issues = append(issues, "theme: "+s)
	}
	quality := 1.0
	if len(issues) > 0 {
		quality = 0
	}
	approved := len(issues) == 0
	return c.newResult(approved, issues, quality, map[string]string{
		"input_kind": string(pipeline.KindRequest),
		"memories":   strconv.Itoa(len(req.AvailableMemories)),
	})
}

func sentenceCount(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	return count
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
