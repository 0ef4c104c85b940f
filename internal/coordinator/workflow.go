package coordinator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/narrator"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

// Terminal workflow error messages.
const (
	errNoMemoriesSelected = "No memories selected by archivist"
	errNoMemoriesFiltered = "No memories passed editor filtering"
	errNoChapters         = "Narrator produced no chapters"
)

// Fix-pass thresholds.
const (
	minFixNarrativeLen = 10
	minFixTitleLen     = 3
	defaultStoryTitle  = "Your Story"
)

// WorkflowResult is the structured outcome of one workflow run. Error paths
// still carry the partial step log for diagnosis.
type WorkflowResult struct {
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	WorkflowID string        `json:"workflow_id"`
	Duration   time.Duration `json:"workflow_duration"`

	Story    *memoir.Story   `json:"story,omitempty"`
	Memories []memoir.Memory `json:"memories,omitempty"`

	CriticApproval *memoir.ReviewResult `json:"critic_approval,omitempty"`

	MemoriesProcessed int `json:"memories_processed"`
	MemoriesSelected  int `json:"memories_selected"`
	MemoriesFiltered  int `json:"memories_filtered"`
	ChaptersGenerated int `json:"chapters_generated"`

	Steps []memoir.WorkflowStep `json:"workflow_steps"`
}

// GenerateStory runs the full story workflow: select, sanitize, narrate,
// sequence, review, and a best-effort fix pass when the reviewer
// disapproves. Sequencing and review failures degrade; only empty output
// from selection, sanitization, or narration is terminal.
func (c *Coordinator) GenerateStory(ctx context.Context, req *memoir.Request) *WorkflowResult {
	workflowID := uuid.New().String()
	ctx = logging.WithWorkflowID(ctx, workflowID)
	ctx, span := c.tracer.Start(ctx, "storyloom.generate_story")
	defer span.End()
	started := time.Now()

	if !c.Ready() {
		return c.errorResult(ctx, "story", workflowID, started, ErrNotReady.Error())
	}

	selected := c.runStage(ctx, c.archivistRun, workflowID, StepSelect, pipeline.RequestValue(req))
	if !selected.OK() {
		return c.errorResult(ctx, "story", workflowID, started, errNoMemoriesSelected)
	}

	filtered := c.runStage(ctx, c.editorRun, workflowID, StepSanitize, selected.Value)
	if !filtered.OK() {
		return c.errorResult(ctx, "story", workflowID, started, errNoMemoriesFiltered)
	}

	narrated := c.narrate(ctx, workflowID, req, filtered.Value)
	if !narrated.OK() {
		return c.errorResult(ctx, "story", workflowID, started, errNoChapters)
	}

	story := c.assembleStory(req, filtered.Value.Memories, narrated.Value.Chapters)

	// Sequencing never aborts the workflow; on failure the unsequenced
	// story passes through unchanged.
	sequenced := c.runStage(ctx, c.directorRun, workflowID, StepSequence, pipeline.StoryValue(story))
	if sequenced.OK() && sequenced.Value.Story != nil {
		story = sequenced.Value.Story
	}

	review := c.reviewStep(ctx, workflowID, story)
	if !review.Approved {
		story = c.fixStory(ctx, workflowID, story)
		review = c.reviewStep(ctx, workflowID, story)
	}

	success := true
	errMsg := ""
	if c.cfg.Critic.RequireApproval && !review.Approved {
		success = false
		errMsg = "story rejected by critic: " + strings.Join(review.Issues, "; ")
	}

	duration := time.Since(started)
	c.metrics.recordWorkflow(ctx, "story", success, duration)
	c.log.Info(ctx, "story workflow complete",
		zap.Bool("success", success),
		zap.Bool("approved", review.Approved),
		zap.Int("chapters", len(story.Chapters)),
		zap.Duration("duration", duration),
	)

	return &WorkflowResult{
		Success:           success,
		Error:             errMsg,
		WorkflowID:        workflowID,
		Duration:          duration,
		Story:             story,
		CriticApproval:    &review,
		MemoriesProcessed: len(req.AvailableMemories),
		MemoriesSelected:  selected.Value.Len(),
		MemoriesFiltered:  filtered.Value.Len(),
		ChaptersGenerated: len(story.Chapters),
		Steps:             c.Steps(workflowID),
	}
}

// GenerateGallery runs the memory-centric workflow: select, sanitize,
// sequence the memories themselves, review the selection. Narration is
// skipped.
func (c *Coordinator) GenerateGallery(ctx context.Context, req *memoir.Request) *WorkflowResult {
	workflowID := uuid.New().String()
	ctx = logging.WithWorkflowID(ctx, workflowID)
	ctx, span := c.tracer.Start(ctx, "storyloom.generate_gallery")
	defer span.End()
	started := time.Now()

	if !c.Ready() {
		return c.errorResult(ctx, "gallery", workflowID, started, ErrNotReady.Error())
	}

	selected := c.runStage(ctx, c.archivistRun, workflowID, StepSelect, pipeline.RequestValue(req))
	if !selected.OK() {
		return c.errorResult(ctx, "gallery", workflowID, started, errNoMemoriesSelected)
	}

	filtered := c.runStage(ctx, c.editorRun, workflowID, StepSanitize, selected.Value)
	if !filtered.OK() {
		return c.errorResult(ctx, "gallery", workflowID, started, errNoMemoriesFiltered)
	}

	memories := filtered.Value.Memories
	in := pipeline.MemoriesValue(memories).WithMode(requestMode(req))
	sequenced := c.runStage(ctx, c.directorRun, workflowID, StepSequence, in)
	if sequenced.OK() && len(sequenced.Value.Memories) > 0 {
		memories = sequenced.Value.Memories
	}

	review := c.reviewValue(ctx, workflowID, pipeline.MemoriesValue(memories))

	duration := time.Since(started)
	c.metrics.recordWorkflow(ctx, "gallery", true, duration)
	c.log.Info(ctx, "gallery workflow complete",
		zap.Int("memories", len(memories)),
		zap.Duration("duration", duration),
	)

	return &WorkflowResult{
		Success:           true,
		WorkflowID:        workflowID,
		Duration:          duration,
		Memories:          memories,
		CriticApproval:    &review,
		MemoriesProcessed: len(req.AvailableMemories),
		MemoriesSelected:  selected.Value.Len(),
		MemoriesFiltered:  filtered.Value.Len(),
		Steps:             c.Steps(workflowID),
	}
}

// narrate wraps the narrator in a per-run pipeline stage so its failures
// are contained like every other stage.
func (c *Coordinator) narrate(ctx context.Context, workflowID string, req *memoir.Request, in pipeline.Value) pipeline.Outcome {
	run := pipeline.NewRunner(narrator.NewStage(c.narrator, req), c.log)
	if err := run.Initialize(); err != nil {
		c.recordStep(workflowID, StepNarrate, map[string]string{
			"success": "false",
			"error":   err.Error(),
		})
		return pipeline.Outcome{Value: pipeline.Empty(), Err: err}
	}
	return c.runStage(ctx, run, workflowID, StepNarrate, in)
}

// assembleStory builds the story shell around the narrated chapters.
func (c *Coordinator) assembleStory(req *memoir.Request, memories []memoir.Memory, chapters []memoir.Chapter) *memoir.Story {
	story := memoir.NewStory(storyTitle(req), requestMode(req))
	story.Chapters = chapters
	for _, m := range memories {
		story.SourceMemoryIDs = append(story.SourceMemoryIDs, m.ID)
	}
	return story
}

// reviewStep reviews a story through the critic's containment boundary,
// degrading to a disapproving result on failure.
func (c *Coordinator) reviewStep(ctx context.Context, workflowID string, story *memoir.Story) memoir.ReviewResult {
	return c.reviewValue(ctx, workflowID, pipeline.StoryValue(story))
}

func (c *Coordinator) reviewValue(ctx context.Context, workflowID string, in pipeline.Value) memoir.ReviewResult {
	out := c.runStage(ctx, c.criticRun, workflowID, StepReview, in)
	if out.Err != nil {
		return degradedReview()
	}
	return c.reviewer.LastReview()
}

// fixStory applies the best-effort repairs that follow a disapproval:
// chapters with an empty or too-short narrative are dropped and a missing
// or too-short title is replaced with a default.
func (c *Coordinator) fixStory(ctx context.Context, workflowID string, story *memoir.Story) *memoir.Story {
	fixed := *story
	fixed.Chapters = nil
	dropped := 0
	for _, ch := range story.Chapters {
		if len(strings.TrimSpace(ch.Narrative)) < minFixNarrativeLen {
			dropped++
			continue
		}
		fixed.Chapters = append(fixed.Chapters, ch)
	}
	retitled := false
	if len(strings.TrimSpace(fixed.Title)) < minFixTitleLen {
		fixed.Title = defaultStoryTitle
		retitled = true
	}

	c.recordStep(workflowID, StepFix, map[string]string{
		"chapters_dropped": strconv.Itoa(dropped),
		"retitled":         strconv.FormatBool(retitled),
		"success":          "true",
	})
	c.log.Debug(ctx, "fix pass applied",
		zap.Int("chapters_dropped", dropped),
		zap.Bool("retitled", retitled),
	)
	return &fixed
}

// errorResult terminates a workflow with an explicit error and the partial
// step log.
func (c *Coordinator) errorResult(ctx context.Context, kind, workflowID string, started time.Time, msg string) *WorkflowResult {
	duration := time.Since(started)
	c.metrics.recordWorkflow(ctx, kind, false, duration)
	c.log.Warn(ctx, "workflow failed", zap.String("kind", kind), zap.String("error", msg))
	return &WorkflowResult{
		Success:    false,
		Error:      msg,
		WorkflowID: workflowID,
		Duration:   duration,
		Steps:      c.Steps(workflowID),
	}
}

func requestMode(req *memoir.Request) memoir.NarrativeMode {
	if req != nil && req.Mode.Valid() {
		return req.Mode
	}
	return memoir.ModeChronological
}

// storyTitle derives a title from the request theme or query.
func storyTitle(req *memoir.Request) string {
	source := ""
	if req != nil {
		source = strings.TrimSpace(req.Theme)
		if source == "" {
			source = strings.TrimSpace(req.Query)
		}
	}
	if source == "" {
		return defaultStoryTitle
	}
	words := strings.Fields(source)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
