package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/narrator"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

func newTestCoordinator(t *testing.T, n narrator.Narrator, mutate func(*config.Config)) *Coordinator {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	if n == nil {
		n = narrator.NewTemplate(nil)
	}
	c := New(cfg, n, nil, nil, nil)
	require.NoError(t, c.Initialize())
	return c
}

func goodRequest() *memoir.Request {
	now := time.Now()
	return &memoir.Request{
		Theme: "memories from your summers by the lake",
		Mode:  memoir.ModeChronological,
		AvailableMemories: []memoir.Memory{
			{
				ID:                    "m-lake",
				Text:                  "We spent a slow afternoon drifting across the lake in the old canoe.",
				Timestamp:             now.AddDate(0, 0, -60),
				NarrativeSignificance: 0.9,
				StoryPotential:        0.8,
			},
			{
				ID:                    "m-porch",
				Text:                  "The family gathered on the porch for one last dinner before autumn.",
				Timestamp:             now.AddDate(0, 0, -200),
				NarrativeSignificance: 0.9,
				StoryPotential:        0.8,
			},
		},
	}
}

func TestGenerateStorySuccess(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	result := c.GenerateStory(context.Background(), goodRequest())

	require.True(t, result.Success, result.Error)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.WorkflowID)
	require.NotNil(t, result.Story)
	assert.Equal(t, "Memories From Your Summers By The Lake", result.Story.Title)
	assert.Len(t, result.Story.SourceMemoryIDs, 2)
	assert.Equal(t, 2, result.MemoriesProcessed)
	assert.Equal(t, 2, result.MemoriesSelected)
	assert.Equal(t, 2, result.MemoriesFiltered)
	assert.Equal(t, 2, result.ChaptersGenerated)
	require.NotNil(t, result.CriticApproval)
	assert.True(t, result.CriticApproval.Approved, strings.Join(result.CriticApproval.Issues, "; "))

	steps := stepNames(result.Steps)
	assert.Contains(t, steps, StepSelect)
	assert.Contains(t, steps, StepSanitize)
	assert.Contains(t, steps, StepNarrate)
	assert.Contains(t, steps, StepSequence)
	assert.Contains(t, steps, StepReview)
}

func TestGenerateStoryNoMemoriesSelected(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	result := c.GenerateStory(context.Background(), &memoir.Request{})

	assert.False(t, result.Success)
	assert.Equal(t, "No memories selected by archivist", result.Error)
	assert.Nil(t, result.Story)
	assert.Contains(t, stepNames(result.Steps), StepSelect)
}

func TestGenerateStoryNoMemoriesFiltered(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	req := goodRequest()
	for i := range req.AvailableMemories {
		req.AvailableMemories[i].Text = "I wrote the shared password on a sticky note that week."
	}

	result := c.GenerateStory(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, "No memories passed editor filtering", result.Error)
}

func TestGenerateStoryNoChapters(t *testing.T) {
	c := newTestCoordinator(t, stubNarrator{}, nil)

	result := c.GenerateStory(context.Background(), goodRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Narrator produced no chapters", result.Error)
	assert.Contains(t, stepNames(result.Steps), StepNarrate)
}

func TestGenerateStoryNotReady(t *testing.T) {
	c := New(config.Default(), narrator.NewTemplate(nil), nil, nil, nil)

	result := c.GenerateStory(context.Background(), goodRequest())

	assert.False(t, result.Success)
	assert.Equal(t, ErrNotReady.Error(), result.Error)
}

func TestGenerateStoryFixPassDropsWeakChapter(t *testing.T) {
	n := stubNarrator{chapters: []memoir.Chapter{
		{
			ID:              "keep",
			Title:           "Morning Light",
			Narrative:       "On that day, the morning from your photos opened with slow light across the water.",
			Tone:            "peaceful",
			DurationSeconds: 45,
		},
		{
			ID:              "drop",
			Title:           "Fragment",
			Narrative:       "Too short",
			Tone:            "reflective",
			DurationSeconds: 45,
		},
	}}
	c := newTestCoordinator(t, n, nil)

	req := goodRequest()
	req.Theme = "memories from your quiet seasons"
	result := c.GenerateStory(context.Background(), req)

	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.CriticApproval)
	assert.True(t, result.CriticApproval.Approved, strings.Join(result.CriticApproval.Issues, "; "))
	assert.Equal(t, 1, result.ChaptersGenerated)
	assert.Equal(t, "keep", result.Story.Chapters[0].ID)

	steps := stepNames(result.Steps)
	assert.Contains(t, steps, StepFix)
	assert.Equal(t, 2, countStep(result.Steps, StepReview))
}

func TestGenerateStoryRequireApproval(t *testing.T) {
	n := stubNarrator{chapters: []memoir.Chapter{{
		ID:              "c1",
		Title:           "Advice",
		Narrative:       "Looking back now it is obvious you are stronger than that whole year.",
		Tone:            "reflective",
		DurationSeconds: 45,
	}}}
	c := newTestCoordinator(t, n, func(cfg *config.Config) {
		cfg.Critic.RequireApproval = true
	})

	result := c.GenerateStory(context.Background(), goodRequest())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "story rejected by critic:")
	require.NotNil(t, result.CriticApproval)
	assert.False(t, result.CriticApproval.Approved)
}

func TestGenerateGallery(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	result := c.GenerateGallery(context.Background(), goodRequest())

	require.True(t, result.Success)
	assert.Nil(t, result.Story)
	require.Len(t, result.Memories, 2)
	// Chronological sequencing puts the older memory first.
	assert.Equal(t, "m-porch", result.Memories[0].ID)
	require.NotNil(t, result.CriticApproval)
	assert.True(t, result.CriticApproval.Approved, strings.Join(result.CriticApproval.Issues, "; "))

	steps := stepNames(result.Steps)
	assert.Contains(t, steps, StepSequence)
	assert.Contains(t, steps, StepReview)
	assert.NotContains(t, steps, StepNarrate)
}

func TestStepsAreScopedToWorkflow(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	first := c.GenerateStory(context.Background(), goodRequest())
	second := c.GenerateStory(context.Background(), goodRequest())

	require.NotEqual(t, first.WorkflowID, second.WorkflowID)
	for _, s := range c.Steps(first.WorkflowID) {
		assert.Equal(t, first.WorkflowID, s.WorkflowID)
	}
	assert.Len(t, c.Steps(second.WorkflowID), len(second.Steps))
}

func TestProcessWithArchivist(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	memories := c.ProcessWithArchivist(context.Background(), goodRequest())
	assert.Len(t, memories, 2)

	assert.Nil(t, c.ProcessWithArchivist(context.Background(), &memoir.Request{}))
}

func TestProcessWithCritic(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	result := c.ProcessWithCritic(context.Background(), pipeline.MemoriesValue(nil))
	assert.False(t, result.Approved)
	assert.Contains(t, result.Issues, "no memories selected")
}

func TestValidateRequest(t *testing.T) {
	c := newTestCoordinator(t, nil, nil)

	tests := []struct {
		name  string
		req   *memoir.Request
		valid bool
		issue string
	}{
		{name: "nil request", req: nil, valid: false, issue: "request is nil"},
		{name: "empty pool", req: &memoir.Request{}, valid: false, issue: "available_memories"},
		{
			name: "missing id and timestamp",
			req: &memoir.Request{AvailableMemories: []memoir.Memory{
				{Text: "something happened"},
			}},
			valid: false,
			issue: "memory 1: missing id",
		},
		{
			name: "significance out of range",
			req: &memoir.Request{AvailableMemories: []memoir.Memory{
				{ID: "m1", Timestamp: time.Now(), NarrativeSignificance: 1.5},
			}},
			valid: false,
			issue: "narrative_significance",
		},
		{
			name: "invalid mode",
			req: &memoir.Request{
				Mode:              "spiral",
				AvailableMemories: goodRequest().AvailableMemories,
			},
			valid: false,
			issue: "narrative_mode",
		},
		{
			name: "negative max results",
			req: &memoir.Request{
				MaxResults:        -1,
				AvailableMemories: goodRequest().AvailableMemories,
			},
			valid: false,
			issue: "max_results",
		},
		{
			name: "inverted time range",
			req: &memoir.Request{
				TimeRange: memoir.TimeRange{
					Start: time.Now(),
					End:   time.Now().AddDate(-1, 0, 0),
				},
				AvailableMemories: goodRequest().AvailableMemories,
			},
			valid: false,
			issue: "time_range end precedes start",
		},
		{name: "valid", req: goodRequest(), valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, issues := c.ValidateRequest(tt.req)
			assert.Equal(t, tt.valid, valid)
			if tt.issue != "" {
				assert.Contains(t, strings.Join(issues, "; "), tt.issue)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

type stubNarrator struct {
	chapters []memoir.Chapter
	err      error
}

func (s stubNarrator) Name() string { return "stub-narrator" }
func (s stubNarrator) Narrate(context.Context, []memoir.Memory, *memoir.Request) ([]memoir.Chapter, error) {
	return s.chapters, s.err
}

func stepNames(steps []memoir.WorkflowStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Step
	}
	return out
}

func countStep(steps []memoir.WorkflowStep, name string) int {
	n := 0
	for _, s := range steps {
		if s.Step == name {
			n++
		}
	}
	return n
}
