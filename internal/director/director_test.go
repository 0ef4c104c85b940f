package director

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

func newTestDirector(t *testing.T, mutate func(*config.DirectorConfig)) *Director {
	t.Helper()
	cfg := config.Default().Director
	if mutate != nil {
		mutate(&cfg)
	}
	d := New(cfg, rand.New(rand.NewSource(42)), nil)
	require.NoError(t, d.Initialize())
	return d
}

func TestTransitionScore(t *testing.T) {
	d := newTestDirector(t, nil)

	assert.Equal(t, 0.9, d.TransitionScore("peaceful", "reflective"))
	assert.Equal(t, 0.5, d.TransitionScore("joyful", "joyful"))
	assert.Equal(t, 0.3, d.TransitionScore("peaceful", "excited"))
	assert.Equal(t, 0.3, d.TransitionScore("unknown", "peaceful"))
}

func TestDurationBalance(t *testing.T) {
	assert.Equal(t, 1.0, durationBalance(30, 30))
	assert.Equal(t, 0.5, durationBalance(30, 60))
	assert.Equal(t, 0.5, durationBalance(60, 30))
	assert.Equal(t, 0.0, durationBalance(0, 30))
}

func TestSequenceChaptersFollowsBestTransitions(t *testing.T) {
	d := newTestDirector(t, nil)

	chapters := []memoir.Chapter{
		{ID: "a", Tone: "peaceful", DurationSeconds: 30},
		{ID: "b", Tone: "joyful", DurationSeconds: 30},
		{ID: "c", Tone: "reflective", DurationSeconds: 30},
	}

	out := d.SequenceChapters(chapters)

	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID, "peaceful to reflective is the strongest listed transition")
	assert.Equal(t, "b", out[2].ID)
}

func TestSequenceChaptersDeterministicOnTies(t *testing.T) {
	d := newTestDirector(t, nil)

	chapters := []memoir.Chapter{
		{ID: "a", Tone: "neutral", DurationSeconds: 30},
		{ID: "b", Tone: "neutral2", DurationSeconds: 30},
		{ID: "c", Tone: "neutral3", DurationSeconds: 30},
	}

	first := d.SequenceChapters(chapters)
	second := d.SequenceChapters(chapters)
	assert.Equal(t, first, second)
	assert.Equal(t, "b", first[1].ID, "ties keep the first-encountered index")
}

func TestApplyPacingZones(t *testing.T) {
	d := newTestDirector(t, nil)

	chapters := []memoir.Chapter{
		{ID: "open", DurationSeconds: 50},
		{ID: "mid", DurationSeconds: 50},
		{ID: "close", DurationSeconds: 50},
	}

	out := d.ApplyPacing(chapters)

	require.Len(t, out, 3)
	assert.InDelta(t, 60.0, out[0].DurationSeconds, 1e-9)
	assert.InDelta(t, 45.0, out[1].DurationSeconds, 1e-9)
	assert.InDelta(t, 45.0, out[2].DurationSeconds, 1e-9)
}

func TestApplyPacingClampsToBounds(t *testing.T) {
	d := newTestDirector(t, nil)

	out := d.ApplyPacing([]memoir.Chapter{
		{ID: "short", DurationSeconds: 2},
		{ID: "long", DurationSeconds: 500},
	})

	for _, c := range out {
		assert.GreaterOrEqual(t, c.DurationSeconds, d.cfg.MinChapterDuration)
		assert.LessOrEqual(t, c.DurationSeconds, d.cfg.MaxChapterDuration)
	}
}

func TestApplyPacingProfiles(t *testing.T) {
	slow := newTestDirector(t, func(c *config.DirectorConfig) { c.Pacing = "slow" })
	fast := newTestDirector(t, func(c *config.DirectorConfig) { c.Pacing = "fast" })

	in := []memoir.Chapter{{DurationSeconds: 50}, {DurationSeconds: 50}, {DurationSeconds: 50}}

	slowOut := slow.ApplyPacing(in)
	fastOut := fast.ApplyPacing(in)
	assert.Greater(t, slowOut[1].DurationSeconds, fastOut[1].DurationSeconds)
}

func TestDistributeMediaBalanced(t *testing.T) {
	d := newTestDirector(t, nil)

	chapters := []memoir.Chapter{
		{ID: "a", MediaPaths: []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg", "7.jpg"}},
		{ID: "b"},
		{ID: "c"},
	}

	out := d.DistributeMedia(chapters)

	assert.Len(t, out[0].MediaPaths, 3)
	assert.Len(t, out[1].MediaPaths, 2)
	assert.Len(t, out[2].MediaPaths, 2)
}

func TestDistributeMediaFrontLoaded(t *testing.T) {
	d := newTestDirector(t, func(c *config.DirectorConfig) { c.MediaStrategy = "front_loaded" })

	chapters := []memoir.Chapter{
		{ID: "a"},
		{ID: "b", MediaPaths: []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg"}},
		{ID: "c"},
	}

	out := d.DistributeMedia(chapters)

	assert.Len(t, out[0].MediaPaths, 3)
	assert.Len(t, out[1].MediaPaths, 2)
	assert.Len(t, out[2].MediaPaths, 1)
}

func TestDistributeMediaScatteredPreservesPool(t *testing.T) {
	cfg := config.Default().Director
	cfg.MediaStrategy = "scattered"

	pool := []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"}
	chapters := []memoir.Chapter{
		{ID: "a", MediaPaths: append([]string(nil), pool...)},
		{ID: "b"},
		{ID: "c"},
	}

	d1 := New(cfg, rand.New(rand.NewSource(7)), nil)
	require.NoError(t, d1.Initialize())
	d2 := New(cfg, rand.New(rand.NewSource(7)), nil)
	require.NoError(t, d2.Initialize())

	out1 := d1.DistributeMedia(chapters)
	out2 := d2.DistributeMedia(chapters)

	var all []string
	for _, c := range out1 {
		all = append(all, c.MediaPaths...)
	}
	assert.ElementsMatch(t, pool, all, "no media lost or duplicated")
	assert.Equal(t, out1, out2, "same seed yields the same scatter")
}

func TestOptimizeFlowPlacesJoyfulAtPeak(t *testing.T) {
	d := newTestDirector(t, nil)

	chapters := []memoir.Chapter{
		{ID: "reflect", Tone: "reflective", DurationSeconds: 30},
		{ID: "joy", Tone: "joyful", DurationSeconds: 30},
		{ID: "hope", Tone: "hopeful", DurationSeconds: 30},
		{ID: "peace", Tone: "peaceful", DurationSeconds: 30},
	}

	out := d.OptimizeFlow(chapters)

	require.Len(t, out, 4)
	assert.Equal(t, "peace", out[0].ID)
	assert.Equal(t, "hope", out[1].ID)
	assert.Equal(t, "joy", out[2].ID, "joyful belongs at the peak position")
	assert.Equal(t, "reflect", out[3].ID)
}

func TestSelectPattern(t *testing.T) {
	d := newTestDirector(t, nil)

	crescendo := d.selectPattern([]memoir.Chapter{
		{Tone: "peaceful"}, {Tone: "joyful"}, {Tone: "hopeful"},
	})
	assert.Equal(t, flowPatterns["crescendo"], crescendo)

	joyDominant := d.selectPattern([]memoir.Chapter{{Tone: "joyful"}, {Tone: "joyful"}})
	assert.Equal(t, flowPatterns["crescendo"], joyDominant)

	arc := d.selectPattern([]memoir.Chapter{{Tone: "peaceful"}, {Tone: "nostalgic"}})
	assert.Equal(t, flowPatterns["gentle_arc"], arc)

	steady := d.selectPattern([]memoir.Chapter{{Tone: "peaceful"}, {Tone: "peaceful"}})
	assert.Equal(t, flowPatterns["steady"], steady)
}

func TestSequenceMemoriesChronological(t *testing.T) {
	d := newTestDirector(t, nil)
	now := time.Now()

	out := d.SequenceMemories([]memoir.Memory{
		{ID: "new", Timestamp: now},
		{ID: "old", Timestamp: now.AddDate(-1, 0, 0)},
		{ID: "mid", Timestamp: now.AddDate(0, -6, 0)},
	}, memoir.ModeChronological)

	assert.Equal(t, []string{"old", "mid", "new"}, ids(out))
}

func TestSequenceMemoriesThematic(t *testing.T) {
	d := newTestDirector(t, nil)
	now := time.Now()

	out := d.SequenceMemories([]memoir.Memory{
		{ID: "untagged", Timestamp: now},
		{ID: "travel2", Themes: []string{"travel"}, Timestamp: now},
		{ID: "family1", Themes: []string{"family"}, Timestamp: now},
		{ID: "travel1", Themes: []string{"travel"}, Timestamp: now.AddDate(0, -1, 0)},
	}, memoir.ModeThematic)

	assert.Equal(t, []string{"family1", "travel1", "travel2", "untagged"}, ids(out))
}

func TestSequenceMemoriesNarrativeFlow(t *testing.T) {
	d := newTestDirector(t, nil)

	out := d.SequenceMemories([]memoir.Memory{
		{ID: "weak", NarrativeSignificance: 0.1, StoryPotential: 0.1},
		{ID: "strong", NarrativeSignificance: 0.9, StoryPotential: 0.8},
		{ID: "middle", NarrativeSignificance: 0.5, StoryPotential: 0.5},
	}, memoir.ModePeopleCentered)

	assert.Equal(t, []string{"strong", "middle", "weak"}, ids(out))
}

func TestProcessMemoriesKeepsModeAnnotation(t *testing.T) {
	d := newTestDirector(t, nil)

	in := pipeline.MemoriesValue([]memoir.Memory{{ID: "m1"}}).WithMode(memoir.ModeThematic)
	out, err := d.Process(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, pipeline.KindMemories, out.Kind())
	assert.Equal(t, memoir.ModeThematic, out.Mode)
}

func TestProcessStoryRunsFullSequencing(t *testing.T) {
	d := newTestDirector(t, nil)

	story := &memoir.Story{
		ID:   "s1",
		Mode: memoir.ModeChronological,
		Chapters: []memoir.Chapter{
			{ID: "c1", Tone: "peaceful", DurationSeconds: 50},
			{ID: "c2", Tone: "joyful", DurationSeconds: 50},
		},
	}

	out, err := d.Process(context.Background(), pipeline.StoryValue(story))

	require.NoError(t, err)
	require.Equal(t, pipeline.KindStory, out.Kind())
	assert.Len(t, out.Story.Chapters, 2)
	for _, c := range out.Story.Chapters {
		assert.GreaterOrEqual(t, c.DurationSeconds, d.cfg.MinChapterDuration)
		assert.LessOrEqual(t, c.DurationSeconds, d.cfg.MaxChapterDuration)
	}
	// Input story untouched.
	assert.Equal(t, 50.0, story.Chapters[0].DurationSeconds)
}

func ids(memories []memoir.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}
