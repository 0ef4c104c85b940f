package memoir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrativeModeValid(t *testing.T) {
	for _, m := range AllModes() {
		assert.True(t, m.Valid(), "mode %s", m)
	}
	assert.False(t, NarrativeMode("reverse-chronological").Valid())
	assert.False(t, NarrativeMode("").Valid())
}

func TestNewStory(t *testing.T) {
	s := NewStory("Summer 2024", ModeThematic)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Summer 2024", s.Title)
	assert.Equal(t, ModeThematic, s.Mode)
	assert.False(t, s.CreatedAt.IsZero())
	assert.False(t, s.Successful())
}

func TestStoryValidate(t *testing.T) {
	valid := NewStory("t", ModeChronological)
	valid.Chapters = []Chapter{{ID: "c1", Narrative: "text"}}

	tests := []struct {
		name    string
		mutate  func(*Story)
		wantErr error
	}{
		{"valid", func(s *Story) {}, nil},
		{"empty id", func(s *Story) { s.ID = "" }, ErrEmptyStoryID},
		{"bad mode", func(s *Story) { s.Mode = "spiral" }, ErrInvalidMode},
		{"no chapters", func(s *Story) { s.Chapters = nil }, ErrNoChapters},
		{"chapter without id", func(s *Story) { s.Chapters = []Chapter{{Narrative: "x"}} }, ErrEmptyChapterID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := *valid
			s.Chapters = append([]Chapter(nil), valid.Chapters...)
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestStoryTotalDuration(t *testing.T) {
	s := &Story{Chapters: []Chapter{
		{DurationSeconds: 30},
		{DurationSeconds: 45.5},
	}}
	assert.InDelta(t, 75.5, s.TotalDuration(), 1e-9)
}

func TestMemoryHasMedia(t *testing.T) {
	assert.False(t, Memory{}.HasMedia())
	assert.True(t, Memory{PhotoPaths: []string{"a.jpg"}}.HasMedia())
	assert.True(t, Memory{VideoPaths: []string{"b.mp4"}}.HasMedia())
}

func TestTimeRangeContains(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	r := TimeRange{Start: start, End: end}

	require.False(t, r.IsZero())
	assert.True(t, r.Contains(start))
	assert.True(t, r.Contains(end))
	assert.True(t, r.Contains(start.AddDate(0, 0, 15)))
	assert.False(t, r.Contains(start.Add(-time.Second)))
	assert.False(t, r.Contains(end.Add(time.Second)))
}

func TestTimeRangeZero(t *testing.T) {
	var r TimeRange
	assert.True(t, r.IsZero())
}
