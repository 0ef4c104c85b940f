// Package memoir defines the data model shared across the storyloom pipeline:
// memory records supplied by callers, the stories and chapters the pipeline
// produces, and the review verdicts attached to them.
//
// Memory records are value objects. Every field that a source system may omit
// has a defined zero value, so accessors are total: a missing score reads as
// 0.0, a missing tag list as nil. No part of the pipeline performs presence
// checks on a Memory.
package memoir

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for memoir values.
var (
	ErrEmptyStoryID   = errors.New("story ID cannot be empty")
	ErrEmptyChapterID = errors.New("chapter ID cannot be empty")
	ErrNoChapters     = errors.New("story has no chapters")
	ErrInvalidMode    = errors.New("narrative mode must be one of chronological, thematic, people-centered, place-centered")
)

// NarrativeMode is the organizing principle for a story.
type NarrativeMode string

const (
	ModeChronological  NarrativeMode = "chronological"
	ModeThematic       NarrativeMode = "thematic"
	ModePeopleCentered NarrativeMode = "people-centered"
	ModePlaceCentered  NarrativeMode = "place-centered"
)

// AllModes returns the narrative modes accepted by request validation.
func AllModes() []NarrativeMode {
	return []NarrativeMode{ModeChronological, ModeThematic, ModePeopleCentered, ModePlaceCentered}
}

// Valid reports whether the mode is one of the enumerated values.
func (m NarrativeMode) Valid() bool {
	switch m {
	case ModeChronological, ModeThematic, ModePeopleCentered, ModePlaceCentered:
		return true
	}
	return false
}

// Memory is one personal-history event (photo, post, workout, journal entry)
// with optional narrative and emotional metadata. Callers create memories;
// the pipeline only reads them.
type Memory struct {
	// ID identifies the memory in the caller's system.
	ID string `json:"id,omitempty"`

	// Type is the source record type (e.g. "photo", "post", "workout").
	Type string `json:"type,omitempty"`

	// Timestamp is when the event happened. Zero when unknown.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Source names the system the record was imported from.
	Source string `json:"source,omitempty"`

	// Text is the free-text body of the record.
	Text string `json:"text,omitempty"`

	// Tags are plain labels attached by the source system.
	Tags []string `json:"tags,omitempty"`

	// Themes are thematic tags used for grouping and theme matching.
	Themes []string `json:"themes,omitempty"`

	// NarrativeSignificance scores how story-worthy the event is (0.0-1.0).
	NarrativeSignificance float64 `json:"narrative_significance,omitempty"`

	// StoryPotential scores how well the event anchors a narrative (0.0-1.0).
	StoryPotential float64 `json:"story_potential,omitempty"`

	// Emotions maps emotional labels to intensity (0.0-1.0).
	Emotions map[string]float64 `json:"emotions,omitempty"`

	// LifePhase is a coarse label such as "college" or "new parent".
	LifePhase string `json:"life_phase,omitempty"`

	// PhotoPaths and VideoPaths reference media belonging to the event.
	PhotoPaths []string `json:"photo_paths,omitempty"`
	VideoPaths []string `json:"video_paths,omitempty"`

	// People lists people tagged in the event.
	People []string `json:"people,omitempty"`
}

// HasMedia reports whether the memory references any photo or video.
func (m Memory) HasMedia() bool {
	return len(m.PhotoPaths) > 0 || len(m.VideoPaths) > 0
}

// Chapter is one narrative unit of a story.
type Chapter struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Narrative  string   `json:"narrative"`
	MediaPaths []string `json:"media_paths,omitempty"`

	// DurationSeconds is the presentation length. After pacing it must lie
	// within the configured chapter duration bounds.
	DurationSeconds float64 `json:"duration_seconds"`

	// Tone is the emotional tone label (e.g. "peaceful", "joyful").
	Tone string `json:"tone,omitempty"`
}

// MediaRichness counts the media references attached to the chapter.
func (c Chapter) MediaRichness() int {
	return len(c.MediaPaths)
}

// Story is a finished narrative artifact built from selected memories.
type Story struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Mode            NarrativeMode `json:"narrative_mode"`
	Chapters        []Chapter     `json:"chapters"`
	SourceMemoryIDs []string      `json:"source_memory_ids"`
	CreatedAt       time.Time     `json:"created_at"`

	// NarrationAudio references a rendered narration track, when present.
	NarrationAudio string `json:"narration_audio,omitempty"`
}

// NewStory creates a story with a generated ID and creation timestamp.
func NewStory(title string, mode NarrativeMode) *Story {
	return &Story{
		ID:        uuid.New().String(),
		Title:     title,
		Mode:      mode,
		CreatedAt: time.Now(),
	}
}

// Successful reports whether the story carries at least one chapter.
func (s *Story) Successful() bool {
	return s != nil && len(s.Chapters) > 0
}

// TotalDuration sums the chapter durations in seconds.
func (s *Story) TotalDuration() float64 {
	var total float64
	for _, c := range s.Chapters {
		total += c.DurationSeconds
	}
	return total
}

// Validate checks structural integrity of a story.
func (s *Story) Validate() error {
	if s.ID == "" {
		return ErrEmptyStoryID
	}
	if !s.Mode.Valid() {
		return ErrInvalidMode
	}
	if len(s.Chapters) == 0 {
		return ErrNoChapters
	}
	for _, c := range s.Chapters {
		if c.ID == "" {
			return ErrEmptyChapterID
		}
	}
	return nil
}

// ReviewResult is the critic's verdict on a story, chapter, memory selection,
// free text, or request.
type ReviewResult struct {
	Approved     bool              `json:"approved"`
	Issues       []string          `json:"issues"`
	QualityScore float64           `json:"quality_score"`
	Metadata     map[string]string `json:"metadata"`
	ReviewedAt   time.Time         `json:"reviewed_at"`
	Reviewer     string            `json:"reviewer"`
}

// WorkflowStep is one append-only entry in a coordinator's step log.
type WorkflowStep struct {
	WorkflowID string            `json:"workflow_id"`
	Step       string            `json:"step"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
