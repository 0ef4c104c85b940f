package pipeline

import "github.com/fyrsmithlabs/storyloom/internal/memoir"

// Kind identifies which variant a Value carries. The set is closed: stages
// switch on Kind and treat anything they do not handle as invalid input.
type Kind string

const (
	KindNone     Kind = "none"
	KindStory    Kind = "story"
	KindChapters Kind = "chapters"
	KindMemories Kind = "memories"
	KindText     Kind = "text"
	KindRequest  Kind = "request"
)

// Value is the tagged union passed between pipeline stages. Exactly one
// member is set, matching Kind; the zero Value is the neutral empty result
// every stage returns on failure.
type Value struct {
	kind Kind

	Story    *memoir.Story
	Chapters []memoir.Chapter
	Memories []memoir.Memory
	Text     string
	Request  *memoir.Request

	// Mode annotates list variants with the narrative mode driving the
	// current workflow, for stages whose behavior is mode-dependent.
	Mode memoir.NarrativeMode
}

// WithMode returns a copy annotated with the narrative mode.
func (v Value) WithMode(m memoir.NarrativeMode) Value {
	v.Mode = m
	return v
}

// Empty returns the neutral value.
func Empty() Value {
	return Value{kind: KindNone}
}

// StoryValue wraps a story.
func StoryValue(s *memoir.Story) Value {
	return Value{kind: KindStory, Story: s}
}

// ChaptersValue wraps a chapter list.
func ChaptersValue(cs []memoir.Chapter) Value {
	return Value{kind: KindChapters, Chapters: cs}
}

// MemoriesValue wraps a memory list.
func MemoriesValue(ms []memoir.Memory) Value {
	return Value{kind: KindMemories, Memories: ms}
}

// TextValue wraps free text.
func TextValue(t string) Value {
	return Value{kind: KindText, Text: t}
}

// RequestValue wraps a generation request.
func RequestValue(r *memoir.Request) Value {
	return Value{kind: KindRequest, Request: r}
}

// Kind returns the variant tag. The zero Value reports KindNone.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNone
	}
	return v.kind
}

// IsEmpty reports whether the value carries nothing usable: the none variant,
// a nil story or request, an empty list, or empty text.
func (v Value) IsEmpty() bool {
	switch v.Kind() {
	case KindStory:
		return v.Story == nil
	case KindChapters:
		return len(v.Chapters) == 0
	case KindMemories:
		return len(v.Memories) == 0
	case KindText:
		return v.Text == ""
	case KindRequest:
		return v.Request == nil
	default:
		return true
	}
}

// Len returns the element count for list variants, 1 for set scalar
// variants, and 0 for empty values. Used for step-log bookkeeping.
func (v Value) Len() int {
	switch v.Kind() {
	case KindChapters:
		return len(v.Chapters)
	case KindMemories:
		return len(v.Memories)
	case KindStory:
		if v.Story == nil {
			return 0
		}
		return 1
	case KindText:
		if v.Text == "" {
			return 0
		}
		return 1
	case KindRequest:
		if v.Request == nil {
			return 0
		}
		return 1
	default:
		return 0
	}
}
