// Package narrator turns a curated memory selection into story chapters.
//
// The Narrator is a collaborator interface so the composition backend can be
// swapped; the package ships a deterministic template implementation that
// runs without any external service.
package narrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
)

// ErrNoChapters is returned when composition yields nothing.
var ErrNoChapters = errors.New("narrator produced no chapters")

// Narrator composes chapters from sanitized memories.
type Narrator interface {
	// Name identifies the implementation in logs and step records.
	Name() string

	// Narrate builds chapters from the memories, honoring the request's
	// narrative mode and style. Returning an empty slice without error is
	// treated as ErrNoChapters by Stage.
	Narrate(ctx context.Context, memories []memoir.Memory, req *memoir.Request) ([]memoir.Chapter, error)
}

// Stage adapts a Narrator to the pipeline so its failures are contained the
// same way as every other stage. The request is captured at construction
// because the pipeline carries only the memory selection between stages.
type Stage struct {
	narrator Narrator
	req      *memoir.Request
	ready    bool
}

// NewStage wraps a narrator for one workflow run.
func NewStage(n Narrator, req *memoir.Request) *Stage {
	return &Stage{narrator: n, req: req}
}

func (s *Stage) Name() string { return s.narrator.Name() }

func (s *Stage) Initialize() error {
	if s.narrator == nil {
		return errors.New("no narrator configured")
	}
	s.ready = true
	return nil
}

func (s *Stage) Validate(in pipeline.Value) error {
	if in.Kind() != pipeline.KindMemories {
		return fmt.Errorf("%w: narrator needs memories, got %s", pipeline.ErrInvalidInput, in.Kind())
	}
	if len(in.Memories) == 0 {
		return fmt.Errorf("%w: empty memory selection", pipeline.ErrInvalidInput)
	}
	return nil
}

func (s *Stage) Process(ctx context.Context, in pipeline.Value) (pipeline.Value, error) {
	chapters, err := s.narrator.Narrate(ctx, in.Memories, s.req)
	if err != nil {
		return pipeline.Empty(), err
	}
	if len(chapters) == 0 {
		return pipeline.Empty(), ErrNoChapters
	}
	return pipeline.ChaptersValue(chapters), nil
}

var _ pipeline.Stage = (*Stage)(nil)
