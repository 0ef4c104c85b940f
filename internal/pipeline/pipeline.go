// Package pipeline defines the stage contract shared by every agent in the
// storyloom pipeline and the safe-execution wrapper that contains failures.
//
// A Stage implements the transform; a Runner owns the lifecycle around it:
// initialization, structural validation, panic containment, and an
// append-only processing history. No error escapes a Runner — callers
// pattern-match on the returned Outcome instead.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"go.uber.org/zap"
)

// Stage is the capability contract every pipeline agent implements.
type Stage interface {
	// Name returns the stage identifier used in logs and step entries.
	Name() string

	// Initialize performs stage-specific setup. It must be idempotent.
	Initialize() error

	// Validate performs a cheap structural check on the input.
	Validate(in Value) error

	// Process runs the stage transform.
	Process(ctx context.Context, in Value) (Value, error)
}

// Outcome is the result of a safe stage call. Exactly one of Value being
// non-empty or Err being set is the normal case; on failure Value is the
// neutral empty value.
type Outcome struct {
	Value Value
	Err   error
}

// OK reports whether the call produced a usable value.
func (o Outcome) OK() bool {
	return o.Err == nil && !o.Value.IsEmpty()
}

// Record is one append-only history entry for a stage call.
type Record struct {
	Stage      string        `json:"stage"`
	InputKind  Kind          `json:"input_kind"`
	OutputKind Kind          `json:"output_kind"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Success    bool          `json:"success"`
}

// Runner wraps a Stage with the uniform failure-containment boundary.
// It is safe for concurrent use; history appends are guarded.
type Runner struct {
	stage Stage
	log   *logging.Logger

	mu          sync.Mutex
	initialized bool
	history     []Record
}

// NewRunner wraps a stage. The runner is not ready until Initialize succeeds.
func NewRunner(stage Stage, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.NewNop()
	}
	return &Runner{
		stage: stage,
		log:   log.Named(stage.Name()),
	}
}

// Name returns the wrapped stage's identifier.
func (r *Runner) Name() string {
	return r.stage.Name()
}

// Initialize runs stage setup once. Repeat calls after success are no-ops.
func (r *Runner) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	if err := r.stage.Initialize(); err != nil {
		return fmt.Errorf("initialize %s: %w", r.stage.Name(), err)
	}
	r.initialized = true
	return nil
}

// Initialized reports whether the runner is ready to process.
func (r *Runner) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// SafeProcess runs the stage transform inside the containment boundary.
//
// It fails fast when the stage is not initialized, returns the neutral empty
// value on invalid input or any processing error (including panics), and
// appends exactly one history record per call. It never panics and the
// returned Outcome's Err is one of the pipeline sentinels or a wrapped
// processing error — callers decide whether that is fatal.
func (r *Runner) SafeProcess(ctx context.Context, in Value) Outcome {
	started := time.Now()
	rec := Record{
		Stage:     r.stage.Name(),
		InputKind: in.Kind(),
		StartedAt: started,
	}

	if !r.Initialized() {
		rec.Error = ErrNotInitialized.Error()
		r.append(rec)
		return Outcome{Value: Empty(), Err: fmt.Errorf("%s: %w", r.stage.Name(), ErrNotInitialized)}
	}

	if err := r.stage.Validate(in); err != nil {
		rec.Duration = time.Since(started)
		rec.Error = err.Error()
		r.append(rec)
		r.log.Warn(ctx, "input rejected", zap.String("kind", string(in.Kind())), zap.Error(err))
		return Outcome{Value: Empty(), Err: fmt.Errorf("%s: %w", r.stage.Name(), ErrInvalidInput)}
	}

	if err := ctx.Err(); err != nil {
		rec.Duration = time.Since(started)
		rec.Error = err.Error()
		r.append(rec)
		return Outcome{Value: Empty(), Err: fmt.Errorf("%s: %w", r.stage.Name(), ErrCancelled)}
	}

	out, err := r.runGuarded(ctx, in)
	rec.Duration = time.Since(started)
	if err != nil {
		rec.Error = err.Error()
		r.append(rec)
		r.log.Error(ctx, "stage failed", zap.Error(err))
		return Outcome{Value: Empty(), Err: fmt.Errorf("%s: %w", r.stage.Name(), err)}
	}

	rec.OutputKind = out.Kind()
	rec.Success = true
	r.append(rec)
	r.log.Debug(ctx, "stage complete",
		zap.String("input_kind", string(in.Kind())),
		zap.String("output_kind", string(out.Kind())),
		zap.Duration("duration", rec.Duration),
	)
	return Outcome{Value: out}
}

// runGuarded calls Process with panic recovery.
func (r *Runner) runGuarded(ctx context.Context, in Value) (out Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Empty()
			err = fmt.Errorf("stage panic: %v", rec)
		}
	}()
	return r.stage.Process(ctx, in)
}

// History returns a copy of the processing history.
func (r *Runner) History() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Runner) append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, rec)
}
