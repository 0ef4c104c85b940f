// Package coordinator orchestrates the storyloom pipeline.
//
// The Coordinator owns one instance of every stage and runs them through
// their safe-process boundary, recording a workflow step entry after every
// stage regardless of outcome. Nothing raises past the public operations;
// every path returns a structured WorkflowResult carrying the partial step
// log for diagnosis.
package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/storyloom/internal/archivist"
	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/critic"
	"github.com/fyrsmithlabs/storyloom/internal/director"
	"github.com/fyrsmithlabs/storyloom/internal/editor"
	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/narrator"
	"github.com/fyrsmithlabs/storyloom/internal/pipeline"
	"github.com/fyrsmithlabs/storyloom/internal/telemetry"
)

// Workflow step names as they appear in the step log.
const (
	StepSelect   = "select"
	StepSanitize = "sanitize"
	StepNarrate  = "narrate"
	StepSequence = "sequence"
	StepReview   = "review"
	StepFix      = "fix"
)

// ErrNotReady is returned when a workflow is requested before Initialize
// has succeeded for every stage.
var ErrNotReady = errors.New("coordinator not initialized")

// Coordinator drives the story and gallery workflows.
//
// One Coordinator serves one caller at a time per workflow, but the step
// log is guarded so concurrent callers sharing an instance stay safe.
type Coordinator struct {
	cfg *config.Config
	log *logging.Logger
	tel *telemetry.Telemetry

	tracer  oteltrace.Tracer
	metrics *metrics

	narrator narrator.Narrator
	reviewer *critic.Critic

	archivistRun *pipeline.Runner
	editorRun    *pipeline.Runner
	directorRun  *pipeline.Runner
	criticRun    *pipeline.Runner

	mu    sync.Mutex
	steps []memoir.WorkflowStep
	ready bool
}

// New assembles a coordinator with all stages constructed from cfg. A nil
// rng gives the director a time-seeded source; tests pass a fixed seed.
func New(cfg *config.Config, n narrator.Narrator, rng *rand.Rand, log *logging.Logger, tel *telemetry.Telemetry) *Coordinator {
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("coordinator")

	reviewer := critic.New(cfg.Critic, log)

	c := &Coordinator{
		cfg:      cfg,
		log:      log,
		tel:      tel,
		tracer:   tel.Tracer(instrumentationName),
		narrator: n,
		reviewer: reviewer,

		archivistRun: pipeline.NewRunner(archivist.New(cfg.Archivist, log), log),
		editorRun:    pipeline.NewRunner(editor.New(cfg.Editor, log), log),
		directorRun:  pipeline.NewRunner(director.New(cfg.Director, rng, log), log),
		criticRun:    pipeline.NewRunner(reviewer, log),
	}

	m, err := newMetrics(tel.Meter(instrumentationName))
	if err != nil {
		log.Warn(context.Background(), "metrics disabled")
	} else {
		c.metrics = m
	}
	return c
}

// Initialize sets up every stage. The coordinator refuses to run any
// workflow until all stages report success.
func (c *Coordinator) Initialize() error {
	runners := []*pipeline.Runner{c.archivistRun, c.editorRun, c.directorRun, c.criticRun}
	var errs []error
	for _, r := range runners {
		if err := r.Initialize(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// Ready reports whether every stage initialized successfully.
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// runStage invokes one runner inside a span and appends a step log entry
// with input/output counts and the success flag.
func (c *Coordinator) runStage(ctx context.Context, run *pipeline.Runner, workflowID, step string, in pipeline.Value) pipeline.Outcome {
	ctx, span := c.tracer.Start(ctx, "storyloom."+step)
	defer span.End()
	ctx = logging.WithStage(ctx, step)

	out := run.SafeProcess(ctx, in)

	md := map[string]string{
		"stage":        run.Name(),
		"input_count":  strconv.Itoa(in.Len()),
		"output_count": strconv.Itoa(out.Value.Len()),
		"success":      strconv.FormatBool(out.OK()),
	}
	if out.Err != nil {
		md["error"] = out.Err.Error()
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		c.metrics.recordStageFailure(ctx, step)
	}
	c.recordStep(workflowID, step, md)
	return out
}

// recordStep appends to the workflow step log.
func (c *Coordinator) recordStep(workflowID, step string, md map[string]string) {
	entry := memoir.WorkflowStep{
		WorkflowID: workflowID,
		Step:       step,
		Timestamp:  time.Now(),
		Metadata:   md,
	}
	c.mu.Lock()
	c.steps = append(c.steps, entry)
	c.mu.Unlock()
}

// Steps returns a copy of the step log entries for one workflow.
func (c *Coordinator) Steps(workflowID string) []memoir.WorkflowStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []memoir.WorkflowStep
	for _, s := range c.steps {
		if s.WorkflowID == workflowID {
			out = append(out, s)
		}
	}
	return out
}

// ProcessWithArchivist runs only the selection stage. Returns nil on any
// contained failure.
func (c *Coordinator) ProcessWithArchivist(ctx context.Context, req *memoir.Request) []memoir.Memory {
	out := c.archivistRun.SafeProcess(ctx, pipeline.RequestValue(req))
	if !out.OK() {
		return nil
	}
	return out.Value.Memories
}

// ProcessWithEditor runs only the sanitization stage.
func (c *Coordinator) ProcessWithEditor(ctx context.Context, memories []memoir.Memory) []memoir.Memory {
	out := c.editorRun.SafeProcess(ctx, pipeline.MemoriesValue(memories))
	if !out.OK() {
		return nil
	}
	return out.Value.Memories
}

// ProcessWithDirector runs only the sequencing stage. Returns the neutral
// empty value on failure.
func (c *Coordinator) ProcessWithDirector(ctx context.Context, in pipeline.Value) pipeline.Value {
	out := c.directorRun.SafeProcess(ctx, in)
	if !out.OK() {
		return pipeline.Empty()
	}
	return out.Value
}

// ProcessWithCritic runs only the review stage and returns the structured
// verdict; a contained failure degrades to a disapproving result.
func (c *Coordinator) ProcessWithCritic(ctx context.Context, in pipeline.Value) memoir.ReviewResult {
	if out := c.criticRun.SafeProcess(ctx, in); out.Err != nil {
		return degradedReview()
	}
	return c.reviewer.LastReview()
}

func degradedReview() memoir.ReviewResult {
	return memoir.ReviewResult{
		Approved:     false,
		Issues:       []string{"story review failed"},
		QualityScore: 0,
		Metadata:     map[string]string{},
		ReviewedAt:   time.Now(),
		Reviewer:     critic.ReviewerName,
	}
}
