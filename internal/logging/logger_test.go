package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerValidatesConfig(t *testing.T) {
	_, err := NewLogger(&Config{Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")

	log, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestContextFieldsAttached(t *testing.T) {
	log := NewTestLogger()

	ctx := WithWorkflowID(context.Background(), "wf-123")
	ctx = WithStage(ctx, "select")
	log.Info(ctx, "stage started")

	log.AssertLogged(t, zapcore.InfoLevel, "stage started")
	log.AssertField(t, "stage started", "workflow_id", "wf-123")
	log.AssertField(t, "stage started", "stage", "select")
}

func TestContextFieldsEmptyContext(t *testing.T) {
	assert.Nil(t, ContextFields(nil))
	assert.Empty(t, ContextFields(context.Background()))
}

func TestWorkflowID(t *testing.T) {
	assert.Empty(t, WorkflowID(context.Background()))
	ctx := WithWorkflowID(context.Background(), "wf-9")
	assert.Equal(t, "wf-9", WorkflowID(ctx))
}

func TestNamedAndWith(t *testing.T) {
	log := NewTestLogger()

	child := log.Named("critic").With(zap.String("component", "gate"))
	child.Warn(context.Background(), "rule tripped")

	entries := log.FilterMessage("rule tripped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "critic", entries[0].LoggerName)
	log.AssertField(t, "rule tripped", "component", "gate")
}

func TestExplicitFieldsFollowContextFields(t *testing.T) {
	log := NewTestLogger()

	ctx := WithWorkflowID(context.Background(), "wf-1")
	log.Debug(ctx, "scored", zap.Int("memories", 4))

	entries := log.FilterMessage("scored").All()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Context, 2)
	assert.Equal(t, "workflow_id", entries[0].Context[0].Key)
	assert.Equal(t, "memories", entries[0].Context[1].Key)
}

func TestNopLoggerIsSilentAndSafe(t *testing.T) {
	log := NewNop()
	log.Info(context.Background(), "ignored")
	assert.NoError(t, log.Sync())
}
