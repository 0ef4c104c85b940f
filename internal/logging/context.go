package logging

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	workflowIDKey contextKey = "workflow_id"
	stageNameKey  contextKey = "stage"
)

// WithWorkflowID attaches a workflow identifier to the context.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowID extracts the workflow identifier from the context, if any.
func WorkflowID(ctx context.Context) string {
	if v, ok := ctx.Value(workflowIDKey).(string); ok {
		return v
	}
	return ""
}

// WithStage attaches a stage name to the context.
func WithStage(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stageNameKey, name)
}

// ContextFields extracts log fields from the context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if id, ok := ctx.Value(workflowIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("workflow_id", id))
	}
	if name, ok := ctx.Value(stageNameKey).(string); ok && name != "" {
		fields = append(fields, zap.String("stage", name))
	}
	return fields
}
