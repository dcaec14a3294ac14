package llm

import "context"

type contextKey string

const modelContextKey contextKey = "llm-model-override"

// WithModel returns a context carrying a preferred model override.
func WithModel(ctx context.Context, model string) context.Context {
	model = normalizeModel(model)
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelContextKey, model)
}

func modelFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(modelContextKey).(string); ok {
		return value
	}
	return ""
}
