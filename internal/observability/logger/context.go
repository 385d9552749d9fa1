package logger

import (
	"context"
	"strings"
)

type ctxKey int

const (
	activityIDKey ctxKey = iota
	pairKey
	requestIDKey
)

func WithActivityID(ctx context.Context, activityID string) context.Context {
	return context.WithValue(ctx, activityIDKey, strings.TrimSpace(activityID))
}

func ActivityIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(activityIDKey).(string)
	return v
}

func WithPairName(ctx context.Context, pair string) context.Context {
	return context.WithValue(ctx, pairKey, strings.TrimSpace(pair))
}

func PairFromContext(ctx context.Context) string {
	v, _ := ctx.Value(pairKey).(string)
	return v
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
