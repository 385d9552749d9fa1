package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "datasync"

	AttrActivityID = "datasync.activity_id"
	AttrPair       = "datasync.pair"
)

// StartPairSpan starts a span for one pair inside an activity.
func StartPairSpan(ctx context.Context, activityID, pairName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName+"/pipeline").Start(ctx, "pipeline.pair",
		trace.WithAttributes(
			attribute.String(AttrActivityID, activityID),
			attribute.String(AttrPair, pairName),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
