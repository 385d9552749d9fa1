package store

import (
	"context"

	"github.com/smallbiznis/datasync/internal/counter/domain"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
)

type instrumented struct {
	next    domain.Allocator
	metrics *metrics.PipelineMetrics
}

// Instrumented counts successful allocations per counter name.
func Instrumented(next domain.Allocator, m *metrics.PipelineMetrics) domain.Allocator {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Next(ctx context.Context, name string) (string, error) {
	v, err := i.next.Next(ctx, name)
	if err == nil {
		i.metrics.IncAllocation(name)
	}
	return v, err
}
