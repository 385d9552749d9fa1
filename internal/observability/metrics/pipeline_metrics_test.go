package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("upload: %w", context.DeadlineExceeded), want: ReasonDeadlineExceeded},
		{name: "canceled", err: context.Canceled, want: ReasonCanceled},
		{name: "missing_file", err: fmt.Errorf("stat: %w", os.ErrNotExist), want: ReasonNotFound},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPipelineCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPipelineMetricsForRegistry(registry)

	m.IncPairProcessed(PairStatusPassed)
	m.IncPairProcessed(PairStatusPassed)
	m.IncPairProcessed(PairStatusFailed)
	m.IncStageError(StageValidate, errors.New("bad xml"))
	m.AddUploadBytes(2048)
	m.AddUploadBytes(-1)
	m.IncActivityRun("Completed")

	if got := testutil.ToFloat64(m.pairsProcessed.WithLabelValues(PairStatusPassed)); got != 2 {
		t.Fatalf("expected 2 passed pairs, got %v", got)
	}
	if got := testutil.ToFloat64(m.stageErrors.WithLabelValues(StageValidate, ReasonUnknown)); got != 1 {
		t.Fatalf("expected 1 validate error, got %v", got)
	}
	if got := testutil.ToFloat64(m.uploadBytes); got != 2048 {
		t.Fatalf("expected 2048 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.activityRuns.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed activity, got %v", got)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewPipelineMetricsForRegistry(registry)
	second := NewPipelineMetricsForRegistry(registry)

	first.IncAllocation("dhr_id")
	second.IncAllocation("dhr_id")

	if got := testutil.ToFloat64(first.allocations.WithLabelValues("dhr_id")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *PipelineMetrics
	m.IncPairProcessed(PairStatusPassed)
	m.IncStageError(StageUpload, errors.New("x"))
	m.ObserveWatchLag(-1)
}

func TestRegisterTwiceReusesHistograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewPipelineMetricsForRegistry(registry)
	second := NewPipelineMetricsForRegistry(registry)

	if first.pairDuration != second.pairDuration {
		t.Fatalf("expected the pair duration histogram to be shared")
	}

	first.ObservePairDuration(time.Second)
	second.ObservePairDuration(2 * time.Second)
	first.ObserveActivityDuration(time.Minute)
	second.ObserveWatchLag(time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if h := metric.GetHistogram(); h != nil {
				counts[mf.GetName()] += h.GetSampleCount()
			}
		}
	}
	if got := counts["datasync_pair_duration_seconds"]; got != 2 {
		t.Fatalf("expected 2 pair duration samples, got %d", got)
	}
	if got := counts["datasync_activity_duration_seconds"]; got != 1 {
		t.Fatalf("expected 1 activity duration sample, got %d", got)
	}
	if got := counts["datasync_watch_loop_lag_seconds"]; got != 1 {
		t.Fatalf("expected 1 watch lag sample, got %d", got)
	}
}
