package metrics

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	StageAllocate  = "allocate"
	StageValidate  = "validate"
	StageTransform = "transform"
	StageUpload    = "upload"
	StagePersist   = "persist"
	StageArchive   = "archive"
	StageAudit     = "audit"
)

const (
	PairStatusPassed = "passed"
	PairStatusFailed = "failed"
)

const (
	ReasonDeadlineExceeded = "deadline_exceeded"
	ReasonCanceled         = "canceled"
	ReasonNotFound         = "not_found"
	ReasonUniqueViolation  = "unique_violation"
	ReasonUnknown          = "unknown"
)

// PipelineMetrics captures per-pair and per-activity health of the sync pipeline.
type PipelineMetrics struct {
	pairsProcessed   *prometheus.CounterVec
	stageErrors      *prometheus.CounterVec
	pairDuration     prometheus.Observer
	activityRuns     *prometheus.CounterVec
	activityDuration prometheus.Observer
	uploadBytes      prometheus.Counter
	uploadRetries    prometheus.Counter
	allocations      *prometheus.CounterVec
	watchLag         prometheus.Observer
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

// NewPipelineMetricsForRegistry builds an unshared instance, mainly for tests.
func NewPipelineMetricsForRegistry(registerer prometheus.Registerer) *PipelineMetrics {
	return newPipelineMetrics(registerer, Config{ServiceName: "datasync", Environment: "test"})
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "datasync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	pairsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "datasync_pairs_processed_total",
		Help:        "Pairs processed by terminal status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	stageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "datasync_pair_stage_errors_total",
		Help:        "Pair failures by stage and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	pairDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "datasync_pair_duration_seconds",
		Help:        "End-to-end latency of a single pair.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})
	activityRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "datasync_activity_runs_total",
		Help:        "Activity runs by final status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	activityDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "datasync_activity_duration_seconds",
		Help:        "Wall-clock duration of an activity run.",
		Buckets:     []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		ConstLabels: constLabels,
	})
	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "datasync_upload_bytes_total",
		Help:        "Binary bytes uploaded to the object store.",
		ConstLabels: constLabels,
	})
	uploadRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "datasync_upload_retries_total",
		Help:        "Upload attempts beyond the first.",
		ConstLabels: constLabels,
	})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "datasync_counter_allocations_total",
		Help:        "Identifiers allocated by counter name.",
		ConstLabels: constLabels,
	}, []string{"counter"})
	watchLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "datasync_watch_loop_lag_seconds",
		Help:        "Lag between the watch tick and the activity start.",
		Buckets:     []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		ConstLabels: constLabels,
	})

	pairsProcessed = registerCounterVec(registerer, pairsProcessed)
	stageErrors = registerCounterVec(registerer, stageErrors)
	pairDuration = registerHistogram(registerer, pairDuration)
	activityRuns = registerCounterVec(registerer, activityRuns)
	activityDuration = registerHistogram(registerer, activityDuration)
	uploadBytes = registerCounter(registerer, uploadBytes)
	uploadRetries = registerCounter(registerer, uploadRetries)
	allocations = registerCounterVec(registerer, allocations)
	watchLag = registerHistogram(registerer, watchLag)

	return &PipelineMetrics{
		pairsProcessed:   pairsProcessed,
		stageErrors:      stageErrors,
		pairDuration:     pairDuration,
		activityRuns:     activityRuns,
		activityDuration: activityDuration,
		uploadBytes:      uploadBytes,
		uploadRetries:    uploadRetries,
		allocations:      allocations,
		watchLag:         watchLag,
	}
}

// IncPairProcessed counts a pair that reached a terminal status.
func (m *PipelineMetrics) IncPairProcessed(status string) {
	if m == nil {
		return
	}
	m.pairsProcessed.WithLabelValues(status).Inc()
}

// IncStageError counts a pair failure at stage, classified by err.
func (m *PipelineMetrics) IncStageError(stage string, err error) {
	if m == nil || err == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, ClassifyReason(err)).Inc()
}

// ObservePairDuration records how long a pair took end to end.
func (m *PipelineMetrics) ObservePairDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.pairDuration.Observe(duration.Seconds())
}

// IncActivityRun counts a finished activity by final status.
func (m *PipelineMetrics) IncActivityRun(status string) {
	if m == nil {
		return
	}
	m.activityRuns.WithLabelValues(strings.ToLower(status)).Inc()
}

// ObserveActivityDuration records the wall-clock duration of an activity.
func (m *PipelineMetrics) ObserveActivityDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.activityDuration.Observe(duration.Seconds())
}

// AddUploadBytes adds n uploaded bytes.
func (m *PipelineMetrics) AddUploadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(float64(n))
}

// IncUploadRetry counts one retried upload attempt.
func (m *PipelineMetrics) IncUploadRetry() {
	if m == nil {
		return
	}
	m.uploadRetries.Inc()
}

// IncAllocation counts an identifier handed out by the named counter.
func (m *PipelineMetrics) IncAllocation(counter string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(counter).Inc()
}

// ObserveWatchLag records lag between the scheduled tick and the actual run.
func (m *PipelineMetrics) ObserveWatchLag(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.watchLag.Observe(duration.Seconds())
}

// ClassifyReason maps an error onto a bounded label value.
func ClassifyReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, os.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ReasonUniqueViolation
	default:
		return ReasonUnknown
	}
}

func registerCounterVec(registerer prometheus.Registerer, collector *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return collector
}

func registerCounter(registerer prometheus.Registerer, collector prometheus.Counter) prometheus.Counter {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, collector prometheus.Histogram) prometheus.Histogram {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
	}
	return collector
}
