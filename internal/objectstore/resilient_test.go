package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/objectstore/domain"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedUploader struct {
	errs  []error
	calls int
}

func (s *scriptedUploader) Upload(_ context.Context, _, key string) (string, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return "", s.errs[s.calls-1]
	}
	return "mem://" + key, nil
}

func newResilient(t *testing.T, next domain.Uploader, attempts int) (*Resilient, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	r := NewResilient(next, config.UploadConfig{MaxAttempts: attempts}, metrics.NewPipelineMetricsForRegistry(registry), zaptest.NewLogger(t))
	r.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r, registry
}

func TestResilientRetriesTransientFailures(t *testing.T) {
	next := &scriptedUploader{errs: []error{
		fmt.Errorf("%w: connection reset", domain.ErrUpload),
		fmt.Errorf("%w: connection reset", domain.ErrUpload),
	}}
	r, registry := newResilient(t, next, 3)

	locator, err := r.Upload(context.Background(), "doc.pdf", "k")
	require.NoError(t, err)
	assert.Equal(t, "mem://k", locator)
	assert.Equal(t, 3, next.calls)

	assert.Equal(t, float64(2), counterValue(t, registry, "datasync_upload_retries_total"))
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestResilientGivesUpAfterMaxAttempts(t *testing.T) {
	next := &scriptedUploader{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	r, _ := newResilient(t, next, 2)

	_, err := r.Upload(context.Background(), "doc.pdf", "k")
	assert.ErrorIs(t, err, domain.ErrUpload)
	assert.Equal(t, 2, next.calls)
}

func TestResilientDoesNotRetryPermanentErrors(t *testing.T) {
	cases := map[string]error{
		"missing_file": fmt.Errorf("%w: %w", domain.ErrUpload, os.ErrNotExist),
		"access_denied": fmt.Errorf("%w: %w", domain.ErrUpload, minio.ErrorResponse{
			Code:       "AccessDenied",
			StatusCode: 403,
		}),
	}
	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			next := &scriptedUploader{errs: []error{failure, nil}}
			r, _ := newResilient(t, next, 5)

			_, err := r.Upload(context.Background(), "doc.pdf", "k")
			assert.ErrorIs(t, err, domain.ErrUpload)
			assert.Equal(t, 1, next.calls)
		})
	}
}

func TestResilientHonorsCancellation(t *testing.T) {
	r, _ := newResilient(t, &scriptedUploader{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Upload(ctx, "doc.pdf", "k")
	assert.ErrorIs(t, err, domain.ErrUpload)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, isPermanent(minio.ErrorResponse{StatusCode: 404}))
	assert.False(t, isPermanent(minio.ErrorResponse{StatusCode: 429}))
	assert.False(t, isPermanent(minio.ErrorResponse{StatusCode: 503}))
	assert.False(t, isPermanent(errors.New("dial tcp: refused")))
}
