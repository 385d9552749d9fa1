package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestJournalRendersFieldsInOrder(t *testing.T) {
	j := newJournal(zap.NewNop())
	j.info("validation passed")
	j.info("pair finished", zap.String("status", "Passed"), zap.Duration("processing_time", 120*time.Millisecond), zap.Int64("data_size", 42))
	j.error("pair failed", zap.String("stage", "upload"), zap.Error(errors.New("upload_failed: timeout")))

	assert.Equal(t, []string{
		"validation passed",
		"pair finished status=Passed processing_time=120ms data_size=42",
		"pair failed stage=upload error=upload_failed: timeout",
	}, j.Lines())
}
