package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/notify/domain"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleSummary() recorddomain.ActivityRecord {
	start := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	return recorddomain.ActivityRecord{
		ActivityID:   "2024-03-09_10-00-00",
		TotalFiles:   4,
		PassedFiles:  3,
		FailedFiles:  1,
		TotalXMLSize: 1200,
		TotalPDFSize: 90000,
		StartTime:    start,
		EndTime:      start.Add(1500 * time.Millisecond),
		Status:       recorddomain.ActivityCompleted,
	}
}

type captured struct {
	addr string
	from string
	to   []string
	msg  string
	auth bool
}

func newCapturingNotifier(cfg SMTPConfig, out *captured, err error) *EmailNotifier {
	n := NewEmailNotifier(cfg)
	n.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		out.addr = addr
		out.from = from
		out.to = to
		out.msg = string(msg)
		out.auth = auth != nil
		return err
	}
	return n
}

func TestEmailNotifierCompleted(t *testing.T) {
	var got captured
	n := newCapturingNotifier(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot",
		Password: "secret",
		From:     "bot@example.com",
		To:       []string{"ops@example.com", "qa@example.com"},
	}, &got, nil)

	summary := sampleSummary()
	require.NoError(t, n.Notify(context.Background(), summary.ActivityID, summary, recorddomain.ActivityCompleted))

	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "bot@example.com", got.from)
	assert.Equal(t, []string{"ops@example.com", "qa@example.com"}, got.to)
	assert.True(t, got.auth)
	assert.Contains(t, got.msg, "Subject: Activity 2024-03-09_10-00-00 Completed\r\n")
	assert.Contains(t, got.msg, "To: ops@example.com, qa@example.com\r\n")
	assert.Contains(t, got.msg, "Passed:           3")
	assert.Contains(t, got.msg, "Failed:           1")
	assert.Contains(t, got.msg, "Elapsed:          1.5s")
	assert.NotContains(t, got.msg, "Error:")
}

func TestEmailNotifierFailedCarriesError(t *testing.T) {
	var got captured
	n := newCapturingNotifier(SMTPConfig{Host: "smtp.example.com", Port: 25, To: []string{"ops@example.com"}}, &got, nil)

	summary := sampleSummary()
	summary.Status = recorddomain.ActivityFailed
	summary.Error = "fatal_scan: open pickup: permission denied"
	require.NoError(t, n.Notify(context.Background(), summary.ActivityID, summary, recorddomain.ActivityFailed))

	assert.False(t, got.auth)
	assert.Contains(t, got.msg, "Subject: Activity 2024-03-09_10-00-00 Failed\r\n")
	assert.Contains(t, got.msg, "Error: fatal_scan: open pickup: permission denied")
}

func TestEmailNotifierErrors(t *testing.T) {
	summary := sampleSummary()

	n := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", Port: 25})
	err := n.Notify(context.Background(), "a", summary, recorddomain.ActivityCompleted)
	assert.ErrorIs(t, err, domain.ErrNotify)

	var got captured
	sendErr := errors.New("connection refused")
	n = newCapturingNotifier(SMTPConfig{Host: "smtp.example.com", Port: 25, To: []string{"ops@example.com"}}, &got, sendErr)
	err = n.Notify(context.Background(), "a", summary, recorddomain.ActivityCompleted)
	assert.ErrorIs(t, err, domain.ErrNotify)
	assert.ErrorIs(t, err, sendErr)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	summary := sampleSummary()
	require.NoError(t, n.Notify(context.Background(), summary.ActivityID, summary, recorddomain.ActivityCompleted))

	summary.Error = "boom"
	require.NoError(t, n.Notify(context.Background(), summary.ActivityID, summary, recorddomain.ActivityFailed))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Activity 2024-03-09_10-00-00 Completed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewFromConfig(t *testing.T) {
	log := zap.NewNop()

	assert.IsType(t, &LogNotifier{}, NewFromConfig(config.Config{}, log))

	cfg := config.Config{Email: config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 465, To: []string{"ops@example.com"}}}
	assert.IsType(t, &EmailNotifier{}, NewFromConfig(cfg, log))
}

func TestNoOpNotifier(t *testing.T) {
	assert.NoError(t, domain.NoOpNotifier{}.Notify(context.Background(), "a", sampleSummary(), recorddomain.ActivityCompleted))
}
