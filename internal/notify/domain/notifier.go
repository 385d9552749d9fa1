package domain

import (
	"context"
	"errors"

	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
)

var ErrNotify = errors.New("notify_failed")

// Notifier is told once per activity how the run ended.
type Notifier interface {
	Notify(ctx context.Context, activityID string, summary recorddomain.ActivityRecord, status recorddomain.ActivityStatus) error
}

type NoOpNotifier struct{}

func (NoOpNotifier) Notify(context.Context, string, recorddomain.ActivityRecord, recorddomain.ActivityStatus) error {
	return nil
}
