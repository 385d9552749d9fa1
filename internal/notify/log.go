package notify

import (
	"context"

	"github.com/smallbiznis/datasync/internal/notify/domain"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"go.uber.org/zap"
)

// LogNotifier writes the activity summary to the service log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, activityID string, summary recorddomain.ActivityRecord, status recorddomain.ActivityStatus) error {
	fields := []zap.Field{
		zap.String("activity_id", activityID),
		zap.String("status", string(status)),
		zap.Int("total_files", summary.TotalFiles),
		zap.Int("passed_files", summary.PassedFiles),
		zap.Int("failed_files", summary.FailedFiles),
		zap.Int64("total_xml_size", summary.TotalXMLSize),
		zap.Int64("total_pdf_size", summary.TotalPDFSize),
		zap.Duration("elapsed", summary.Elapsed()),
	}
	if status == recorddomain.ActivityFailed {
		n.log.Warn(Subject(activityID, status), append(fields, zap.String("error", summary.Error))...)
		return nil
	}
	n.log.Info(Subject(activityID, status), fields...)
	return nil
}

var _ domain.Notifier = (*LogNotifier)(nil)
