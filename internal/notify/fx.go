package notify

import (
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/notify/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notify",
	fx.Provide(NewFromConfig),
)

// NewFromConfig mails summaries when an SMTP server and recipients are
// configured and logs them otherwise.
func NewFromConfig(cfg config.Config, log *zap.Logger) domain.Notifier {
	if cfg.Email.SMTPHost == "" || len(cfg.Email.To) == 0 {
		log.Info("email notifier disabled, logging activity summaries")
		return NewLogNotifier(log)
	}
	return NewEmailNotifier(SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		To:       cfg.Email.To,
	})
}
