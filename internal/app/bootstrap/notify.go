package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/notify"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// BuildEmailSender prefers SendGrid, then SES, and logs to the stub sender otherwise.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		logger.Info("lead alerts via sendgrid")
		return sender
	}
	if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
		if sender := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("lead alerts via ses")
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}

// BuildLeadNotifier returns the new-lead alert service. Alerts are disabled without
// LEAD_NOTIFY_EMAIL.
func BuildLeadNotifier(cfg *appconfig.Config, awsCfg *aws.Config, propertyName string, logger *logging.Logger) *notify.Service {
	if strings.TrimSpace(cfg.LeadNotifyEmail) == "" {
		return nil
	}
	return notify.NewService(BuildEmailSender(cfg, awsCfg, logger), cfg.LeadNotifyEmail, propertyName, logger)
}
