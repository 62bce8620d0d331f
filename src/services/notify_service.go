package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/username/tradelink/src/config"
	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
)

// NewNotifier picks the run notifier from configuration. Incomplete provider settings
// fall back to the mock notifier, which only logs.
func NewNotifier(cfg *config.AppConfig) Notifier {
	if cfg == nil {
		logger.L.Error("Configuration is nil. Notifier will default to mock.")
		return &MockNotifier{}
	}

	provider := strings.ToLower(cfg.NotifyProvider)
	logger.L.Info("Initializing run notifier", "provider", provider)

	if provider != "none" && provider != "" && cfg.NotifyRecipient == "" {
		logger.L.Warn("NOTIFY_RECIPIENT not set. Falling back to MockNotifier.")
		return &MockNotifier{}
	}

	switch provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunPrivateAPIKey == "" || cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockNotifier.")
			return &MockNotifier{Recipient: cfg.NotifyRecipient}
		}
		mg := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", cfg.MailgunDomain)
		return &MailgunNotifier{
			mg:          mg,
			senderEmail: cfg.SenderEmail,
			senderName:  cfg.SenderName,
			recipient:   cfg.NotifyRecipient,
		}
	case "smtp":
		if cfg.SMTPServer == "" || cfg.SMTPUser == "" || cfg.SMTPPassword == "" || cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockNotifier.")
			return &MockNotifier{Recipient: cfg.NotifyRecipient}
		}
		return &SMTPNotifier{
			SMTPServer:   cfg.SMTPServer,
			SMTPPort:     cfg.SMTPPort,
			SMTPUser:     cfg.SMTPUser,
			SMTPPassword: cfg.SMTPPassword,
			SenderEmail:  cfg.SenderEmail,
			Recipient:    cfg.NotifyRecipient,
		}
	default:
		logger.L.Info("Defaulting to MockNotifier.")
		return &MockNotifier{Recipient: cfg.NotifyRecipient}
	}
}

func runSubject(run models.ReconciliationRun) string {
	return fmt.Sprintf("Tradelink run %s: %d trades, %d matched", shortID(run.ID), run.Summary.TotalTrades, run.Summary.Matched)
}

func runPlainText(run models.ReconciliationRun) string {
	s := run.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s finished at %s.\n\n", run.ID, run.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Trades: %d (matched %d, signal only %d, result only %d)\n", s.TotalTrades, s.Matched, s.SignalOnly, s.ResultOnly)
	fmt.Fprintf(&b, "Wins: %d  Losses: %d  Pending: %d  Unknown: %d\n", s.WinningTrades, s.LosingTrades, s.PendingTrades, s.UnknownTrades)
	fmt.Fprintf(&b, "Win rate: %.1f%%\n", s.WinRate*100)
	if s.TradesWithROI > 0 {
		fmt.Fprintf(&b, "ROI avg %.2f%%, median %.2f%%, max %.2f%%\n", s.AvgROI, s.MedianROI, s.MaxROI)
	}
	if len(run.Unusable) > 0 {
		fmt.Fprintf(&b, "Unusable observations: %d\n", len(run.Unusable))
	}
	fmt.Fprintf(&b, "Auto match threshold: %.2f\n", run.AutoMatchThreshold)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type SMTPNotifier struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
	Recipient    string
}

func (s *SMTPNotifier) NotifyRun(ctx context.Context, run models.ReconciliationRun) error {
	from := s.SenderEmail
	to := []string{s.Recipient}

	header := make(map[string]string)
	header["From"] = from
	header["To"] = s.Recipient
	header["Subject"] = runSubject(run)
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + runPlainText(run)

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, from, to, []byte(message)); err != nil {
		logger.L.Error("Failed to send run notification via SMTP", "error", err, "to", s.Recipient)
		return fmt.Errorf("failed to send run notification via SMTP: %w", err)
	}
	logger.L.Info("Run notification sent via SMTP", "to", s.Recipient, "runID", run.ID)
	return nil
}

type MailgunNotifier struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	recipient   string
}

func (s *MailgunNotifier) NotifyRun(ctx context.Context, run models.ReconciliationRun) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	plainTextBody := runPlainText(run)
	htmlBody := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<pre>%s</pre>
		</body>
	</html>`, plainTextBody)

	message := s.mg.NewMessage(from, runSubject(run), plainTextBody, s.recipient)
	message.SetHtml(htmlBody)
	message.AddTag("reconciliation-run")

	ctx, cancel := context.WithTimeout(ctx, time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send run notification via Mailgun", "error", err, "to", s.recipient, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Run notification sent via Mailgun", "to", s.recipient, "id", id, "runID", run.ID)
	return nil
}

// MockNotifier logs what would have been sent.
type MockNotifier struct {
	Recipient string
	sent      atomic.Int64
}

// Sent reports how many notifications the mock has accepted.
func (m *MockNotifier) Sent() int64 {
	return m.sent.Load()
}

func (m *MockNotifier) NotifyRun(ctx context.Context, run models.ReconciliationRun) error {
	m.sent.Add(1)
	logger.L.Info("MockNotifier: Would send run notification.", "to", m.Recipient, "subject", runSubject(run))
	return nil
}
