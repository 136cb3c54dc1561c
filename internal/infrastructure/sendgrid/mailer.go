package sendgrid

import (
	"context"
	"fmt"
	"net/http"

	"github.com/expo-registration-api/internal/config"
	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/logger"
	"github.com/expo-registration-api/internal/pkg/retry"
	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Mailer delivers mail through the SendGrid v3 API.
type Mailer struct {
	client  sender
	from    *mail.Email
	sandbox bool
	policy  retry.Policy
	log     *zap.Logger
}

func NewMailer(cfg *config.Config, log *zap.Logger) *Mailer {
	p := retry.NewPolicy(cfg.MailRetries, cfg.MailTimeout)
	return &Mailer{
		client:  sg.NewSendClient(cfg.SendGridAPIKey),
		from:    mail.NewEmail(cfg.MailFromName, cfg.MailFrom),
		sandbox: cfg.SendGridSandbox,
		policy:  p,
		log:     logger.OrNop(log),
	}
}

func (m *Mailer) SendMail(ctx context.Context, msg domain.MailMessage) error {
	email := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail("", msg.To), msg.Text, msg.HTML)
	if m.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		email.MailSettings = ms
	}
	return retry.Do(ctx, m.policy, func(ctx context.Context) error {
		resp, err := m.client.SendWithContext(ctx, email)
		if err != nil {
			return err
		}
		if err := statusError(resp); err != nil {
			m.log.Warn("sendgrid rejected message", zap.Int("status", resp.StatusCode), zap.String("to", msg.To))
			return err
		}
		return nil
	})
}

// statusError maps a SendGrid response to an error. 4xx other than 429 will
// not succeed on retry.
func statusError(resp *rest.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
