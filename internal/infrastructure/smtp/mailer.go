package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/expo-registration-api/internal/config"
	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/id"
	"github.com/expo-registration-api/internal/pkg/logger"
	"github.com/expo-registration-api/internal/pkg/retry"
	"go.uber.org/zap"
)

// Mailer delivers multipart text+HTML mail over SMTP. STARTTLS is used
// whenever the server offers it; auth only when a username is configured.
type Mailer struct {
	host     string
	port     string
	from     mail.Address
	username string
	password string
	policy   retry.Policy
	log      *zap.Logger
}

func NewMailer(cfg *config.Config, log *zap.Logger) *Mailer {
	p := retry.NewPolicy(cfg.MailRetries, cfg.MailTimeout)
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     mail.Address{Name: cfg.MailFromName, Address: cfg.MailFrom},
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		policy:   p,
		log:      logger.OrNop(log),
	}
}

func (m *Mailer) SendMail(ctx context.Context, msg domain.MailMessage) error {
	body, err := buildMessage(m.from, msg, time.Now())
	if err != nil {
		return retry.Permanent(err)
	}
	attempt := 0
	return retry.Do(ctx, m.policy, func(ctx context.Context) error {
		attempt++
		err := m.deliver(ctx, msg.To, body)
		if err != nil {
			m.log.Warn("smtp delivery attempt failed", zap.Int("attempt", attempt), zap.String("to", msg.To), zap.Error(err))
		}
		return err
	})
}

func (m *Mailer) deliver(ctx context.Context, to string, body []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(m.host, m.port))
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return permanentIfRejected(fmt.Errorf("smtp auth: %w", err))
		}
	}
	if err := c.Mail(m.from.Address); err != nil {
		return permanentIfRejected(fmt.Errorf("smtp mail from: %w", err))
	}
	if err := c.Rcpt(to); err != nil {
		return permanentIfRejected(fmt.Errorf("smtp rcpt to: %w", err))
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return permanentIfRejected(fmt.Errorf("smtp end data: %w", err))
	}
	return c.Quit()
}

// permanentIfRejected stops retries on 5xx replies; the server will not change its mind.
func permanentIfRejected(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return retry.Permanent(err)
	}
	return err
}

func buildMessage(from mail.Address, msg domain.MailMessage, now time.Time) ([]byte, error) {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("From", from.String())
	header.Set("To", msg.To)
	header.Set("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header.Set("Date", now.Format(time.RFC1123Z))
	header.Set("Message-ID", fmt.Sprintf("<%s@%s>", id.New(), domainOf(from.Address)))
	header.Set("MIME-Version", "1.0")
	header.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	for _, k := range []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type"} {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, header.Get(k))
	}
	buf.WriteString("\r\n")

	if err := writePart(mw, "text/plain; charset=UTF-8", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(mw, "text/html; charset=UTF-8", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	pw, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func domainOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return "localhost"
}
