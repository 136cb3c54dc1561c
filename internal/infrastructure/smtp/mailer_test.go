package smtp

import (
	"bufio"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildMessage_MultipartAlternative(t *testing.T) {
	from := mail.Address{Name: "Expo Registrations", Address: "noreply@expo.io"}
	raw, err := buildMessage(from, domain.MailMessage{
		To:      "guest@expo.io",
		Subject: "Your Visitor registration code",
		Text:    "Your verification code is 123456.",
		HTML:    "<p>123456</p>",
	}, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "guest@expo.io", parsed.Header.Get("To"))
	assert.Contains(t, parsed.Header.Get("Message-ID"), "@expo.io>")

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"text/plain; charset=UTF-8", "text/html; charset=UTF-8"}, types)
	assert.Equal(t, "Your verification code is 123456.", bodies[0])
	assert.Equal(t, "<p>123456</p>", bodies[1])
}

func TestBuildMessage_RejectsBadRecipient(t *testing.T) {
	_, err := buildMessage(mail.Address{Address: "noreply@expo.io"}, domain.MailMessage{To: "not an address"}, time.Now())
	assert.Error(t, err)
}

// fakeSMTP speaks just enough SMTP for net/smtp's client.
type fakeSMTP struct {
	ln       net.Listener
	rcptCode string
	mu       sync.Mutex
	rcpts    []string
	data     string
	sessions int
}

func startFakeSMTP(t *testing.T, rcptCode string) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln, rcptCode: rcptCode}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = io.WriteString(conn, line+"\r\n") }
	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimSpace(line))
			s.mu.Unlock()
			reply(s.rcptCode)
		case cmd == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = b.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func newTestMailer(addr string) *Mailer {
	host, port, _ := net.SplitHostPort(addr)
	return &Mailer{
		host:   host,
		port:   port,
		from:   mail.Address{Name: "Expo", Address: "noreply@expo.io"},
		policy: retry.Policy{Retries: 2, AttemptTimeout: 2 * time.Second, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		log:    zap.NewNop(),
	}
}

func TestMailer_SendMail(t *testing.T) {
	srv := startFakeSMTP(t, "250 OK")
	m := newTestMailer(srv.ln.Addr().String())

	err := m.SendMail(context.Background(), domain.MailMessage{To: "guest@expo.io", Subject: "Hi", Text: "code 123456"})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"RCPT TO:<guest@expo.io>"}, srv.rcpts)
	assert.Contains(t, srv.data, "Subject: Hi")
	assert.Contains(t, srv.data, "code 123456")
}

func TestMailer_RejectedRecipientIsNotRetried(t *testing.T) {
	srv := startFakeSMTP(t, "550 no such user")
	m := newTestMailer(srv.ln.Addr().String())

	err := m.SendMail(context.Background(), domain.MailMessage{To: "ghost@expo.io", Subject: "Hi", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.sessions)
}
