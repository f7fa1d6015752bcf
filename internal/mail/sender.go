package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/config"
)

// SMTPSender delivers mail through an SMTP relay. Every send dials a fresh
// connection bounded by timeout and the caller's context.
type SMTPSender struct {
	host    string
	port    int
	from    string
	user    string
	pass    string
	timeout time.Duration
}

// NewSender returns an SMTP sender, or a LogSender when no relay host is configured.
func NewSender(cfg config.NotificationConfig, logger *zap.Logger) Sender {
	if cfg.SMTPAddr() == "" {
		return &LogSender{logger: logger, from: cfg.EmailFrom}
	}
	return &SMTPSender{
		host:    cfg.SMTPHost,
		port:    cfg.SMTPPort,
		from:    cfg.EmailFrom,
		user:    cfg.SMTPUser,
		pass:    cfg.SMTPPassword,
		timeout: cfg.SMTPTimeout(),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newMessage(s.from, to, subject, body)
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTimeout(s.timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.user),
			gomail.WithPassword(s.pass))
	}
	return opts
}

// LogSender records messages instead of delivering them.
type LogSender struct {
	logger *zap.Logger
	from   string
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("mail delivery skipped, no smtp host configured",
		zap.String("from", s.from),
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

func newMessage(from, to, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}
