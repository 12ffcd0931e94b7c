// Package notify рассылает письма участникам закупки.
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Notifier отправляет одно письмо одному адресату. Одна попытка на вызов.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier собирает письмо через go-mail: заголовки кодируются по RFC 2047.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	n := &SMTPNotifier{cfg: cfg}
	n.send = n.dialAndSend
	return n
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(n.cfg.From, to, subject, htmlBody)
	if err != nil {
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (n *SMTPNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func buildMessage(from, to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(singleLine(subject))
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

// LogNotifier только пишет письма в лог; для локального запуска.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	n.Log.WithFields(logrus.Fields{"to": to, "subject": subject, "bytes": len(htmlBody)}).Info("email")
	return nil
}
