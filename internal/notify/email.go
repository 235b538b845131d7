package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"firebase.google.com/go/v4/auth"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(host, port, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, errors.New("SMTP_HOST not set")
	}
	if port == "" {
		return nil, errors.New("SMTP_PORT not set")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{host: host, port: port, username: username, password: password, from: from}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	var a smtp.Auth
	if s.username != "" {
		a = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)
	if err := smtp.SendMail(addr, a, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

type userLookup interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// EmailChannel mails the message to the explicit address or, failing that,
// to the address registered for the uid in Firebase Auth.
type EmailChannel struct {
	sender EmailSender
	users  userLookup
}

func NewEmailChannel(sender EmailSender, users userLookup) *EmailChannel {
	return &EmailChannel{sender: sender, users: users}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, msg Message, r Rendered) error {
	to := strings.TrimSpace(msg.Email)
	if to == "" && c.users != nil && msg.Recipient != "" {
		u, err := c.users.GetUser(ctx, msg.Recipient)
		if err != nil {
			return fmt.Errorf("lookup user email: %w", err)
		}
		if u.UserInfo != nil {
			to = u.Email
		}
	}
	if to == "" {
		return nil
	}
	return c.sender.SendEmail(ctx, to, r.Title, r.Body)
}
