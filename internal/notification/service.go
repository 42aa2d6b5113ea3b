package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bher20/ebillmanager/internal/statement"
	"github.com/bher20/ebillmanager/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned when no mail provider API key is set.
var ErrNotConfigured = errors.New("email not configured")

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	ToName      string
	ToAddress   string
	Subject     string
	PlainBody   string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	SendgridAPIKey string
	FromAddress    string
	FromName       string
}

// SendgridSender delivers through the SendGrid v3 mail API.
type SendgridSender struct {
	cfg    Config
	client *sendgrid.Client
}

func NewSendgridSender(cfg Config) (*SendgridSender, error) {
	if cfg.SendgridAPIKey == "" {
		return nil, ErrNotConfigured
	}
	return &SendgridSender{cfg: cfg, client: sendgrid.NewSendClient(cfg.SendgridAPIKey)}, nil
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendWithContext(ctx, buildMessage(s.cfg, msg))
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func buildMessage(cfg Config, msg Message) *sgmail.SGMailV3 {
	from := sgmail.NewEmail(cfg.FromName, cfg.FromAddress)
	to := sgmail.NewEmail(msg.ToName, msg.ToAddress)
	html := msg.HTMLBody
	if html == "" {
		html = msg.PlainBody
	}
	m := sgmail.NewSingleEmail(from, msg.Subject, to, msg.PlainBody, html)
	for _, a := range msg.Attachments {
		att := sgmail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}
	return m
}

// Service sends billing documents to customers.
type Service struct {
	sender Sender
	log    *logger.Logger
}

func NewService(sender Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{sender: sender, log: log}
}

// Enabled reports whether a sender is configured.
func (s *Service) Enabled() bool { return s != nil && s.sender != nil }

// SendDocument renders doc to PDF and mails it to the given address.
func (s *Service) SendDocument(ctx context.Context, to string, doc statement.Document) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	var buf bytes.Buffer
	if err := statement.RenderPDF(doc, &buf); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s: %s", doc.Issuer, doc.Title)
	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\nPlease find your %s attached.\n\n", doc.BillTo.Name, strings.ToLower(doc.Title))
	for _, fields := range [][]statement.Field{doc.Totals, doc.LineItems} {
		for _, f := range fields {
			fmt.Fprintf(&body, "%s: %s\n", f.Label, f.Value)
		}
	}

	msg := Message{
		ToName:    addr.Name,
		ToAddress: addr.Address,
		Subject:   subject,
		PlainBody: body.String(),
		Attachments: []Attachment{{
			Filename:    doc.Filename,
			ContentType: "application/pdf",
			Content:     buf.Bytes(),
		}},
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}
	s.log.Info(s.log.WithField(ctx, "filename", doc.Filename), "notification: document sent")
	return nil
}
