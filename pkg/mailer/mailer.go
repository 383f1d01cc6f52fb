package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/mail"
	"net/smtp"
	"path"
	"strings"
)

//go:embed templates/*.html
var templateFiles embed.FS

// ErrInvalidEmail is returned when a recipient address cannot be parsed
var ErrInvalidEmail = errors.New("invalid email address")

// ErrUnknownTemplate is returned when an envelope names a missing template
var ErrUnknownTemplate = errors.New("unknown email template")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Envelope is one message to render and deliver
type Envelope struct {
	To       []string
	BCC      []string
	Template string
	Data     map[string]interface{}
}

// Sender delivers rendered envelopes
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// Mailer handles sending emails over SMTP
type Mailer struct {
	config    Config
	templates map[string]*template.Template
}

// New creates a new Mailer instance and parses the embedded templates
func New(cfg Config) (*Mailer, error) {
	entries, err := fs.ReadDir(templateFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read email templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		t, err := template.ParseFS(templateFiles, "templates/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = t
	}
	return &Mailer{config: cfg, templates: templates}, nil
}

// Templates returns the names of the loaded templates
func (m *Mailer) Templates() []string {
	names := make([]string, 0, len(m.templates))
	for n := range m.templates {
		names = append(names, n)
	}
	return names
}

// Send renders env and delivers it
func (m *Mailer) Send(ctx context.Context, env Envelope) error {
	if len(env.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidEmail)
	}
	for _, addr := range append(append([]string{}, env.To...), env.BCC...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidEmail, addr)
		}
	}

	subject, body, err := m.Render(env)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.send(env.To, env.BCC, subject, body)
}

// Render returns the subject and HTML body for env
func (m *Mailer) Render(env Envelope) (string, string, error) {
	t, ok := m.templates[env.Template]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, env.Template)
	}

	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", env.Data); err != nil {
		return "", "", fmt.Errorf("failed to render email subject: %w", err)
	}
	if err := t.ExecuteTemplate(&body, "body", env.Data); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// send delivers an email via SMTP
func (m *Mailer) send(to, bcc []string, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From)},
		{"To", strings.Join(to, ", ")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=\"utf-8\""},
	}

	var msg bytes.Buffer
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	rcpt := append(append([]string{}, to...), bcc...)
	if err := smtp.SendMail(addr, auth, m.config.From, rcpt, msg.Bytes()); err != nil {
		log.Printf("❌ Failed to send email to %v: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("📧 Email sent to %v: %s", to, subject)
	return nil
}
