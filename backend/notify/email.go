package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"text/template"

	"go.uber.org/zap"
)

const (
	defaultSubjectTemplate = `[breedpipe] {{.Stage}} {{.Status}}`
	defaultBodyTemplate    = `Run:      {{.RunID}}
Stage:    {{.Stage}}
Trigger:  {{.Trigger}}
Status:   {{.Status}}
Started:  {{.StartedAt.Format "2006-01-02T15:04:05Z07:00"}}
{{- if .LoadID}}
Load:     {{.LoadID}} ({{.RowsLoaded}} rows)
{{- end}}
{{- if .Error}}

Error: {{.Error}}
{{- end}}
{{- range .FailedSteps}}
 - {{.}}
{{- end}}
`
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig describes the mail relay and the alert recipients.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       string // comma or semicolon separated
}

// EmailNotifier mails run events through an SMTP relay.
type EmailNotifier struct {
	FailuresOnly bool

	addr    string
	auth    smtp.Auth
	from    string
	to      []string
	subject *template.Template
	body    *template.Template
	send    SendMailFunc
	log     *zap.Logger
}

// NewEmailNotifier creates an EmailNotifier. Without credentials the relay is used unauthenticated.
func NewEmailNotifier(cfg SMTPConfig, failuresOnly bool, log *zap.Logger) (*EmailNotifier, error) {
	to := parseRecipientList(cfg.To)
	if len(to) == 0 {
		return nil, fmt.Errorf("no alert email recipients configured")
	}
	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("SMTP host and port are required")
	}
	subject, err := template.New("subject").Parse(defaultSubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("template parsing error: %w", err)
	}
	body, err := template.New("body").Parse(defaultBodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("template parsing error: %w", err)
	}

	n := &EmailNotifier{
		FailuresOnly: failuresOnly,
		addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		from:         cfg.From,
		to:           to,
		subject:      subject,
		body:         body,
		send:         smtp.SendMail,
		log:          log,
	}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return n, nil
}

// Message renders the full RFC 5322 message for an event.
func (n *EmailNotifier) Message(ev RunEvent) ([]byte, error) {
	var subject, body bytes.Buffer
	if err := n.subject.Execute(&subject, ev); err != nil {
		return nil, fmt.Errorf("error executing subject template: %w", err)
	}
	if err := n.body.Execute(&body, ev); err != nil {
		return nil, fmt.Errorf("error executing body template: %w", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", strings.ReplaceAll(subject.String(), "\n", " "))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))
	return []byte(msg.String()), nil
}

// Notify implements Notifier. Successful runs are ignored in failures-only mode.
// smtp.SendMail has no context; ctx only guards against sending after cancellation.
func (n *EmailNotifier) Notify(ctx context.Context, ev RunEvent) error {
	if n.FailuresOnly && !ev.Failed() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := n.Message(ev)
	if err != nil {
		return err
	}
	if err := n.send(n.addr, n.auth, n.from, n.to, msg); err != nil {
		return fmt.Errorf("failed to send alert email via %s: %w", n.addr, err)
	}
	n.log.Info("Alert email sent", zap.String("run_id", ev.RunID), zap.Strings("to", n.to))
	return nil
}

// parseRecipientList parses a comma or semicolon separated list of emails.
func parseRecipientList(recipients string) []string {
	var out []string
	for _, r := range strings.Split(strings.ReplaceAll(recipients, ";", ","), ",") {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
