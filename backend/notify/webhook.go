package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// DefaultPayloadTemplate renders a Slack-compatible message.
const DefaultPayloadTemplate = `{"text": {{json .Summary}}}`

var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// WebhookNotifier POSTs a rendered payload to an alert webhook.
type WebhookNotifier struct {
	URL          string
	FailuresOnly bool
	HttpClient   *http.Client

	tmpl *template.Template
	log  *zap.Logger
}

// NewWebhookNotifier parses the payload template; an empty template uses DefaultPayloadTemplate.
func NewWebhookNotifier(url, payloadTemplate string, failuresOnly bool, log *zap.Logger) (*WebhookNotifier, error) {
	if payloadTemplate == "" {
		payloadTemplate = DefaultPayloadTemplate
	}
	tmpl, err := template.New("payload").Funcs(templateFuncs).Parse(payloadTemplate)
	if err != nil {
		return nil, fmt.Errorf("template parsing error: %w", err)
	}
	return &WebhookNotifier{
		URL:          url,
		FailuresOnly: failuresOnly,
		HttpClient:   &http.Client{Timeout: 30 * time.Second},
		tmpl:         tmpl,
		log:          log,
	}, nil
}

// Render executes the payload template for an event.
func (w *WebhookNotifier) Render(ev RunEvent) ([]byte, error) {
	var rendered bytes.Buffer
	if err := w.tmpl.Execute(&rendered, ev); err != nil {
		return nil, fmt.Errorf("error executing payload template: %w", err)
	}
	return rendered.Bytes(), nil
}

// Notify implements Notifier. Successful runs are ignored in failures-only mode.
func (w *WebhookNotifier) Notify(ctx context.Context, ev RunEvent) error {
	if w.FailuresOnly && !ev.Failed() {
		return nil
	}
	payload, err := w.Render(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request to %s failed: %w", w.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook %s returned HTTP %d: %s", w.URL, resp.StatusCode, truncateString(string(body), 256))
	}
	w.log.Info("Webhook delivered", zap.String("run_id", ev.RunID), zap.Int("status", resp.StatusCode))
	return nil
}

func truncateString(str string, num int) string {
	if len(str) > num {
		if num > 3 {
			return str[0:num-3] + "..."
		}
		return str[0:num]
	}
	return str
}
