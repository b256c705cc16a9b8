package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream holding run events.
const StreamName = "PIPELINE_RUNS"

// JetStreamPublisher is the subset of nats.JetStreamContext used for run events.
type JetStreamPublisher interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSNotifier publishes run events on <prefix>.<stage>.<status>.
type NATSNotifier struct {
	js     JetStreamPublisher
	prefix string
	log    *zap.Logger
}

// NewNATSNotifier creates a NATSNotifier.
func NewNATSNotifier(js JetStreamPublisher, prefix string, log *zap.Logger) *NATSNotifier {
	return &NATSNotifier{js: js, prefix: strings.TrimSuffix(prefix, "."), log: log}
}

// Connect dials NATS and returns the connection with its JetStream context.
func Connect(url string, log *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(10*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Disconnected from NATS", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	log.Info("Connected to NATS", zap.String("url", url))
	return nc, js, nil
}

// EnsureStream creates the run event stream if it doesn't exist.
func (n *NATSNotifier) EnsureStream() error {
	if _, err := n.js.StreamInfo(StreamName); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up NATS stream %s: %w", StreamName, err)
	}

	n.log.Info("Creating NATS stream", zap.String("stream", StreamName), zap.String("subjects", n.prefix+".>"))
	_, err := n.js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{n.prefix + ".>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS stream %s: %w", StreamName, err)
	}
	return nil
}

// Subject returns the subject an event is published on.
func (n *NATSNotifier) Subject(ev RunEvent) string {
	return fmt.Sprintf("%s.%s.%s", n.prefix, ev.Stage, ev.Status)
}

// Notify implements Notifier.
func (n *NATSNotifier) Notify(ctx context.Context, ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal run event %s: %w", ev.RunID, err)
	}
	subject := n.Subject(ev)
	ack, err := n.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(ev.RunID))
	if err != nil {
		return fmt.Errorf("failed to publish run event %s to %s: %w", ev.RunID, subject, err)
	}
	n.log.Debug("Published run event", zap.String("subject", subject), zap.Uint64("seq", ack.Sequence))
	return nil
}
