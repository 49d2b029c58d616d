package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nexalabs/nexamon/service/metrics"
)

const (
	// StreamName is the JetStream stream holding redistribution events.
	StreamName = "REDISTRIBUTIONS"
	// SubjectPrefix is the subject namespace; events go to
	// redistributions.{destination}.
	SubjectPrefix = "redistributions"
)

// Publisher publishes redistribution events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishRedistribution(ctx context.Context, event *RedistributionEvent) error
	Close()
}

// JetStreamPublisher publishes events to a NATS JetStream stream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewJetStreamPublisher connects to NATS and ensures the redistribution
// stream exists. If m is nil, no metrics are recorded.
func NewJetStreamPublisher(url string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("nexamon"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get JetStream context: %w", err)
	}

	_, err = js.StreamInfo(StreamName)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      StreamName,
			Subjects:  []string{SubjectPrefix + ".>"},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
			MaxAge:    30 * 24 * time.Hour,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	return &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}, nil
}

// PublishRedistribution publishes one event to its destination subject.
func (p *JetStreamPublisher) PublishRedistribution(ctx context.Context, event *RedistributionEvent) error {
	subject := event.Subject()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal redistribution event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	p.logger.DebugContext(ctx, "published redistribution event",
		"subject", subject,
		"signature", event.Signature,
		"amount", event.Amount,
	)
	return nil
}

// Close drains the underlying connection.
func (p *JetStreamPublisher) Close() {
	p.nc.Close()
}
