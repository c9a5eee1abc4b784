// Package events publishes convergence outcomes to NATS so downstream
// consumers (schema exporters, curation dashboards) react without polling
// the API.
//
// Subjects follow <prefix>.convergence.<outcome>:
//
//	convergd.convergence.converged
//	convergd.convergence.not_converged
//	convergd.convergence.schema_ready
//
// A schema_ready event publishes in addition to the outcome event when the
// evaluation crosses the stricter export gate. Publishing is best-effort
// fire-and-forget: a disabled or failed publisher never blocks an
// evaluation.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/config"
	"github.com/chakssp/convergd/pkg/convergence"
)

// ConvergenceEvent is the JSON payload published for each evaluation.
type ConvergenceEvent struct {
	// EventID uniquely identifies this event for consumer deduplication.
	EventID string `json:"event_id"`

	// FileID is the evaluated file.
	FileID string `json:"file_id"`

	// Status is "converged" or "not_converged".
	Status string `json:"status"`

	// CompositeScore is the weighted composite in [0,1].
	CompositeScore float64 `json:"composite_score"`

	// SchemaReady reports whether the export gate passed.
	SchemaReady bool `json:"schema_ready"`

	// Iterations is the evaluated history length.
	Iterations int `json:"iterations"`

	// EvaluatedAt is the timestamp of the newest evaluated iteration.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// PublishedAt is when this event was emitted.
	PublishedAt time.Time `json:"published_at"`
}

// Publisher emits convergence events. The zero value is a disabled
// publisher that drops everything.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// New connects to NATS when events are enabled. A disabled config returns
// a no-op publisher, not an error.
func New(cfg config.EventsConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Publisher{logger: logger}, nil
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "convergd"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("convergd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	logger.Info("event publisher connected",
		zap.String("url", cfg.URL),
		zap.String("subject_prefix", prefix))

	return &Publisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Enabled reports whether events actually publish.
func (p *Publisher) Enabled() bool {
	return p != nil && p.nc != nil
}

// PublishEvaluation emits the outcome event for one evaluation, plus a
// schema_ready event when the export gate passed.
func (p *Publisher) PublishEvaluation(result *convergence.Result) error {
	if !p.Enabled() || result == nil {
		return nil
	}

	event := ConvergenceEvent{
		EventID:        uuid.New().String(),
		FileID:         result.FileID,
		Status:         string(result.Status),
		CompositeScore: result.CompositeScore,
		SchemaReady:    result.SchemaReady,
		Iterations:     result.Iterations,
		EvaluatedAt:    result.EvaluatedAt,
		PublishedAt:    time.Now().UTC(),
	}

	if err := p.publish(p.subject(string(result.Status)), event); err != nil {
		return err
	}

	if result.SchemaReady {
		// Fresh event ID so consumers treat it as a distinct event.
		event.EventID = uuid.New().String()
		if err := p.publish(p.subject("schema_ready"), event); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) subject(outcome string) string {
	return p.prefix + ".convergence." + outcome
}

func (p *Publisher) publish(subject string, event ConvergenceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	p.logger.Debug("event published",
		zap.String("subject", subject),
		zap.String("file_id", event.FileID),
		zap.String("event_id", event.EventID))
	return nil
}

// Close flushes pending messages and drops the connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Flush(); err != nil {
		p.logger.Warn("flushing NATS connection", zap.Error(err))
	}
	p.nc.Close()
}
