package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/gosimple/slug"
	natsgo "github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root for completion messages.
// The flow name is appended as the last token.
const DefaultSubjectPrefix = "stepwise.completions"

// Publisher implements ports.CompletionSink on a NATS connection.
type Publisher struct {
	conn   *natsgo.Conn
	prefix string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn *natsgo.Conn, opts ...Option) *Publisher {
	p := &Publisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials url and returns a Publisher owning the connection.
func Connect(url string, opts ...Option) (*Publisher, error) {
	conn, err := natsgo.Connect(url, natsgo.Name("stepwise"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewPublisher(conn, opts...), nil
}

// Subject returns the subject completions of flow are published on.
func (p *Publisher) Subject(flow string) string {
	token := slug.Make(flow)
	if token == "" {
		token = "default"
	}
	return p.prefix + "." + token
}

// Publish sends the completion as JSON and flushes so the caller knows the
// server received it.
func (p *Publisher) Publish(ctx context.Context, c domain.Completion) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal completion: %w", err)
	}

	subject := p.Subject(c.Flow)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish completion: %w", err)
	}

	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush completion: %w", err)
	}

	p.logger.Debug("completion published", "subject", subject, "run_id", c.RunID)
	return nil
}

// Subscribe delivers decoded completions published under prefix to fn.
// Messages that fail to decode are logged and dropped.
func Subscribe(conn *natsgo.Conn, prefix string, logger *slog.Logger, fn func(domain.Completion)) (*natsgo.Subscription, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return conn.Subscribe(prefix+".>", func(msg *natsgo.Msg) {
		var c domain.Completion
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			logger.Warn("dropping malformed completion", "subject", msg.Subject, "error", err)
			return
		}
		fn(c)
	})
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
