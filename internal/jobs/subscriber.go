// Package jobs consumes scheduled settle and keep commands from NATS
// JetStream. The scheduler publishes a JSON span; the subscriber runs
// the same service paths the HTTP API uses, so a replayed command is as
// idempotent as a replayed request.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/settle"
)

const (
	StreamName    = "POOL_JOBS"
	SubjectSettle = "pool.jobs.settle"
	SubjectKeep   = "pool.jobs.keep"
)

// Command is the wire payload of a scheduled job. Zero From/To select
// the host window's edges, same as the HTTP surface.
type Command struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Subscriber attaches durable JetStream consumers for the job subjects.
type Subscriber struct {
	js        jetstream.JetStream
	svc       *settle.Service
	log       zerolog.Logger
	metrics   *observability.Metrics
	consumers []jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, svc *settle.Service, metrics *observability.Metrics) *Subscriber {
	return &Subscriber{
		js:      js,
		svc:     svc,
		log:     observability.NewLogger("jobs"),
		metrics: metrics,
	}
}

// EnsureStream creates the job stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"pool.jobs.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Subscribe creates the durable consumers. Commands use explicit ACK
// with redelivery; a command that fails on a non-domain error is NAKed
// and retried, while domain rejections (bad span) are ACKed and dropped
// since redelivery cannot fix them.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	subjects := []struct {
		subject  string
		consumer string
		run      func(context.Context, Command) error
	}{
		{SubjectSettle, "pool-settle", func(ctx context.Context, cmd Command) error {
			_, err := s.svc.Settle(ctx, cmd.From, cmd.To)
			return err
		}},
		{SubjectKeep, "pool-keep", func(ctx context.Context, cmd Command) error {
			_, err := s.svc.AcceptKeep(ctx, cmd.From, cmd.To)
			return err
		}},
	}

	for _, cfg := range subjects {
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.consumer,
			FilterSubject: cfg.subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.consumer, err)
		}

		subject, run := cfg.subject, cfg.run
		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			s.handle(ctx, subject, run, msg)
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.consumer, err)
		}

		s.consumers = append(s.consumers, consumerContext)
		s.log.Info().Str("subject", cfg.subject).Str("consumer", cfg.consumer).Msg("subscribed")
	}
	return nil
}

func (s *Subscriber) handle(ctx context.Context, subject string, run func(context.Context, Command) error, msg jetstream.Msg) {
	var cmd Command
	if err := json.Unmarshal(msg.Data(), &cmd); err != nil {
		s.log.Error().Err(err).Str("subject", subject).Msg("malformed job payload")
		s.metrics.JobsHandled.WithLabelValues(subject, "malformed").Inc()
		msg.Ack()
		return
	}

	err := run(ctx, cmd)
	switch {
	case err == nil:
		s.metrics.JobsHandled.WithLabelValues(subject, "ok").Inc()
		msg.Ack()
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoWindow):
		s.log.Warn().Err(err).Str("subject", subject).Msg("job rejected")
		s.metrics.JobsHandled.WithLabelValues(subject, "rejected").Inc()
		msg.Ack()
	default:
		s.log.Error().Err(err).Str("subject", subject).Msg("job failed, will redeliver")
		s.metrics.JobsHandled.WithLabelValues(subject, "error").Inc()
		msg.Nak()
	}
}

// Stop drains the consumers.
func (s *Subscriber) Stop() {
	for _, c := range s.consumers {
		c.Stop()
	}
}
