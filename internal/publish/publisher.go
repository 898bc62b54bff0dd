package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	feplog "github.com/rgregg/frigate-event-processor/internal/log"
)

// Egress is the MQTT publish surface the publisher depends on.
type Egress interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

const (
	maxAttempts    = 3
	attemptTimeout = 5 * time.Second
)

// Publisher submits alerts to one egress topic at QoS 1, not retained.
// Publish blocks through up to three attempts with exponential backoff;
// the caller decides what a final failure means.
type Publisher struct {
	egress Egress
	topic  string
	logger zerolog.Logger
}

// New creates a publisher for the given egress topic.
func New(egress Egress, topic string) *Publisher {
	return &Publisher{
		egress: egress,
		topic:  topic,
		logger: feplog.WithComponent("publisher"),
	}
}

// Publish encodes and submits one alert.
func (p *Publisher) Publish(ctx context.Context, alert Alert) error {
	payload, err := alert.Encode()
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", alert.EventID, err)
	}

	attempt := 0
	submit := func() (struct{}, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()
		if err := p.egress.Publish(actx, p.topic, 1, false, payload); err != nil {
			p.logger.Warn().
				Err(err).
				Str(feplog.FieldEventID, alert.EventID).
				Str(feplog.FieldTopic, p.topic).
				Int("attempt", attempt).
				Str("event", "publish.attempt_failed").
				Msg("alert publish attempt failed")
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, submit,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return fmt.Errorf("publish alert %s after %d attempts: %w", alert.EventID, attempt, err)
	}
	return nil
}
