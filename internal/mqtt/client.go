// Package mqtt wraps the paho client with the session discipline this
// daemon needs: a retained presence topic with a last-will, automatic
// resubscription after reconnects, and context-aware publish.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/metrics"
)

// Handler receives one inbound message. It runs on a paho goroutine and
// must not block.
type Handler func(topic string, payload []byte)

// Config describes one broker session.
type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	StatusTopic string // retained online/offline presence; also the LWT
}

const (
	presenceOnline  = "online"
	presenceOffline = "offline"

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// NewClientID derives a fresh client id with a short random suffix so two
// instances never steal each other's session.
func NewClientID() string {
	return "fep-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Client is a broker session shared by ingress and egress.
type Client struct {
	cfg    Config
	paho   paho.Client
	logger zerolog.Logger

	mu            sync.Mutex
	subs          map[string]Handler
	everConnected bool
}

// New creates the client. Connect must be called before use.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		logger: feplog.WithComponent("mqtt"),
		subs:   make(map[string]Handler),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, presenceOffline, 1, true)
	}

	c.paho = paho.NewClient(opts)
	return c
}

// Connect establishes the session, retrying with exponential backoff until
// ctx expires. Startup fails only when the broker stays unreachable.
func (c *Client) Connect(ctx context.Context) error {
	attempt := func() (struct{}, error) {
		token := c.paho.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return struct{}{}, fmt.Errorf("connect to %s: timeout", c.cfg.BrokerURL)
		}
		if err := token.Error(); err != nil {
			return struct{}{}, fmt.Errorf("connect to %s: %w", c.cfg.BrokerURL, err)
		}
		return struct{}{}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn().
				Err(err).
				Dur("retry_in", next).
				Str(feplog.FieldBroker, c.cfg.BrokerURL).
				Str("event", "mqtt.connect_retry").
				Msg("broker connect failed, retrying")
		}),
	)
	return err
}

// Subscribe registers a handler for a topic. Subscriptions survive
// reconnects: they are re-established from the on-connect hook.
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.paho.IsConnectionOpen() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler Handler) error {
	token := c.paho.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.logger.Info().
		Str(feplog.FieldTopic, topic).
		Str("event", "mqtt.subscribed").
		Msg("subscribed")
	return nil
}

// Publish sends one message and waits for the broker acknowledgement,
// bounded by ctx and the publish timeout.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	token := c.paho.Publish(topic, qos, retained, payload)

	deadline := publishTimeout
	if d, ok := ctx.Deadline(); ok {
		if until := time.Until(d); until < deadline {
			deadline = until
		}
	}
	if !token.WaitTimeout(deadline) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Connected reports whether the session is currently up.
func (c *Client) Connected() bool {
	return c.paho.IsConnectionOpen()
}

// Close announces offline on the presence topic and tears the session down.
func (c *Client) Close() {
	if c.cfg.StatusTopic != "" && c.paho.IsConnectionOpen() {
		token := c.paho.Publish(c.cfg.StatusTopic, 1, true, presenceOffline)
		token.WaitTimeout(2 * time.Second)
	}
	c.paho.Disconnect(250)
	metrics.SetMQTTConnected(false)
	c.logger.Info().Str("event", "mqtt.closed").Msg("broker session closed")
}

func (c *Client) onConnect(_ paho.Client) {
	c.mu.Lock()
	reconnect := c.everConnected
	c.everConnected = true
	subs := make(map[string]Handler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()

	metrics.SetMQTTConnected(true)
	if reconnect {
		metrics.RecordMQTTReconnect()
	}
	c.logger.Info().
		Str(feplog.FieldBroker, c.cfg.BrokerURL).
		Bool("reconnect", reconnect).
		Str("event", "mqtt.connected").
		Msg("broker session established")

	if c.cfg.StatusTopic != "" {
		c.paho.Publish(c.cfg.StatusTopic, 1, true, presenceOnline)
	}
	for topic, handler := range subs {
		if err := c.subscribe(topic, handler); err != nil {
			c.logger.Error().
				Err(err).
				Str(feplog.FieldTopic, topic).
				Str("event", "mqtt.resubscribe_failed").
				Msg("failed to re-establish subscription")
		}
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	metrics.SetMQTTConnected(false)
	c.logger.Warn().
		Err(err).
		Str(feplog.FieldBroker, c.cfg.BrokerURL).
		Str("event", "mqtt.connection_lost").
		Msg("broker session lost, auto-reconnect engaged")
}
