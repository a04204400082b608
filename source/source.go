// Package source maintains the MQTT connection to the broker fronting the
// wireless sensor and feeds every received notification payload into a sink.
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/sandrayoe/mms-version2/internal/log"
	"github.com/sandrayoe/mms-version2/internal/retry"
	"github.com/sandrayoe/mms-version2/internal/wallclock"
)

// MQTT DISCONNECT reason code.
const disconnectNormalDisconnection byte = 0x00

// Sink receives notification payloads and transport resets. ingest.Pipeline
// satisfies it.
type Sink interface {
	// PushAt hands over one notification payload stamped with its arrival
	// time. The payload is only valid for the duration of the call.
	PushAt(payload []byte, arrival time.Time)

	// Clear performs a hard reset after the transport loses its connection,
	// so stale, half-processed data never survives an outage.
	Clear()
}

// NotificationSource owns the broker connection. It subscribes to the
// notification topic and pushes every received payload into the sink stamped
// with its arrival time. A lost connection clears the sink and reconnects
// with fresh state; notifications missed during the outage are gone, by the
// same at-most-once contract as the rest of the pipeline.
type NotificationSource struct {
	settings  *Settings
	sink      Sink
	log       logger
	logger    *slog.Logger
	connRetry retry.Policy

	mu     sync.Mutex
	client *paho.Client

	// stop is non-nil exactly while the maintain goroutine is active.
	stop chan struct{}
	done chan struct{}
}

// Option configures a NotificationSource.
type Option func(*NotificationSource)

// WithLogger sets the logger for the source.
func WithLogger(l *slog.Logger) Option {
	return func(s *NotificationSource) {
		s.log = logger{log.Wrap(l)}
		s.logger = l
	}
}

// WithConnRetry replaces the default connection retry policy.
func WithConnRetry(connRetry retry.Policy) Option {
	return func(s *NotificationSource) {
		s.connRetry = connRetry
	}
}

// New creates a notification source feeding sink. The settings are validated
// and defaulted in place.
func New(settings *Settings, sink Sink, opt ...Option) (*NotificationSource, error) {
	if settings == nil {
		return nil, &InvalidArgumentError{message: "settings must not be nil"}
	}
	if sink == nil {
		return nil, &InvalidArgumentError{message: "sink must not be nil"}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &NotificationSource{settings: settings, sink: sink}
	for _, o := range opt {
		o(s)
	}
	return s, nil
}

// NewFromEnv creates a notification source configured from MMS_MQTT_*
// environment variables.
func NewFromEnv(sink Sink, opt ...Option) (*NotificationSource, error) {
	settings, err := SettingsFromEnv()
	if err != nil {
		return nil, err
	}
	return New(settings, sink, opt...)
}

// Start opens the broker connection and begins feeding the sink. It returns
// once the background loop is launched; connection, delivery, and
// reconnection all happen there until Stop is called or ctx ends.
func (s *NotificationSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return &StateError{Running: true}
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go s.maintain(ctx, stop, done)
	return nil
}

// Stop disconnects from the broker and stops feeding the sink, blocking
// until the background loop has exited. Stopping a stopped source is a
// no-op.
func (s *NotificationSource) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *NotificationSource) maintain(
	ctx context.Context,
	stop <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		disconnected, err := s.connect(ctx)
		if err != nil {
			// Context over or retries exhausted.
			if ctx.Err() == nil {
				s.log.Err(ctx, err)
			}
			return
		}

		select {
		case <-ctx.Done():
			s.closeClient()
			return
		case err := <-disconnected:
			s.log.Log(ctx, slog.LevelWarn, "connection lost",
				slog.String("error", err.Error()),
			)
			s.closeClient()
			s.sink.Clear()
		}
	}
}

// connect establishes a connection under the retry policy and returns a
// channel that reports the connection's eventual death.
func (s *NotificationSource) connect(ctx context.Context) (<-chan error, error) {
	r := s.connRetry
	if r == nil {
		r = &retry.ExponentialBackoff{
			Timeout: s.settings.ConnectionTimeout,
			Logger:  s.logger,
		}
	}

	var disconnected <-chan error
	err := r.Start(ctx, "connect",
		func(ctx context.Context) (bool, error) {
			var err error
			disconnected, err = s.attemptConnect(ctx)
			return err != nil, err
		},
	)
	if err != nil {
		return nil, err
	}
	return disconnected, nil
}

// attemptConnect represents a single connection attempt: dial, CONNECT, then
// SUBSCRIBE to the notification topic.
func (s *NotificationSource) attemptConnect(ctx context.Context) (<-chan error, error) {
	conn, err := s.settings.Provider()(ctx)
	if err != nil {
		return nil, err
	}

	// Only the first terminal event matters; later ones are echoes of the
	// same death.
	disconnected := make(chan error, 1)
	fatal := func(err error) {
		if err == nil {
			return
		}
		select {
		case disconnected <- err:
		default:
		}
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:          conn,
		ClientID:      s.settings.ClientID,
		OnClientError: fatal,
		OnServerDisconnect: func(d *paho.Disconnect) {
			fatal(&DisconnectError{ReasonCode: d.ReasonCode})
		},
	})
	client.AddOnPublishReceived(func(pb paho.PublishReceived) (bool, error) {
		s.sink.PushAt(pb.Packet.Payload, wallclock.Instance.Now())
		return true, nil
	})

	cp := s.settings.ConnectPacket()
	s.log.Packet(ctx, "connect", cp)
	connack, err := client.Connect(ctx, cp)
	if err != nil {
		if connack != nil {
			return nil, &ConnackError{ReasonCode: connack.ReasonCode}
		}
		return nil, &ConnectionError{message: "CONNECT failed", wrapped: err}
	}
	s.log.Packet(ctx, "connack", connack)

	sub := &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic: s.settings.Topic,
			QoS:   0,
		}},
	}
	s.log.Packet(ctx, "subscribe", sub)
	suback, err := client.Subscribe(ctx, sub)
	if err != nil {
		_ = client.Disconnect(&paho.Disconnect{
			ReasonCode: disconnectNormalDisconnection,
		})
		return nil, &ConnectionError{message: "SUBSCRIBE failed", wrapped: err}
	}
	s.log.Packet(ctx, "suback", suback)

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.log.Log(ctx, slog.LevelInfo, "connected",
		slog.String("client_id", s.settings.ClientID),
		slog.String("topic", s.settings.Topic),
	)
	return disconnected, nil
}

func (s *NotificationSource) closeClient() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		_ = client.Disconnect(&paho.Disconnect{
			ReasonCode: disconnectNormalDisconnection,
		})
	}
}
