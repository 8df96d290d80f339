// Package realtime consumes the platform's push channel for drop
// progress. It maintains a websocket subscription with exponential
// backoff reconnection and delivers progress events to a sink. The
// poll path remains the authority, so delivery here is best-effort.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/dropstream/drops-miner/logging"
)

const (
	// pingInterval keeps the upstream from reaping idle connections.
	pingInterval = 4 * time.Minute

	// pongWait is how long to wait for any frame before declaring the
	// connection dead.
	pongWait = 5 * time.Minute

	// writeWait bounds individual websocket writes.
	writeWait = 10 * time.Second

	// dialTimeout bounds the websocket handshake.
	dialTimeout = 15 * time.Second

	// Reconnection backoff bounds.
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Event is one progress update pushed by the platform.
type Event struct {
	DropID          string `json:"drop_id"`
	CurrentMinutes  int    `json:"current_progress_min"`
	RequiredMinutes int    `json:"required_progress_min"`
}

// Sink receives pushed progress events. Implementations must be safe
// for concurrent use and must not block for long; a slow sink stalls
// the read loop and eventually the connection.
type Sink interface {
	OnProgress(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event)

// OnProgress implements Sink.
func (f SinkFunc) OnProgress(ctx context.Context, ev Event) { f(ctx, ev) }

// Config contains configuration for the subscriber.
type Config struct {
	// URL is the websocket endpoint (wss://...).
	URL string `yaml:"url"`
}

// DefaultConfig returns an empty config; the endpoint is deployment
// specific and must come from the config file.
func DefaultConfig() Config {
	return Config{}
}

// Subscriber maintains the push subscription for one user's drop
// events. Create with New, connect with Connect, stop with Disconnect.
type Subscriber struct {
	logger logging.Logger
	config Config
	sink   Sink

	mu       sync.Mutex
	cancelFn context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// wire frame shapes (LISTEN / PING / PONG / MESSAGE protocol).
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type listenFrame struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

type messageData struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

type progressMessage struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// New creates a subscriber delivering events to sink.
func New(logger logging.Logger, config Config, sink Sink) *Subscriber {
	return &Subscriber{
		logger: logging.ForComponent(logger, logging.ComponentRealtime),
		config: config,
		sink:   sink,
	}
}

// Connect starts the subscription for the given user id. It returns
// immediately; connection and reconnection happen in the background
// until Disconnect or context cancellation.
func (s *Subscriber) Connect(ctx context.Context, userID string) error {
	if s.config.URL == "" {
		return fmt.Errorf("realtime url is required")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, s.cancelFn = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	topic := "user-drop-events." + userID

	s.wg.Add(1)
	go logging.RecoverGoRoutine(s.logger, "realtime_subscriber", func(ctx context.Context) {
		defer s.wg.Done()
		s.reconnectLoop(ctx, topic)
	})(ctx)

	return nil
}

// Disconnect stops the subscription and waits for the loops to exit.
func (s *Subscriber) Disconnect() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancelFn
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// reconnectLoop dials, runs the session, and redials with exponential
// backoff on failure. A successful session resets the backoff.
func (s *Subscriber) reconnectLoop(ctx context.Context, topic string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectBaseDelay
	bo.MaxInterval = reconnectMaxDelay
	bo.MaxElapsedTime = 0 // retry forever, the engine owns cancellation

	for {
		if ctx.Err() != nil {
			return
		}

		reconnections.Inc()
		err := s.runSession(ctx, topic)
		if ctx.Err() != nil {
			return
		}

		delay := bo.NextBackOff()
		s.logger.Warn().Err(err).
			Dur("retry_in", delay).
			Msg("realtime session ended, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runSession dials the endpoint, subscribes to the topic, and pumps
// frames until an error or cancellation. A healthy run longer than the
// ping interval is considered successful for backoff purposes.
func (s *Subscriber) runSession(ctx context.Context, topic string) error {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Subscribe to the user's drop-events topic.
	listen := listenFrame{Type: "LISTEN", Topics: []string{topic}}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(listen); err != nil {
		return fmt.Errorf("LISTEN failed: %w", err)
	}

	s.logger.Info().Str("topic", topic).Msg("realtime subscription active")
	connected.Set(1)
	defer connected.Set(0)

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	// Ping loop keeps the subscription alive.
	go s.pingLoop(ctx, conn, done)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		if err := s.handleFrame(ctx, raw); err != nil {
			return err
		}
	}
}

func (s *Subscriber) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame{Type: "PING"}); err != nil {
				s.logger.Debug().Err(err).Msg("realtime ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

// errReconnectRequested ends the current session so the reconnect loop
// dials a fresh connection.
var errReconnectRequested = errors.New("upstream requested reconnect")

// handleFrame decodes one frame and forwards progress events to the
// sink. Malformed frames are logged and dropped; the poll path is the
// authority, so losing a push update is harmless. A non-nil return
// ends the session.
func (s *Subscriber) handleFrame(ctx context.Context, raw []byte) error {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.logger.Debug().Err(err).Msg("malformed realtime frame")
		return nil
	}

	switch f.Type {
	case "PONG", "RESPONSE":
		return nil
	case "RECONNECT":
		s.logger.Info().Msg("realtime RECONNECT requested by upstream")
		return errReconnectRequested
	case "MESSAGE":
	default:
		return nil
	}

	var md messageData
	if err := json.Unmarshal(f.Data, &md); err != nil {
		s.logger.Debug().Err(err).Msg("malformed realtime message envelope")
		return nil
	}

	var pm progressMessage
	if err := json.Unmarshal([]byte(md.Message), &pm); err != nil {
		s.logger.Debug().Err(err).Msg("malformed realtime progress payload")
		return nil
	}
	if pm.Type != "drop-progress" || pm.Data.DropID == "" {
		return nil
	}

	eventsReceived.Inc()
	s.sink.OnProgress(ctx, pm.Data)
	return nil
}
