// Package ws implements the recognizer transport session over websocket.
package ws

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-transcription-engine/internal/observability/logging"
	"live-transcription-engine/internal/observability/metrics"
	"live-transcription-engine/internal/recognizer"
)

// DefaultConnectTimeout bounds how long a connect attempt may take to reach
// an open connection.
const DefaultConnectTimeout = 10 * time.Second

const eventBufferSize = 64

// Session owns one persistent websocket connection to the recognizer.
// It never reconnects on its own; reconnection is the caller's decision.
type Session struct {
	endpoint       string
	connectTimeout time.Duration
	metrics        *metrics.Metrics
	log            zerolog.Logger

	mu         sync.Mutex // guards connection state and all writes
	conn       *websocket.Conn
	connecting bool
	connected  bool
	events     chan recognizer.Event
	done       chan struct{}
}

// Option customizes a Session.
type Option func(*Session)

// WithConnectTimeout overrides the 10 second connect bound.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// NewSession creates a transport session for the given recognizer endpoint.
func NewSession(endpoint string, opts ...Option) *Session {
	s := &Session{
		endpoint:       endpoint,
		connectTimeout: DefaultConnectTimeout,
		metrics:        metrics.DefaultMetrics,
		log:            logging.WithComponent("recognizer.ws"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect opens the connection. The credential is consumed by this one
// attempt; on failure the caller must obtain a fresh one. A concurrent call
// while connecting or connected is a no-op.
func (s *Session) Connect(ctx context.Context, credential string, opts recognizer.ConnectionOptions) error {
	s.mu.Lock()
	if s.connecting || s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
		s.metrics.RecordConnect(err, string(recognizer.CodeOf(err)), 0)
		return err
	}

	uri, err := sessionURI(s.endpoint, credential, opts)
	if err != nil {
		return fail(recognizer.NewError(recognizer.CodeConnectionRejected, "invalid session URI: %v", err))
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	started := time.Now()
	dialer := websocket.Dialer{HandshakeTimeout: s.connectTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, uri, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if dialCtx.Err() != nil {
			return fail(recognizer.NewError(recognizer.CodeConnectionTimeout,
				"connection not open within %s", s.connectTimeout))
		}
		return fail(recognizer.NewError(recognizer.CodeConnectionRejected, "dial failed: %v", err))
	}

	events := make(chan recognizer.Event, eventBufferSize)
	done := make(chan struct{})

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.connecting = false
	s.events = events
	s.done = done
	s.mu.Unlock()

	s.metrics.RecordConnect(nil, "", time.Since(started).Seconds())
	s.log.Info().Str("endpoint", s.endpoint).Msg("recognizer connection open")

	// The open handshake succeeding is the session-started signal; the
	// backend may additionally send its own session_started message.
	events <- recognizer.Event{Type: recognizer.EventSessionStarted}

	go s.readLoop(conn, events, done)
	return nil
}

// SendAudioChunk encodes one frame as a structured message. When commit is
// set the message also signals end-of-utterance. Not-open connections drop
// the frame with a warning; stale audio must never be replayed later.
func (s *Session) SendAudioChunk(audio []byte, sampleRateHz int, commit bool) error {
	msg := outboundMessage{InputAudioChunk: outboundChunk{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		SampleRate:  sampleRateHz,
		Commit:      commit,
	}}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.connected {
		s.metrics.AudioFramesDropped.Inc()
		s.log.Warn().Int("bytes", len(audio)).Msg("audio chunk dropped: connection not open")
		return nil
	}

	if err := s.conn.WriteJSON(msg); err != nil {
		return recognizer.NewError(recognizer.CodeTransportSendFailed, "write audio chunk: %v", err)
	}

	s.metrics.RecordAudioSent(len(audio))
	if commit {
		s.metrics.CommitsSent.Inc()
	}
	return nil
}

// Commit sends a zero-payload end-of-utterance signal.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.connected {
		s.log.Warn().Msg("commit dropped: connection not open")
		return nil
	}

	msg := outboundMessage{InputAudioChunk: outboundChunk{Commit: true}}
	if err := s.conn.WriteJSON(msg); err != nil {
		return recognizer.NewError(recognizer.CodeTransportSendFailed, "write commit: %v", err)
	}

	s.metrics.CommitsSent.Inc()
	return nil
}

// Disconnect closes the connection and resets the connecting/connected
// flags. Safe to call on an already-closed session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.conn = nil
	s.connected = false
	s.connecting = false
	s.done = nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		_ = conn.Close()
		s.log.Info().Msg("recognizer connection closed")
	}
}

// IsConnected reports whether the connection is open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Events returns the event stream for the current connection. Nil before the
// first successful connect.
func (s *Session) Events() <-chan recognizer.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// readLoop parses inbound messages into events until the connection ends.
// Per-message parse failures are isolated; they never abort the connection.
func (s *Session) readLoop(conn *websocket.Conn, events chan<- recognizer.Event, done <-chan struct{}) {
	defer close(events)
	defer s.teardown(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Local disconnect; nothing further to report.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.emit(events, done, recognizer.Event{
						Type: recognizer.EventError,
						Err:  recognizer.NewError(recognizer.CodeUnknown, "read failed: %v", err),
					})
				}
			}
			return
		}

		ev, err := decodeEvent(data)
		if err != nil {
			s.metrics.MalformedMessages.Inc()
			s.log.Warn().Err(err).Msg("malformed message dropped")
			continue
		}
		if ev == nil {
			s.metrics.UnknownMessages.Inc()
			s.log.Debug().RawJSON("payload", data).Msg("unknown message type dropped")
			continue
		}

		s.metrics.RecordEventReceived(string(ev.Type))
		if !s.emit(events, done, *ev) {
			return
		}
	}
}

// emit delivers an event unless the connection is being torn down.
func (s *Session) emit(events chan<- recognizer.Event, done <-chan struct{}, ev recognizer.Event) bool {
	select {
	case events <- ev:
		return true
	case <-done:
		return false
	}
}

// teardown resets the session state after a remote close or read failure,
// unless a newer connection has already replaced this one.
func (s *Session) teardown(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.connected = false
		s.done = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}
