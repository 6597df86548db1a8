// Package session wires the audio source, the recognizer transport, and the
// segment reconciler into one observable transcription session.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-engine/internal/auth"
	"live-transcription-engine/internal/capture"
	"live-transcription-engine/internal/events"
	"live-transcription-engine/internal/models"
	"live-transcription-engine/internal/observability/logging"
	"live-transcription-engine/internal/observability/metrics"
	"live-transcription-engine/internal/recognizer"
	"live-transcription-engine/internal/transcript"
)

// Status is the connection status exposed in the session state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// phase is the orchestrator's internal state machine:
// idle → connecting → streaming → (errored | idle).
type phase int

const (
	phaseIdle phase = iota
	phaseConnecting
	phaseStreaming
	phaseErrored
)

// State is a point-in-time snapshot of the session.
type State struct {
	SessionID     string               `json:"sessionId"`
	Active        bool                 `json:"active"`
	Status        Status               `json:"status"`
	Segments      []transcript.Segment `json:"segments"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
	QuotaExceeded bool                 `json:"quotaExceeded,omitempty"`
}

// Config bundles the orchestrator's collaborators.
type Config struct {
	Tokens    auth.Provider
	Transport recognizer.Session
	Source    capture.Source
	Publisher *events.Publisher
	Options   recognizer.ConnectionOptions
}

// Orchestrator is the public control surface of the engine. It is the sole
// mutator of session state; the transport and the reconciler only emit
// events and return values that the orchestrator applies. All state
// mutation funnels through one mutex, the serialization point between audio
// delivery and inbound event delivery.
type Orchestrator struct {
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	// streaming gates the audio path: no frame is forwarded once cleared.
	streaming atomic.Bool

	mu        sync.Mutex
	phase     phase
	status    Status
	errMsg    string
	quota     bool
	sessionId string
	rec       *transcript.Reconciler
	startedAt time.Time
	epoch     uint64 // bumped on every start/stop; stale pumps no-op
}

// New creates an orchestrator. No session is active until Start.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		log:     logging.WithComponent("session"),
		metrics: metrics.DefaultMetrics,
		status:  StatusDisconnected,
	}
}

// Start begins a new session. If one is already running it is fully stopped
// first; no two sessions ever overlap. Any failure leaves the session in the
// error state with the transport disconnected, never half-connected.
func (o *Orchestrator) Start(ctx context.Context, sessionId string) error {
	o.Stop()

	o.mu.Lock()
	o.epoch++
	epoch := o.epoch
	o.sessionId = sessionId
	o.rec = transcript.NewReconciler(sessionId)
	o.phase = phaseConnecting
	o.status = StatusConnecting
	o.errMsg = ""
	o.quota = false
	o.startedAt = time.Now()
	o.mu.Unlock()

	o.metrics.RecordSessionStart()
	log := logging.WithSession(sessionId)
	log.Info().Msg("session starting")

	// The credential is consumed by exactly this connection attempt and
	// discarded on success or failure; it is never retained.
	token, err := o.cfg.Tokens.IssueToken(ctx)
	if err != nil {
		return o.failStart(epoch, log, err)
	}

	if err := o.cfg.Transport.Connect(ctx, token, o.cfg.Options); err != nil {
		o.cfg.Transport.Disconnect()
		return o.failStart(epoch, log, err)
	}

	inbound := o.cfg.Transport.Events()

	o.mu.Lock()
	if o.epoch != epoch {
		// A concurrent stop superseded this start while connecting.
		o.mu.Unlock()
		o.cfg.Transport.Disconnect()
		return nil
	}
	o.phase = phaseStreaming
	o.status = StatusConnected
	o.mu.Unlock()

	o.streaming.Store(true)
	go o.pump(epoch, inbound)

	if err := o.cfg.Source.Start(o.onFrame); err != nil {
		o.streaming.Store(false)
		// Record the failure before closing the transport so the pump's
		// close handling observes a stale epoch, not a live session.
		failErr := o.failStart(epoch, log, fmt.Errorf("start audio source: %w", err))
		o.cfg.Transport.Disconnect()
		return failErr
	}

	log.Info().Msg("session streaming")
	return nil
}

// Stop ends the session: audio source stopped, transport disconnected,
// state back to idle. Safe from any state and idempotent; it never blocks
// on network I/O and no audio frame is forwarded after it returns.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.phase == phaseIdle {
		o.mu.Unlock()
		return
	}
	o.epoch++
	wasActive := o.phase == phaseStreaming || o.phase == phaseConnecting
	o.phase = phaseIdle
	o.status = StatusDisconnected
	started := o.startedAt
	o.mu.Unlock()

	o.streaming.Store(false)
	o.cfg.Source.Stop()
	o.cfg.Transport.Disconnect()

	if wasActive {
		o.metrics.RecordSessionEnd(time.Since(started).Seconds())
	}
	o.log.Info().Msg("session stopped")
}

// SendAudioChunk is the manual override path: it forwards one frame to the
// transport, bypassing the audio source.
func (o *Orchestrator) SendAudioChunk(audio []byte, sampleRateHz int, commit bool) error {
	return o.cfg.Transport.SendAudioChunk(audio, sampleRateHz, commit)
}

// Commit sends a manual end-of-utterance signal.
func (o *Orchestrator) Commit() error {
	return o.cfg.Transport.Commit()
}

// Snapshot returns a copy of the current session state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := State{
		SessionID:     o.sessionId,
		Active:        o.phase == phaseConnecting || o.phase == phaseStreaming,
		Status:        o.status,
		ErrorMessage:  o.errMsg,
		QuotaExceeded: o.quota,
	}
	if o.rec != nil {
		st.Segments = o.rec.Segments()
	} else {
		st.Segments = []transcript.Segment{}
	}
	return st
}

// Blocks returns the speaker-merged presentation view.
func (o *Orchestrator) Blocks() []transcript.Block {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rec == nil {
		return nil
	}
	return o.rec.Blocks()
}

// FinalTranscript assembles the committed transcript so far.
func (o *Orchestrator) FinalTranscript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rec == nil {
		return ""
	}
	return o.rec.FinalText()
}

// onFrame forwards captured audio to the transport. Frames arriving after
// Stop are discarded, never queued.
func (o *Orchestrator) onFrame(frame []byte, sampleRateHz int) {
	if !o.streaming.Load() {
		return
	}
	if err := o.cfg.Transport.SendAudioChunk(frame, sampleRateHz, false); err != nil {
		o.log.Warn().Err(err).Msg("audio forward failed")
	}
}

// pump applies inbound events in arrival order until the transport closes.
// Arrival order is the only ordering signal the reconciler relies on.
func (o *Orchestrator) pump(epoch uint64, inbound <-chan recognizer.Event) {
	for ev := range inbound {
		o.apply(epoch, ev)
	}
	o.handleTransportClosed(epoch)
}

// apply is the single place session state changes in response to an event.
func (o *Orchestrator) apply(epoch uint64, ev recognizer.Event) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}

	switch ev.Type {
	case recognizer.EventSessionStarted:
		o.mu.Unlock()
		o.log.Debug().Msg("recognizer session started")

	case recognizer.EventError:
		o.applyError(ev.Err)

	default:
		outcome := o.rec.Apply(ev)
		seg, ok := o.rec.Last()
		sessionId := o.sessionId
		o.mu.Unlock()
		if ok && outcome != transcript.OutcomeNone {
			o.publish(sessionId, ev.Type, seg)
		}
	}
}

// applyError handles an inbound error event. Quota exhaustion is an
// advisory: transcription stops server-side but the session stays alive so
// audio capture can continue. Everything else is terminal. Called with the
// state lock held; releases it.
func (o *Orchestrator) applyError(err *recognizer.Error) {
	if err == nil {
		err = recognizer.NewError(recognizer.CodeUnknown, "recognizer error with no detail")
	}

	if err.Recoverable() {
		o.quota = true
		o.mu.Unlock()
		o.log.Warn().Str("code", string(err.Code)).Msg("quota exceeded: live transcription disabled")
		return
	}

	o.phase = phaseErrored
	o.status = StatusError
	o.errMsg = err.Message
	o.mu.Unlock()

	o.metrics.RecordSessionFailed(string(err.Code))
	o.log.Error().Str("code", string(err.Code)).Str("message", err.Message).Msg("session error")
}

// handleTransportClosed reacts to the end of the inbound event stream: the
// audio source is stopped and, unless the session already errored, the state
// machine returns to idle.
func (o *Orchestrator) handleTransportClosed(epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	errored := o.phase == phaseErrored
	if !errored {
		o.phase = phaseIdle
		o.status = StatusDisconnected
	}
	started := o.startedAt
	o.mu.Unlock()

	o.streaming.Store(false)
	o.cfg.Source.Stop()
	o.metrics.RecordSessionEnd(time.Since(started).Seconds())
	o.log.Info().Bool("errored", errored).Msg("transport closed")
}

// failStart records a start failure and guarantees the error state, unless a
// newer start already took over. It also invalidates the epoch so a pump
// spawned by this attempt cannot mutate state afterwards.
func (o *Orchestrator) failStart(epoch uint64, log zerolog.Logger, err error) error {
	o.mu.Lock()
	if o.epoch == epoch {
		o.epoch++
		o.phase = phaseErrored
		o.status = StatusError
		o.errMsg = err.Error()
	}
	started := o.startedAt
	o.mu.Unlock()

	o.metrics.RecordSessionFailed(string(recognizer.CodeOf(err)))
	o.metrics.RecordSessionEnd(time.Since(started).Seconds())
	log.Error().Err(err).Msg("session start failed")
	return err
}

// publish forwards a reconciled segment downstream. Publish failures are
// logged, never propagated into the session.
func (o *Orchestrator) publish(sessionId string, evType recognizer.EventType, seg transcript.Segment) {
	if o.cfg.Publisher == nil {
		return
	}
	ctx := context.Background()

	if evType == recognizer.EventPartialTranscript {
		ev := models.TranscriptPartial{
			EventType: models.EventTranscriptPartial,
			SessionID: sessionId,
			SegmentID: seg.ID,
			Text:      seg.Text,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := o.cfg.Publisher.PublishPartial(ctx, sessionId, ev); err != nil {
			o.log.Warn().Err(err).Str("segmentId", seg.ID).Msg("failed to publish partial")
		}
		return
	}

	ev := models.TranscriptCommitted{
		EventType:  models.EventTranscriptCommitted,
		SessionID:  sessionId,
		SegmentID:  seg.ID,
		Text:       seg.Text,
		SpeakerID:  seg.SpeakerID,
		Confidence: seg.Confidence,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := o.cfg.Publisher.PublishCommitted(ctx, sessionId, ev); err != nil {
		o.log.Warn().Err(err).Str("segmentId", seg.ID).Msg("failed to publish committed")
	}
}
