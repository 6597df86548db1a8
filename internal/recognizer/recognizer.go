// Package recognizer defines the contract between the engine and the remote
// speech recognizer: the transport session interface, the transcript event
// taxonomy, and the error taxonomy shared by all implementations.
package recognizer

import "context"

// ConnectionOptions is the immutable configuration bundle supplied at session
// start. It is never mutated mid-session.
type ConnectionOptions struct {
	LanguageCode             string
	Diarize                  bool
	VADSilenceThresholdSecs  float64
	VADMinSpeechDurationSecs float64
}

// Word carries word-level timing from a committed transcript.
type Word struct {
	Text      string  `json:"text"`
	StartSecs float64 `json:"start_secs"`
	EndSecs   float64 `json:"end_secs"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

// EventType discriminates the transcript event variants.
type EventType string

const (
	EventSessionStarted          EventType = "session_started"
	EventPartialTranscript       EventType = "partial_transcript"
	EventCommittedTranscript     EventType = "committed_transcript"
	EventCommittedWithTimestamps EventType = "committed_transcript_with_timestamps"
	EventError                   EventType = "error"
)

// Event is a tagged variant received from the transport. Events are totally
// ordered by arrival on the connection and carry no sequence numbers; arrival
// order is the only correctness signal.
type Event struct {
	Type       EventType
	Text       string
	Confidence float64
	Words      []Word // committed_transcript_with_timestamps only
	Err        *Error // error events only
}

// Session is the transport session contract. One persistent bidirectional
// connection to the recognizer; the session never reconnects on its own.
type Session interface {
	// Connect opens the connection using a single-use credential. A call
	// while connecting or already connected is a no-op returning nil.
	Connect(ctx context.Context, credential string, opts ConnectionOptions) error

	// SendAudioChunk sends one PCM frame. When commit is set the frame also
	// signals end-of-utterance. A no-op with a logged warning if the
	// connection is not open; audio is never buffered for later resend.
	SendAudioChunk(audio []byte, sampleRateHz int, commit bool) error

	// Commit sends a zero-payload end-of-utterance signal.
	Commit() error

	// Disconnect closes the connection and resets internal state. Idempotent.
	Disconnect()

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// Events returns the inbound event stream for the current connection.
	// The channel is closed when the connection ends, locally or remotely.
	Events() <-chan Event
}
