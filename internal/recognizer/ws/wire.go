package ws

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"live-transcription-engine/internal/recognizer"
)

// outboundChunk is the single outbound message shape.
type outboundChunk struct {
	AudioBase64 string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
	Commit      bool   `json:"commit,omitempty"`
}

type outboundMessage struct {
	InputAudioChunk outboundChunk `json:"input_audio_chunk"`
}

// inboundMessage is the superset of all inbound message fields, discriminated
// by the type tag.
type inboundMessage struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Words      []recognizer.Word `json:"words,omitempty"`
	Code       string            `json:"code,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// sessionURI builds the connection URI embedding the credential and the
// declared parameter set. The query parameter names are a stable contract
// with the recognizer backend.
func sessionURI(endpoint, credential string, opts recognizer.ConnectionOptions) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse recognizer endpoint: %w", err)
	}

	q := u.Query()
	q.Set("token", credential)
	q.Set("language_code", opts.LanguageCode)
	q.Set("diarize", strconv.FormatBool(opts.Diarize))
	q.Set("include_timestamps", "true")
	q.Set("commit_strategy", "vad")
	q.Set("vad_silence_threshold_secs", strconv.FormatFloat(opts.VADSilenceThresholdSecs, 'f', -1, 64))
	q.Set("vad_min_speech_duration_secs", strconv.FormatFloat(opts.VADMinSpeechDurationSecs, 'f', -1, 64))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// decodeEvent parses one inbound message into a transcript event.
// Returns (nil, nil) for unknown type tags so callers can drop them
// without treating forward-compatible messages as failures.
func decodeEvent(data []byte) (*recognizer.Event, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	switch recognizer.EventType(msg.Type) {
	case recognizer.EventSessionStarted:
		return &recognizer.Event{Type: recognizer.EventSessionStarted}, nil
	case recognizer.EventPartialTranscript:
		return &recognizer.Event{Type: recognizer.EventPartialTranscript, Text: msg.Text}, nil
	case recognizer.EventCommittedTranscript:
		return &recognizer.Event{
			Type:       recognizer.EventCommittedTranscript,
			Text:       msg.Text,
			Confidence: msg.Confidence,
		}, nil
	case recognizer.EventCommittedWithTimestamps:
		return &recognizer.Event{
			Type:       recognizer.EventCommittedWithTimestamps,
			Text:       msg.Text,
			Confidence: msg.Confidence,
			Words:      msg.Words,
		}, nil
	case recognizer.EventError:
		return &recognizer.Event{
			Type: recognizer.EventError,
			Err:  classifyBackendError(msg.Code, msg.Message),
		}, nil
	default:
		return nil, nil
	}
}

// classifyBackendError maps backend error codes onto the engine taxonomy.
// Quota errors stay recoverable; everything else is surfaced as Unknown with
// the original code and message preserved.
func classifyBackendError(code, message string) *recognizer.Error {
	if code == "quota_exceeded" {
		return &recognizer.Error{Code: recognizer.CodeQuotaExceeded, Message: message}
	}
	if code != "" {
		message = code + ": " + message
	}
	return &recognizer.Error{Code: recognizer.CodeUnknown, Message: message}
}
