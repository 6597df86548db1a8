// Package models defines the data structures for downstream transcript events.
package models

// TranscriptPartial represents an interim transcript segment revision.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	SegmentID string `json:"segmentId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptCommitted represents a finalized transcript segment.
type TranscriptCommitted struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	SegmentID  string  `json:"segmentId"`
	Text       string  `json:"text"`
	SpeakerID  string  `json:"speakerId,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Event type tags carried in the eventType field.
const (
	EventTranscriptPartial   = "session.transcript.partial"
	EventTranscriptCommitted = "session.transcript.committed"
)
