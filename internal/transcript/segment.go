// Package transcript folds the ordered stream of recognizer events into an
// ordered, de-duplicated, speaker-aware transcript.
package transcript

import (
	"fmt"
	"sync/atomic"
)

// Segment is one transcript fragment. At most one trailing segment may be
// partial at any time; a partial is always superseded in place by the next
// committed event for the same utterance.
type Segment struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Partial    bool    `json:"partial"`
	Timestamp  float64 `json:"timestamp"` // seconds since session start
	SpeakerID  string  `json:"speakerId,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Generator produces unique, monotonic segment ids within a session.
type Generator struct {
	counter uint64
}

// NewGenerator creates a segment id generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the next segment id for the session.
func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-seg-%d", sessionId, n)
}
