// Package schema validates downstream event payloads before publishing.
package schema

import (
	"fmt"

	"live-transcription-engine/internal/models"
)

// Validator checks that published events carry their required fields.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate rejects events missing identity fields. Unknown payload types
// pass through; validation only covers the shapes this engine owns.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.TranscriptPartial:
		return requireFields(ev.EventType, ev.SessionID, ev.SegmentID)
	case models.TranscriptCommitted:
		return requireFields(ev.EventType, ev.SessionID, ev.SegmentID)
	default:
		return nil
	}
}

func requireFields(eventType, sessionId, segmentId string) error {
	if eventType == "" {
		return fmt.Errorf("event missing eventType")
	}
	if sessionId == "" {
		return fmt.Errorf("event missing sessionId")
	}
	if segmentId == "" {
		return fmt.Errorf("event missing segmentId")
	}
	return nil
}
