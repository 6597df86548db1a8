package transcript

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-engine/internal/observability/logging"
	"live-transcription-engine/internal/observability/metrics"
	"live-transcription-engine/internal/recognizer"
)

// Outcome describes what Apply did to the segment sequence.
type Outcome int

const (
	// OutcomeNone - the event did not touch segments.
	OutcomeNone Outcome = iota
	// OutcomeCreated - a new segment was appended.
	OutcomeCreated
	// OutcomeUpdated - an existing segment was updated in place.
	OutcomeUpdated
	// OutcomePromoted - the trailing partial was promoted to committed in place.
	OutcomePromoted
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomePromoted:
		return "promoted"
	default:
		return "unknown"
	}
}

// Block is a read-only presentation view: consecutive committed segments
// sharing a speaker merged into one displayed block.
type Block struct {
	Text      string `json:"text"`
	Partial   bool   `json:"partial"`
	SpeakerID string `json:"speakerId,omitempty"`
}

// Reconciler folds recognizer events into the segment sequence. It is purely
// a function of event order and is not safe for concurrent use; the session
// orchestrator is its single writer.
type Reconciler struct {
	sessionId string
	gen       *Generator
	started   time.Time
	now       func() time.Time

	segments []Segment
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewReconciler creates a reconciler for one session. The timestamp origin
// is the moment of creation.
func NewReconciler(sessionId string) *Reconciler {
	r := &Reconciler{
		sessionId: sessionId,
		gen:       NewGenerator(),
		now:       time.Now,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithSession(sessionId),
	}
	r.started = r.now()
	return r
}

// Apply folds one event into the segment sequence and reports the outcome.
// Error and session-started events never touch segments.
func (r *Reconciler) Apply(ev recognizer.Event) Outcome {
	switch ev.Type {
	case recognizer.EventPartialTranscript:
		return r.applyPartial(ev.Text)
	case recognizer.EventCommittedTranscript:
		return r.applyCommitted(ev.Text, ev.Confidence)
	case recognizer.EventCommittedWithTimestamps:
		return r.applyCommittedWithWords(ev.Text, ev.Confidence, ev.Words)
	default:
		return OutcomeNone
	}
}

// applyPartial updates the trailing partial in place or appends a new one.
func (r *Reconciler) applyPartial(text string) Outcome {
	if last := r.last(); last != nil && last.Partial {
		last.Text = text
		last.Timestamp = r.elapsed()
		r.metrics.SegmentsUpdated.Inc()
		return OutcomeUpdated
	}

	r.segments = append(r.segments, Segment{
		ID:        r.gen.Next(r.sessionId),
		Text:      text,
		Partial:   true,
		Timestamp: r.elapsed(),
	})
	r.metrics.SegmentsCreated.Inc()
	return OutcomeCreated
}

// applyCommitted promotes the trailing partial in place when its text equals
// the incoming text exactly; this prevents a duplicate when the backend
// re-sends the same final text as both a last partial and a commit.
func (r *Reconciler) applyCommitted(text string, confidence float64) Outcome {
	if last := r.last(); last != nil && last.Partial && last.Text == text {
		last.Partial = false
		last.Timestamp = r.elapsed()
		last.Confidence = confidence
		r.metrics.SegmentsPromoted.Inc()
		return OutcomePromoted
	}

	r.segments = append(r.segments, Segment{
		ID:         r.gen.Next(r.sessionId),
		Text:       text,
		Timestamp:  r.elapsed(),
		Confidence: confidence,
	})
	r.metrics.SegmentsCreated.Inc()
	return OutcomeCreated
}

// applyCommittedWithWords handles word-timing confirmations. Word-level
// confirmation is authoritative: a trailing partial is promoted regardless
// of text equality. A committed trailing segment with identical text only
// has its speaker refined, never duplicated.
func (r *Reconciler) applyCommittedWithWords(text string, confidence float64, words []recognizer.Word) Outcome {
	speaker := firstSpeaker(words)

	if last := r.last(); last != nil {
		if last.Partial {
			last.Text = text
			last.Partial = false
			last.SpeakerID = speaker
			last.Timestamp = r.elapsed()
			last.Confidence = confidence
			r.metrics.SegmentsPromoted.Inc()
			return OutcomePromoted
		}
		if last.Text == text {
			if last.SpeakerID != "" && speaker != "" && last.SpeakerID != speaker {
				r.log.Debug().
					Str("segmentId", last.ID).
					Str("previousSpeaker", last.SpeakerID).
					Str("speaker", speaker).
					Msg("speaker overwritten by repeated confirmation")
			}
			last.SpeakerID = speaker
			r.metrics.SegmentsUpdated.Inc()
			return OutcomeUpdated
		}
	}

	r.segments = append(r.segments, Segment{
		ID:         r.gen.Next(r.sessionId),
		Text:       text,
		Timestamp:  r.elapsed(),
		SpeakerID:  speaker,
		Confidence: confidence,
	})
	r.metrics.SegmentsCreated.Inc()
	return OutcomeCreated
}

// Segments returns a copy of the canonical segment sequence.
func (r *Reconciler) Segments() []Segment {
	out := make([]Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// Last returns a copy of the trailing segment, or false when empty.
func (r *Reconciler) Last() (Segment, bool) {
	if len(r.segments) == 0 {
		return Segment{}, false
	}
	return r.segments[len(r.segments)-1], true
}

// Blocks recomputes the presentation merge from the canonical sequence:
// consecutive committed segments sharing a speaker (including both having
// none) concatenate with a space; partials are never merged.
func (r *Reconciler) Blocks() []Block {
	var blocks []Block
	for _, seg := range r.segments {
		if !seg.Partial && len(blocks) > 0 {
			prev := &blocks[len(blocks)-1]
			if !prev.Partial && prev.SpeakerID == seg.SpeakerID {
				prev.Text += " " + seg.Text
				continue
			}
		}
		blocks = append(blocks, Block{
			Text:      seg.Text,
			Partial:   seg.Partial,
			SpeakerID: seg.SpeakerID,
		})
	}
	return blocks
}

// FinalText assembles the final transcript: committed segments only, each
// prefixed by its speaker when present, separated by a blank line.
func (r *Reconciler) FinalText() string {
	var parts []string
	for _, seg := range r.segments {
		if seg.Partial {
			continue
		}
		if seg.SpeakerID != "" {
			parts = append(parts, "["+seg.SpeakerID+"]: "+seg.Text)
		} else {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (r *Reconciler) last() *Segment {
	if len(r.segments) == 0 {
		return nil
	}
	return &r.segments[len(r.segments)-1]
}

func (r *Reconciler) elapsed() float64 {
	return r.now().Sub(r.started).Seconds()
}

// firstSpeaker derives the segment speaker as the first word carrying one.
func firstSpeaker(words []recognizer.Word) string {
	for _, w := range words {
		if w.SpeakerID != "" {
			return w.SpeakerID
		}
	}
	return ""
}
