// Package mock provides a scripted recognizer session for demos and tests
// that must run without a recognizer backend. It simulates realistic
// behavior: progressive partial transcripts while audio arrives, and exactly
// one committed transcript per utterance, alternating between plain commits
// and word-timing commits with speaker attribution.
package mock

import (
	"context"
	"strings"
	"sync"

	"live-transcription-engine/internal/recognizer"
)

// SimulatedUtterance is one scripted utterance.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
	SpeakerID  string // attached via word timings on every other utterance
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want to", "I want to cancel"},
		Final:      "I want to cancel my subscription",
		Confidence: 0.94,
		SpeakerID:  "A",
	},
	{
		Partials:   []string{"Yes", "Yes please"},
		Final:      "Yes please go ahead",
		Confidence: 0.97,
		SpeakerID:  "B",
	},
	{
		Partials:   []string{"Can you", "Can you help", "Can you help me with"},
		Final:      "Can you help me with my account",
		Confidence: 0.91,
		SpeakerID:  "A",
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you very much",
		Confidence: 0.98,
		SpeakerID:  "B",
	},
}

// framesPerPartial controls how many audio frames trigger the next partial.
const framesPerPartial = 3

// Session implements recognizer.Session with scripted responses.
type Session struct {
	utterances []SimulatedUtterance

	mu           sync.Mutex
	connected    bool
	events       chan recognizer.Event
	utterance    int
	partialIndex int
	frames       int
}

// NewSession creates a mock session cycling through the given utterances,
// or DefaultUtterances when none are supplied.
func NewSession(utterances ...SimulatedUtterance) *Session {
	if len(utterances) == 0 {
		utterances = DefaultUtterances
	}
	return &Session{utterances: utterances}
}

// Connect marks the session open and emits session-started.
func (s *Session) Connect(_ context.Context, _ string, _ recognizer.ConnectionOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.connected = true
	s.events = make(chan recognizer.Event, 64)
	s.events <- recognizer.Event{Type: recognizer.EventSessionStarted}
	return nil
}

// SendAudioChunk advances the script: every few frames the next partial is
// emitted; a commit flag finishes the current utterance.
func (s *Session) SendAudioChunk(_ []byte, _ int, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}

	s.frames++
	if s.frames%framesPerPartial == 0 {
		u := s.current()
		if s.partialIndex < len(u.Partials) {
			s.emit(recognizer.Event{
				Type: recognizer.EventPartialTranscript,
				Text: u.Partials[s.partialIndex],
			})
			s.partialIndex++
		} else {
			// Partials exhausted: the VAD commit strategy would fire here.
			s.finishUtterance()
		}
	}

	if commit {
		s.finishUtterance()
	}
	return nil
}

// Commit finishes the current utterance immediately.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.finishUtterance()
	return nil
}

// Disconnect closes the session and the event stream. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	s.connected = false
	close(s.events)
}

// IsConnected reports whether the session is open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Events returns the event stream for the current connection.
func (s *Session) Events() <-chan recognizer.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *Session) current() SimulatedUtterance {
	return s.utterances[s.utterance%len(s.utterances)]
}

// finishUtterance emits the committed transcript for the current utterance
// and advances the script. Every other utterance confirms with word timings
// so diarization paths get exercised.
func (s *Session) finishUtterance() {
	u := s.current()

	if s.utterance%2 == 1 {
		words := scriptWords(u)
		s.emit(recognizer.Event{
			Type:       recognizer.EventCommittedWithTimestamps,
			Text:       u.Final,
			Confidence: u.Confidence,
			Words:      words,
		})
	} else {
		s.emit(recognizer.Event{
			Type:       recognizer.EventCommittedTranscript,
			Text:       u.Final,
			Confidence: u.Confidence,
		})
	}

	s.utterance++
	s.partialIndex = 0
	s.frames = 0
}

// emit drops the event if the buffer is full; the mock never blocks callers.
func (s *Session) emit(ev recognizer.Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// scriptWords fabricates evenly spaced word timings carrying the utterance's
// speaker on the first word.
func scriptWords(u SimulatedUtterance) []recognizer.Word {
	var words []recognizer.Word
	start := 0.0
	for i, w := range strings.Fields(u.Final) {
		word := recognizer.Word{
			Text:      w,
			StartSecs: start,
			EndSecs:   start + 0.3,
		}
		if i == 0 {
			word.SpeakerID = u.SpeakerID
		}
		words = append(words, word)
		start += 0.35
	}
	return words
}
