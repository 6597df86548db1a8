package transcript

import (
	"fmt"
	"testing"

	"live-transcription-engine/internal/recognizer"
)

func partial(text string) recognizer.Event {
	return recognizer.Event{Type: recognizer.EventPartialTranscript, Text: text}
}

func committed(text string) recognizer.Event {
	return recognizer.Event{Type: recognizer.EventCommittedTranscript, Text: text, Confidence: 0.9}
}

func committedWithWords(text string, words ...recognizer.Word) recognizer.Event {
	return recognizer.Event{Type: recognizer.EventCommittedWithTimestamps, Text: text, Words: words}
}

func countPartials(segs []Segment) int {
	n := 0
	for _, s := range segs {
		if s.Partial {
			n++
		}
	}
	return n
}

func TestApply_PartialUpdatesInPlace(t *testing.T) {
	r := NewReconciler("sess-1")

	if got := r.Apply(partial("こん")); got != OutcomeCreated {
		t.Errorf("first partial: expected created, got %s", got)
	}
	if got := r.Apply(partial("こんにちは")); got != OutcomeUpdated {
		t.Errorf("second partial: expected updated, got %s", got)
	}

	segs := r.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "こんにちは" || !segs[0].Partial {
		t.Errorf("unexpected trailing partial: %+v", segs[0])
	}
}

func TestApply_NeverMoreThanOneTrailingPartial(t *testing.T) {
	r := NewReconciler("sess-1")

	for i := 0; i < 25; i++ {
		r.Apply(partial(fmt.Sprintf("partial revision %d", i)))
		if got := countPartials(r.Segments()); got > 1 {
			t.Fatalf("after %d partials: %d partial segments in sequence", i+1, got)
		}
	}
	if len(r.Segments()) != 1 {
		t.Errorf("expected a single segment after repeated partials, got %d", len(r.Segments()))
	}
}

func TestApply_CommitPromotesMatchingPartialInPlace(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(partial("こん"))
	r.Apply(partial("こんにちは"))
	id := r.Segments()[0].ID

	if got := r.Apply(committed("こんにちは")); got != OutcomePromoted {
		t.Errorf("expected promoted, got %s", got)
	}

	segs := r.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].ID != id {
		t.Errorf("promotion must keep the segment id: got %s, want %s", segs[0].ID, id)
	}
	if segs[0].Partial {
		t.Error("promoted segment must not stay partial")
	}
	if segs[0].Text != "こんにちは" {
		t.Errorf("unexpected text: %s", segs[0].Text)
	}
}

func TestApply_CommitWithDifferentTextAppends(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(committed("first utterance"))
	r.Apply(committed("second utterance"))

	segs := r.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].ID == segs[1].ID {
		t.Error("appended segments must have distinct ids")
	}
}

func TestApply_TimingCommitPromotesPartialRegardlessOfText(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(partial("hello"))
	id := r.Segments()[0].ID

	outcome := r.Apply(committedWithWords("hello world",
		recognizer.Word{Text: "hello"},
		recognizer.Word{Text: "world", SpeakerID: "A"},
	))
	if outcome != OutcomePromoted {
		t.Errorf("expected promoted, got %s", outcome)
	}

	segs := r.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	seg := segs[0]
	if seg.ID != id || seg.Partial {
		t.Errorf("expected in-place promotion, got %+v", seg)
	}
	if seg.Text != "hello world" {
		t.Errorf("word-level confirmation is authoritative, got text %q", seg.Text)
	}
	if seg.SpeakerID != "A" {
		t.Errorf("expected speaker A (first word carrying one), got %q", seg.SpeakerID)
	}
}

func TestApply_TimingCommitAfterIdenticalCommitUpdatesSpeakerOnly(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(committed("hello world"))
	if got := len(r.Segments()); got != 1 {
		t.Fatalf("expected 1 segment, got %d", got)
	}

	outcome := r.Apply(committedWithWords("hello world",
		recognizer.Word{Text: "hello", SpeakerID: "B"},
		recognizer.Word{Text: "world"},
	))
	if outcome != OutcomeUpdated {
		t.Errorf("expected updated, got %s", outcome)
	}

	segs := r.Segments()
	if len(segs) != 1 {
		t.Fatalf("timing confirmation of identical text must not insert a duplicate, got %d segments", len(segs))
	}
	if segs[0].SpeakerID != "B" {
		t.Errorf("expected speaker updated to B, got %q", segs[0].SpeakerID)
	}
}

func TestApply_TimingCommitWithNewTextAppends(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(committed("hello world"))
	outcome := r.Apply(committedWithWords("goodbye",
		recognizer.Word{Text: "goodbye", SpeakerID: "C"},
	))
	if outcome != OutcomeCreated {
		t.Errorf("expected created, got %s", outcome)
	}

	segs := r.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[1].SpeakerID != "C" {
		t.Errorf("expected speaker C, got %q", segs[1].SpeakerID)
	}
}

func TestApply_ErrorAndSessionStartedDoNotTouchSegments(t *testing.T) {
	r := NewReconciler("sess-1")
	r.Apply(committed("hello"))

	outcomes := []Outcome{
		r.Apply(recognizer.Event{Type: recognizer.EventSessionStarted}),
		r.Apply(recognizer.Event{
			Type: recognizer.EventError,
			Err:  &recognizer.Error{Code: recognizer.CodeQuotaExceeded, Message: "quota"},
		}),
	}
	for i, o := range outcomes {
		if o != OutcomeNone {
			t.Errorf("event %d: expected none, got %s", i, o)
		}
	}
	if len(r.Segments()) != 1 {
		t.Errorf("segments must be untouched, got %d", len(r.Segments()))
	}
}

func TestBlocks_MergesConsecutiveCommittedSameSpeaker(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(committedWithWords("good morning", recognizer.Word{Text: "good", SpeakerID: "A"}))
	r.Apply(committedWithWords("how are you", recognizer.Word{Text: "how", SpeakerID: "A"}))
	r.Apply(committedWithWords("fine thanks", recognizer.Word{Text: "fine", SpeakerID: "B"}))
	r.Apply(partial("and you"))

	blocks := r.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Text != "good morning how are you" || blocks[0].SpeakerID != "A" {
		t.Errorf("unexpected merged block: %+v", blocks[0])
	}
	if blocks[1].Text != "fine thanks" || blocks[1].SpeakerID != "B" {
		t.Errorf("unexpected block: %+v", blocks[1])
	}
	if !blocks[2].Partial || blocks[2].Text != "and you" {
		t.Errorf("partials must never merge: %+v", blocks[2])
	}

	// The merge is a projection: recomputing it leaves segments untouched.
	if len(r.Segments()) != 4 {
		t.Errorf("expected canonical sequence preserved, got %d segments", len(r.Segments()))
	}
}

func TestBlocks_MergesSegmentsWithNoSpeaker(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(committed("one"))
	r.Apply(committed("two"))

	blocks := r.Blocks()
	if len(blocks) != 1 || blocks[0].Text != "one two" {
		t.Errorf("expected speakerless commits merged, got %+v", blocks)
	}
}

func TestFinalText_Assembly(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(committedWithWords("hello there", recognizer.Word{Text: "hello", SpeakerID: "A"}))
	r.Apply(committed("no speaker line"))
	r.Apply(partial("still in flight"))

	want := "[A]: hello there\n\nno speaker line"
	if got := r.FinalText(); got != want {
		t.Errorf("FinalText() = %q, want %q", got, want)
	}
}

func TestScenario_PartialPartialCommit(t *testing.T) {
	r := NewReconciler("sess-1")

	r.Apply(partial("こん"))
	r.Apply(partial("こんにちは"))
	r.Apply(committed("こんにちは"))

	segs := r.Segments()
	if len(segs) != 1 || segs[0].Partial || segs[0].Text != "こんにちは" {
		t.Errorf("expected one committed segment %q, got %+v", "こんにちは", segs)
	}
	blocks := r.Blocks()
	if len(blocks) != 1 || blocks[0].Text != "こんにちは" {
		t.Errorf("expected one merged block, got %+v", blocks)
	}
}

func TestGenerator_MonotonicIds(t *testing.T) {
	g := NewGenerator()
	a := g.Next("sess-1")
	b := g.Next("sess-1")
	if a == b {
		t.Errorf("ids must be unique, got %s twice", a)
	}
	if a != "sess-1-seg-1" || b != "sess-1-seg-2" {
		t.Errorf("expected monotonic ids, got %s, %s", a, b)
	}
}
