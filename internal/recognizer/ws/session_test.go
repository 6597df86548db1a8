package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-transcription-engine/internal/recognizer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// recognizerStub is a scripted backend: it records the handshake query and
// inbound messages, and plays back canned responses.
type recognizerStub struct {
	t        *testing.T
	query    chan map[string]string
	inbound  chan []byte
	outbound chan string // raw JSON to push to the client
	upgrades atomic.Int64
}

func newRecognizerStub(t *testing.T) *recognizerStub {
	return &recognizerStub{
		t:        t,
		query:    make(chan map[string]string, 4),
		inbound:  make(chan []byte, 64),
		outbound: make(chan string, 64),
	}
}

func (s *recognizerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	for k, vs := range r.URL.Query() {
		params[k] = vs[0]
	}
	s.query <- params

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Logf("upgrade failed: %v", err)
		return
	}
	s.upgrades.Add(1)
	defer conn.Close()

	go func() {
		for msg := range s.outbound {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.inbound <- data
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testOptions() recognizer.ConnectionOptions {
	return recognizer.ConnectionOptions{
		LanguageCode:             "en-US",
		Diarize:                  true,
		VADSilenceThresholdSecs:  0.8,
		VADMinSpeechDurationSecs: 0.2,
	}
}

func waitEvent(t *testing.T, events <-chan recognizer.Event) recognizer.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed while waiting for event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return recognizer.Event{}
}

func TestConnect_EmitsSessionStartedAndDeclaresParams(t *testing.T) {
	stub := newRecognizerStub(t)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	s := NewSession(wsURL(srv))
	defer s.Disconnect()

	if err := s.Connect(context.Background(), "tok-123", testOptions()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.IsConnected() {
		t.Error("expected IsConnected after successful connect")
	}

	ev := waitEvent(t, s.Events())
	if ev.Type != recognizer.EventSessionStarted {
		t.Errorf("expected session_started, got %s", ev.Type)
	}

	params := <-stub.query
	want := map[string]string{
		"token":                        "tok-123",
		"language_code":                "en-US",
		"diarize":                      "true",
		"include_timestamps":           "true",
		"commit_strategy":              "vad",
		"vad_silence_threshold_secs":   "0.8",
		"vad_min_speech_duration_secs": "0.2",
	}
	for k, v := range want {
		if params[k] != v {
			t.Errorf("query param %s = %q, want %q", k, params[k], v)
		}
	}
}

func TestConnect_ConcurrentCallIsNoOp(t *testing.T) {
	stub := newRecognizerStub(t)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	s := NewSession(wsURL(srv))
	defer s.Disconnect()

	if err := s.Connect(context.Background(), "tok-1", testOptions()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect(context.Background(), "tok-2", testOptions()); err != nil {
		t.Fatalf("second Connect should be a no-op, got %v", err)
	}
	if got := stub.upgrades.Load(); got != 1 {
		t.Errorf("expected 1 upgrade, got %d", got)
	}
}

func TestConnect_Timeout(t *testing.T) {
	// A handler that never completes the websocket handshake.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	s := NewSession(wsURL(srv), WithConnectTimeout(100*time.Millisecond))

	err := s.Connect(context.Background(), "tok", testOptions())
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if recognizer.CodeOf(err) != recognizer.CodeConnectionTimeout {
		t.Errorf("expected connection_timeout, got %v", err)
	}
	if s.IsConnected() {
		t.Error("session must not report connected after timeout")
	}
}

func TestConnect_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSession(wsURL(srv))

	err := s.Connect(context.Background(), "tok", testOptions())
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if recognizer.CodeOf(err) != recognizer.CodeConnectionRejected {
		t.Errorf("expected connection_rejected, got %v", err)
	}
}

func TestSendAudioChunk_WireShape(t *testing.T) {
	stub := newRecognizerStub(t)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	s := NewSession(wsURL(srv))
	defer s.Disconnect()

	if err := s.Connect(context.Background(), "tok", testOptions()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	frame := []byte{0x01, 0x02, 0x03, 0x04}
	if err := s.SendAudioChunk(frame, 16000, true); err != nil {
		t.Fatalf("SendAudioChunk: %v", err)
	}

	var got struct {
		InputAudioChunk struct {
			AudioBase64 string `json:"audio_base_64"`
			SampleRate  int    `json:"sample_rate"`
			Commit      bool   `json:"commit"`
		} `json:"input_audio_chunk"`
	}
	select {
	case data := <-stub.inbound:
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal outbound message: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio chunk")
	}

	if got.InputAudioChunk.AudioBase64 != base64.StdEncoding.EncodeToString(frame) {
		t.Errorf("unexpected audio payload: %s", got.InputAudioChunk.AudioBase64)
	}
	if got.InputAudioChunk.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", got.InputAudioChunk.SampleRate)
	}
	if !got.InputAudioChunk.Commit {
		t.Error("expected commit flag set")
	}
}

func TestSendAudioChunk_AfterDisconnectIsNoOp(t *testing.T) {
	stub := newRecognizerStub(t)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	s := NewSession(wsURL(srv))
	if err := s.Connect(context.Background(), "tok", testOptions()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	s.Disconnect()
	s.Disconnect() // idempotent

	if err := s.SendAudioChunk([]byte{0x01}, 16000, false); err != nil {
		t.Fatalf("send after disconnect must be a no-op, got %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit after disconnect must be a no-op, got %v", err)
	}

	select {
	case data := <-stub.inbound:
		t.Fatalf("no message should reach the backend after disconnect, got %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInboundDispatch(t *testing.T) {
	stub := newRecognizerStub(t)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	s := NewSession(wsURL(srv))
	defer s.Disconnect()

	if err := s.Connect(context.Background(), "tok", testOptions()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	events := s.Events()
	if ev := waitEvent(t, events); ev.Type != recognizer.EventSessionStarted {
		t.Fatalf("expected session_started first, got %s", ev.Type)
	}

	stub.outbound <- `{"type":"partial_transcript","text":"hel"}`
	stub.outbound <- `not json at all` // malformed: logged, dropped
	stub.outbound <- `{"type":"future_thing","x":1}` // unknown tag: dropped
	stub.outbound <- `{"type":"committed_transcript","text":"hello","confidence":0.93}`
	stub.outbound <- `{"type":"committed_transcript_with_timestamps","text":"hello world",` +
		`"words":[{"text":"hello","start_secs":0.1,"end_secs":0.4},` +
		`{"text":"world","start_secs":0.5,"end_secs":0.9,"speaker_id":"A"}]}`
	stub.outbound <- `{"type":"error","code":"quota_exceeded","message":"monthly quota reached"}`

	ev := waitEvent(t, events)
	if ev.Type != recognizer.EventPartialTranscript || ev.Text != "hel" {
		t.Errorf("unexpected partial event: %+v", ev)
	}

	ev = waitEvent(t, events)
	if ev.Type != recognizer.EventCommittedTranscript || ev.Text != "hello" || ev.Confidence != 0.93 {
		t.Errorf("unexpected committed event: %+v", ev)
	}

	ev = waitEvent(t, events)
	if ev.Type != recognizer.EventCommittedWithTimestamps || len(ev.Words) != 2 {
		t.Fatalf("unexpected timestamps event: %+v", ev)
	}
	if ev.Words[1].SpeakerID != "A" {
		t.Errorf("expected speaker A on second word, got %q", ev.Words[1].SpeakerID)
	}

	ev = waitEvent(t, events)
	if ev.Type != recognizer.EventError || ev.Err == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Err.Code != recognizer.CodeQuotaExceeded || !ev.Err.Recoverable() {
		t.Errorf("expected recoverable quota error, got %+v", ev.Err)
	}
}

func TestRemoteClose_ClosesEventChannel(t *testing.T) {
	stub := newRecognizerStub(t)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	s := NewSession(wsURL(srv))
	if err := s.Connect(context.Background(), "tok", testOptions()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	events := s.Events()
	waitEvent(t, events) // session_started

	close(stub.outbound) // stub sends a normal close frame

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				if s.IsConnected() {
					t.Error("session must not report connected after remote close")
				}
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed after remote close")
		}
	}
}
