// Package httpapi exposes the engine's control surface over HTTP: session
// lifecycle, live state inspection, and the assembled transcript.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"live-transcription-engine/internal/recognizer"
	"live-transcription-engine/internal/session"
	"live-transcription-engine/internal/transcript"
)

// NewRouter constructs the HTTP router for the engine.
func NewRouter(orc *session.Orchestrator) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", getSession(orc))
		r.Post("/session/start", startSession(orc))
		r.Post("/session/stop", stopSession(orc))
		r.Post("/session/commit", commitSession(orc))
		r.Get("/transcript", getTranscript(orc))
	})

	return r
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type startRequest struct {
	SessionID string `json:"sessionId"`
}

type transcriptResponse struct {
	FinalText string             `json:"finalText"`
	Blocks    []transcript.Block `json:"blocks"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func getSession(orc *session.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, orc.Snapshot())
	}
}

func startSession(orc *session.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if r.Body != nil {
			// An empty or absent body means a generated session id.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.SessionID == "" {
			req.SessionID = fmt.Sprintf("session-%d", time.Now().UnixMilli())
		}

		if err := orc.Start(r.Context(), req.SessionID); err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{
				Error: err.Error(),
				Code:  string(recognizer.CodeOf(err)),
			})
			return
		}
		writeJSON(w, http.StatusOK, orc.Snapshot())
	}
}

func stopSession(orc *session.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		orc.Stop()
		writeJSON(w, http.StatusOK, orc.Snapshot())
	}
}

func commitSession(orc *session.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := orc.Commit(); err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{
				Error: err.Error(),
				Code:  string(recognizer.CodeOf(err)),
			})
			return
		}
		writeJSON(w, http.StatusOK, orc.Snapshot())
	}
}

func getTranscript(orc *session.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		blocks := orc.Blocks()
		if blocks == nil {
			blocks = []transcript.Block{}
		}
		writeJSON(w, http.StatusOK, transcriptResponse{
			FinalText: orc.FinalTranscript(),
			Blocks:    blocks,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
