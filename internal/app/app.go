// Package app wires configuration into the engine's runtime components: the
// token provider, the recognizer transport, the audio source, the session
// orchestrator, and the HTTP listeners.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-engine/internal/auth"
	"live-transcription-engine/internal/capture"
	"live-transcription-engine/internal/config"
	"live-transcription-engine/internal/events"
	"live-transcription-engine/internal/httpapi"
	"live-transcription-engine/internal/observability"
	"live-transcription-engine/internal/observability/logging"
	"live-transcription-engine/internal/recognizer"
	"live-transcription-engine/internal/recognizer/mock"
	"live-transcription-engine/internal/recognizer/ws"
	"live-transcription-engine/internal/session"
)

// Application holds process-wide state for the engine.
type Application struct {
	StartupTime  time.Time
	Cfg          *config.Config
	Orchestrator *session.Orchestrator
	Logger       zerolog.Logger

	publisher     *events.Publisher
	apiServer     *observability.Server
	metricsServer *observability.Server
}

// New constructs the application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})
	logger := logging.WithComponent("application")

	tokens, err := auth.FromConfig(cfg.Token.IssuerURL, cfg.Token.StaticToken, cfg.Token.RequestTimeout)
	if err != nil {
		return nil, err
	}

	var transport recognizer.Session
	if cfg.Recognizer.Mock {
		logger.Warn().Msg("using scripted recognizer backend")
		transport = mock.NewSession()
	} else {
		transport = ws.NewSession(cfg.Recognizer.Endpoint,
			ws.WithConnectTimeout(cfg.Recognizer.ConnectTimeout))
	}

	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicPartial:   cfg.Kafka.TopicPartial,
		TopicCommitted: cfg.Kafka.TopicCommitted,
		Principal:      cfg.Kafka.Principal,
	})

	orc := session.New(session.Config{
		Tokens:    tokens,
		Transport: transport,
		Source:    source,
		Publisher: publisher,
		Options: recognizer.ConnectionOptions{
			LanguageCode:             cfg.Recognizer.LanguageCode,
			Diarize:                  cfg.Recognizer.Diarize,
			VADSilenceThresholdSecs:  cfg.Recognizer.VADSilenceThresholdSecs,
			VADMinSpeechDurationSecs: cfg.Recognizer.VADMinSpeechDurationSecs,
		},
	})

	a := &Application{
		Cfg:           cfg,
		Orchestrator:  orc,
		Logger:        logger,
		publisher:     publisher,
		apiServer:     observability.NewServer("api", cfg.Service.HTTPAddr, httpapi.NewRouter(orc)),
		metricsServer: observability.NewServer("metrics", cfg.Observability.HTTPAddr, observability.MetricsHandler()),
	}

	logger.Info().Str("service", cfg.Service.Name).Msg("application created")
	return a, nil
}

// Start brings up both HTTP listeners.
func (a *Application) Start() {
	a.StartupTime = time.Now().UTC()
	a.apiServer.Start()
	a.metricsServer.Start()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("apiAddr", a.Cfg.Service.HTTPAddr).
		Str("metricsAddr", a.Cfg.Observability.HTTPAddr).
		Msg("engine started")
}

// Shutdown stops the session and drains the HTTP listeners.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("engine shutting down")

	a.Orchestrator.Stop()

	if err := a.apiServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("api server shutdown failed")
	}
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("metrics server shutdown failed")
	}
	if err := a.publisher.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("publisher close failed")
	}
}

// buildSource selects the configured audio source.
func buildSource(cfg *config.Config) (capture.Source, error) {
	switch cfg.Audio.Source {
	case "wav":
		return capture.NewWAVSource(cfg.Audio.WAVPath, cfg.Audio.FrameDuration), nil
	case "tone":
		return capture.NewToneSource(cfg.Recognizer.SampleRateHz, cfg.Audio.ToneFreqHz, cfg.Audio.FrameDuration), nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Audio.Source)
	}
}
