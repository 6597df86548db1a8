// Package config loads engine configuration from the environment, with an
// optional YAML file overlay for deployments that prefer files over env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Recognizer    RecognizerConfig    `yaml:"recognizer"`
	Token         TokenConfig         `yaml:"token"`
	Audio         AudioConfig         `yaml:"audio"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig identifies the engine instance and its API listener.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

// RecognizerConfig holds the connection options for the remote recognizer.
// These map one-to-one onto the session URI parameters.
type RecognizerConfig struct {
	Endpoint                 string        `yaml:"endpoint"`
	LanguageCode             string        `yaml:"language_code"`
	Diarize                  bool          `yaml:"diarize"`
	SampleRateHz             int           `yaml:"sample_rate_hz"`
	VADSilenceThresholdSecs  float64       `yaml:"vad_silence_threshold_secs"`
	VADMinSpeechDurationSecs float64       `yaml:"vad_min_speech_duration_secs"`
	ConnectTimeout           time.Duration `yaml:"connect_timeout"`
	Mock                     bool          `yaml:"mock"`
}

// AudioConfig selects the audio source feeding the session.
type AudioConfig struct {
	Source        string        `yaml:"source"` // "tone" or "wav"
	WAVPath       string        `yaml:"wav_path"`
	FrameDuration time.Duration `yaml:"frame_duration"`
	ToneFreqHz    float64       `yaml:"tone_freq_hz"`
}

// TokenConfig configures session credential acquisition.
// When IssuerURL is empty the static token is used directly.
type TokenConfig struct {
	IssuerURL      string        `yaml:"issuer_url"`
	StaticToken    string        `yaml:"static_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// KafkaConfig configures downstream transcript event publishing.
type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	TopicPartial   string   `yaml:"topic_partial"`
	TopicCommitted string   `yaml:"topic_committed"`
	Principal      string   `yaml:"principal"`
}

// ObservabilityConfig configures logging and the metrics/state HTTP server.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	HTTPAddr  string `yaml:"http_addr"`
}

// Load builds a Config from environment variables with defaults.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     envOrDefault("SERVICE_NAME", "live-transcription-engine"),
			HTTPAddr: envOrDefault("SERVICE_HTTP_ADDR", ":8080"),
		},
		Recognizer: RecognizerConfig{
			Endpoint:                 envOrDefault("RECOGNIZER_ENDPOINT", "wss://localhost:8443/v1/listen"),
			LanguageCode:             envOrDefault("RECOGNIZER_LANGUAGE_CODE", "en-US"),
			Diarize:                  envBool("RECOGNIZER_DIARIZE", true),
			SampleRateHz:             envInt("RECOGNIZER_SAMPLE_RATE_HZ", 16000),
			VADSilenceThresholdSecs:  envFloat("RECOGNIZER_VAD_SILENCE_THRESHOLD_SECS", 0.8),
			VADMinSpeechDurationSecs: envFloat("RECOGNIZER_VAD_MIN_SPEECH_DURATION_SECS", 0.2),
			ConnectTimeout:           envDuration("RECOGNIZER_CONNECT_TIMEOUT", 10*time.Second),
			Mock:                     envBool("RECOGNIZER_MOCK", false),
		},
		Audio: AudioConfig{
			Source:        envOrDefault("AUDIO_SOURCE", "tone"),
			WAVPath:       envOrDefault("AUDIO_WAV_PATH", ""),
			FrameDuration: envDuration("AUDIO_FRAME_DURATION", 100*time.Millisecond),
			ToneFreqHz:    envFloat("AUDIO_TONE_FREQ_HZ", 440),
		},
		Token: TokenConfig{
			IssuerURL:      envOrDefault("TOKEN_ISSUER_URL", ""),
			StaticToken:    envOrDefault("TOKEN_STATIC", ""),
			RequestTimeout: envDuration("TOKEN_REQUEST_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:        envBool("KAFKA_ENABLED", false),
			Brokers:        envList("KAFKA_BROKERS", nil),
			TopicPartial:   envOrDefault("KAFKA_TOPIC_PARTIAL", "transcript.partial"),
			TopicCommitted: envOrDefault("KAFKA_TOPIC_COMMITTED", "transcript.committed"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", "svc-transcription-engine"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
			HTTPAddr:  envOrDefault("OBSERVABILITY_HTTP_ADDR", ":9090"),
		},
	}
}

// LoadFile loads env-based defaults and overlays them with a YAML file.
// Fields absent from the file keep their env/default values.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Recognizer.Endpoint == "" {
		return fmt.Errorf("recognizer endpoint must not be empty")
	}
	if c.Recognizer.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Recognizer.SampleRateHz)
	}
	if c.Recognizer.VADSilenceThresholdSecs < 0 || c.Recognizer.VADMinSpeechDurationSecs < 0 {
		return fmt.Errorf("VAD thresholds must not be negative")
	}
	switch c.Audio.Source {
	case "tone":
	case "wav":
		if c.Audio.WAVPath == "" {
			return fmt.Errorf("audio source is wav but no wav path configured")
		}
	default:
		return fmt.Errorf("unknown audio source %q", c.Audio.Source)
	}
	if c.Audio.FrameDuration <= 0 {
		return fmt.Errorf("audio frame duration must be positive, got %v", c.Audio.FrameDuration)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
