package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"live-transcription-engine/internal/observability/logging"
)

// WAV header is 44 bytes for standard PCM files.
const wavHeaderSize = 44

// WAVSource replays a 16-bit mono PCM WAV file in real time, delivering
// fixed-duration frames on a ticker to simulate live capture.
type WAVSource struct {
	path     string
	frameDur time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewWAVSource creates a source for the given file. frameDur controls the
// frame window; 100ms is the conventional choice for streaming recognizers.
func NewWAVSource(path string, frameDur time.Duration) *WAVSource {
	if frameDur <= 0 {
		frameDur = 100 * time.Millisecond
	}
	return &WAVSource{path: path, frameDur: frameDur}
}

// Start validates the file header and begins frame delivery. Restartable
// after Stop; the file replays from the beginning.
func (s *WAVSource) Start(onFrame FrameFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("wav source already started")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("open wav file: %w", err)
	}
	sampleRate, pcm, err := parseWAV(data)
	if err != nil {
		return err
	}

	// 16-bit mono: bytes per frame window.
	frameBytes := int(float64(sampleRate) * s.frameDur.Seconds() * 2)
	if frameBytes <= 0 {
		return fmt.Errorf("frame duration too small for sample rate %d", sampleRate)
	}

	stop := make(chan struct{})
	s.stop = stop
	s.running = true
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		log := logging.WithComponent("capture.wav")
		ticker := time.NewTicker(s.frameDur)
		defer ticker.Stop()

		offset := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if offset >= len(pcm) {
					log.Info().Str("path", s.path).Msg("wav source exhausted")
					return
				}
				end := offset + frameBytes
				if end > len(pcm) {
					end = len(pcm)
				}
				frame := make([]byte, end-offset)
				copy(frame, pcm[offset:end])
				offset = end
				onFrame(frame, sampleRate)
			}
		}
	}()

	return nil
}

// Stop halts delivery. No frame callback runs after Stop returns. Idempotent.
func (s *WAVSource) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
}

// parseWAV validates a standard PCM WAV header and returns the sample rate
// and raw sample bytes.
func parseWAV(data []byte) (int, []byte, error) {
	if len(data) < wavHeaderSize {
		return 0, nil, fmt.Errorf("wav file too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	numChannels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])

	if audioFormat != 1 {
		return 0, nil, fmt.Errorf("only PCM wav supported, got format %d", audioFormat)
	}
	if numChannels != 1 {
		return 0, nil, fmt.Errorf("only mono wav supported, got %d channels", numChannels)
	}
	if bitsPerSample != 16 {
		return 0, nil, fmt.Errorf("only 16-bit wav supported, got %d bits", bitsPerSample)
	}

	return int(sampleRate), data[wavHeaderSize:], nil
}
