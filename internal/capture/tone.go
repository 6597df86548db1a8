package capture

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// ToneSource synthesizes a continuous sine tone as 16-bit mono PCM frames.
// It exists so the engine can be exercised end-to-end with no audio hardware
// and no recorded fixture.
type ToneSource struct {
	sampleRate int
	freqHz     float64
	frameDur   time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewToneSource creates a tone source at the given sample rate.
func NewToneSource(sampleRateHz int, freqHz float64, frameDur time.Duration) *ToneSource {
	if frameDur <= 0 {
		frameDur = 100 * time.Millisecond
	}
	if freqHz <= 0 {
		freqHz = 440
	}
	return &ToneSource{sampleRate: sampleRateHz, freqHz: freqHz, frameDur: frameDur}
}

// Start begins frame delivery on a real-time ticker.
func (s *ToneSource) Start(onFrame FrameFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	stop := make(chan struct{})
	s.stop = stop
	s.running = true
	s.wg.Add(1)

	samplesPerFrame := int(float64(s.sampleRate) * s.frameDur.Seconds())

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.frameDur)
		defer ticker.Stop()

		phase := 0.0
		step := 2 * math.Pi * s.freqHz / float64(s.sampleRate)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				frame := make([]byte, samplesPerFrame*2)
				for i := 0; i < samplesPerFrame; i++ {
					sample := int16(math.Sin(phase) * 0.3 * math.MaxInt16)
					binary.LittleEndian.PutUint16(frame[i*2:], uint16(sample))
					phase += step
				}
				onFrame(frame, s.sampleRate)
			}
		}
	}()

	return nil
}

// Stop halts delivery; no frame callback runs after it returns. Idempotent.
func (s *ToneSource) Stop() {
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
