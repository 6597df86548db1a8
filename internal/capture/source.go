// Package capture abstracts platform audio capture behind a single source
// interface producing fixed-size PCM frames at a declared sample rate.
// Platform selection happens at composition time; the engine only ever sees
// this interface.
package capture

// FrameFunc receives one PCM frame. Ownership of the buffer transfers to the
// callee; the source never reuses a delivered buffer.
type FrameFunc func(frame []byte, sampleRateHz int)

// Source produces a lazy, restartable sequence of PCM frames once started.
// Implementations must guarantee no FrameFunc invocation after Stop returns.
type Source interface {
	Start(onFrame FrameFunc) error
	Stop()
}
