package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Fixed sample rates for the live channel. The client captures at 16 kHz and
// the agent replies at 24 kHz; neither side resamples.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000

	CaptureChannels  = 1
	PlaybackChannels = 1

	BitDepth       = 16
	BytesPerSample = BitDepth / 8

	// CaptureChunkSamples is the capture window size per encoder call.
	CaptureChunkSamples = 2048
)

var (
	// ErrEmptyChunk indicates an encode call with no samples.
	ErrEmptyChunk = errors.New("audio: empty capture chunk")
	// ErrMalformedFrame indicates an inbound frame that cannot be decoded.
	// Callers skip the frame and keep the session alive.
	ErrMalformedFrame = errors.New("audio: malformed inbound frame")
)

// EncodeCapture converts one window of floating-point samples in [-1, 1]
// into a base64-wrapped little-endian PCM16 payload ready for the wire.
// Out-of-range samples are clamped rather than wrapped.
func EncodeCapture(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrEmptyChunk
	}
	pcm := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(pcm[i*BytesPerSample:], uint16(v))
	}
	return base64.StdEncoding.EncodeToString(pcm), nil
}

// Frame is one decoded inbound sample buffer at playback rate, owned by the
// scheduler until played.
type Frame struct {
	Data       []byte // little-endian PCM16
	SampleRate int
	Channels   int
}

// Duration reports the playback length of the frame.
func (f Frame) Duration() time.Duration {
	bytesPerSecond := f.SampleRate * f.Channels * BytesPerSample
	if bytesPerSecond <= 0 || len(f.Data) == 0 {
		return 0
	}
	return time.Duration(float64(len(f.Data)) / float64(bytesPerSecond) * float64(time.Second))
}

// Samples converts the frame's raw bytes to linear float32 samples.
func (f Frame) Samples() []float32 {
	out := make([]float32, len(f.Data)/BytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(f.Data[i*BytesPerSample:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// DecodePlayback converts a base64 audio payload from the agent into a Frame
// at the fixed playback rate. Truncated or unaligned payloads fail with
// ErrMalformedFrame.
func DecodePlayback(data string) (Frame, error) {
	if data == "" {
		return Frame{}, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(raw) == 0 || len(raw)%BytesPerSample != 0 {
		return Frame{}, fmt.Errorf("%w: %d bytes not aligned to %d-byte samples", ErrMalformedFrame, len(raw), BytesPerSample)
	}
	return Frame{Data: raw, SampleRate: PlaybackRate, Channels: PlaybackChannels}, nil
}

// DecodeCapture is the inverse of EncodeCapture, used by the client leg to
// validate and unwrap microphone frames before they are forwarded.
func DecodeCapture(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(raw) == 0 || len(raw)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes not aligned to %d-byte samples", ErrMalformedFrame, len(raw), BytesPerSample)
	}
	return raw, nil
}
