package encode

import (
	"fmt"

	"github.com/vkoval/capture-audio-service/internal/audio"
)

// Format describes the PCM layout of the raw bytes handed to an encoder.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Encoder converts a raw PCM segment into its delivery payload. Encoding is
// synchronous and may fail; the caller degrades a failed tick to a
// substitute segment rather than skipping it.
type Encoder interface {
	Encode(raw []byte, format Format) ([]byte, error)

	// FormatTag returns the event format tag for payloads this encoder
	// produces, e.g. "audio_wav".
	FormatTag() string
}

// WAVEncoder wraps PCM segments in a WAV container.
type WAVEncoder struct{}

// NewWAVEncoder creates a WAV encoder.
func NewWAVEncoder() *WAVEncoder {
	return &WAVEncoder{}
}

// Encode wraps raw in a RIFF/WAVE header.
func (e *WAVEncoder) Encode(raw []byte, format Format) ([]byte, error) {
	payload, err := audio.EncodeWAV(raw, format.SampleRate, format.Channels, format.BitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("wav encode: %w", err)
	}
	return payload, nil
}

// FormatTag returns "audio_wav".
func (e *WAVEncoder) FormatTag() string {
	return "audio_wav"
}

// RawEncoder passes PCM segments through untouched.
type RawEncoder struct{}

// NewRawEncoder creates a passthrough encoder.
func NewRawEncoder() *RawEncoder {
	return &RawEncoder{}
}

// Encode returns raw unchanged.
func (e *RawEncoder) Encode(raw []byte, _ Format) ([]byte, error) {
	return raw, nil
}

// FormatTag returns "audio_pcm".
func (e *RawEncoder) FormatTag() string {
	return "audio_pcm"
}

// New returns the encoder registered under name.
func New(name string) (Encoder, error) {
	switch name {
	case "wav":
		return NewWAVEncoder(), nil
	case "raw":
		return NewRawEncoder(), nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
}
