package audio

import (
	"math"
)

// DefaultToneFrequency is the sine frequency used for substitute audio.
const DefaultToneFrequency = 440.0

// GenerateTone synthesizes numBytes of little-endian PCM carrying a sine
// tone at freqHz. It is the substitute generator used when real capture is
// unavailable or an encode fails: the result always has exactly numBytes so
// a substitute segment is indistinguishable in size from a real one.
//
// Only 16-bit synthesis is implemented; other bit depths produce silence of
// the requested length. Trailing bytes past the last whole frame are zero.
func GenerateTone(freqHz float64, numBytes, sampleRate, channels, bitsPerSample int) []byte {
	out := make([]byte, numBytes)
	if numBytes == 0 || sampleRate <= 0 || channels < 1 || bitsPerSample != 16 {
		return out
	}

	const amplitude = 0.3 * math.MaxInt16

	frameSize := channels * 2
	frames := numBytes / frameSize
	step := 2 * math.Pi * freqHz / float64(sampleRate)

	for i := 0; i < frames; i++ {
		sample := int16(amplitude * math.Sin(step*float64(i)))
		for ch := 0; ch < channels; ch++ {
			offset := i*frameSize + ch*2
			out[offset] = byte(sample)
			out[offset+1] = byte(sample >> 8)
		}
	}

	return out
}
