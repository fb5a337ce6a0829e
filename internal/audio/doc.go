// Package audio implements the bounded chunk queue at the heart of the
// capture pipeline, plus PCM helpers: WAV container encoding and sine-tone
// synthesis for substitute segments.
package audio
