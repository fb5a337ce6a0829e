package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Setting keys understood by the capture core. All values are carried as
// strings and parsed at Initialize time.
const (
	KeySampleRate         = "SampleRate"
	KeyChannels           = "Channels"
	KeyBitsPerSample      = "BitsPerSample"
	KeyCaptureIntervalMs  = "CaptureIntervalMs"
	KeyMaxBufferedSeconds = "MaxBufferedSeconds"
)

var (
	// ErrSettingMissing indicates a required setting was absent and the
	// active profile supplies no default for it.
	ErrSettingMissing = errors.New("required setting missing")

	// ErrSettingInvalid indicates a setting was present but failed to parse
	// as its expected type.
	ErrSettingInvalid = errors.New("setting value invalid")
)

// Settings is the string-keyed configuration handed to DataSource.Initialize.
// Keys not present fall back to the active profile's defaults.
type Settings map[string]string

// Profile selects the default set applied to absent settings.
type Profile string

const (
	// ProfileVoice defaults to 16 kHz mono, the rate speech pipelines expect.
	ProfileVoice Profile = "voice"
	// ProfileStudio defaults to 44.1 kHz mono.
	ProfileStudio Profile = "studio"
	// ProfileCustom supplies no defaults; every setting must be present.
	ProfileCustom Profile = "custom"
)

// defaults returns the profile's default values, or nil for ProfileCustom.
func (p Profile) defaults() map[string]int {
	base := map[string]int{
		KeyChannels:           1,
		KeyBitsPerSample:      16,
		KeyCaptureIntervalMs:  2000,
		KeyMaxBufferedSeconds: 10,
	}

	switch p {
	case ProfileVoice:
		base[KeySampleRate] = 16000
		return base
	case ProfileStudio:
		base[KeySampleRate] = 44100
		return base
	default:
		return nil
	}
}

// Valid reports whether the profile is one of the known profiles.
func (p Profile) Valid() bool {
	switch p {
	case ProfileVoice, ProfileStudio, ProfileCustom:
		return true
	}
	return false
}

// CaptureConfig is the validated, immutable capture configuration produced
// once at Initialize. The derived byte-rate constants drive segment sizing
// and the queue capacity bound.
type CaptureConfig struct {
	SampleRate         int
	Channels           int
	BitsPerSample      int
	CaptureInterval    time.Duration
	MaxBufferedSeconds int

	// Derived constants.
	BytesPerSecond        int
	TargetBytesPerSegment int
	MaxBufferedBytes      int
}

// NewCaptureConfig resolves settings against the profile's defaults,
// validates them, and derives the byte-rate constants.
func NewCaptureConfig(profile Profile, settings Settings) (CaptureConfig, error) {
	if !profile.Valid() {
		return CaptureConfig{}, fmt.Errorf("unknown profile %q", profile)
	}

	defaults := profile.defaults()

	sampleRate, err := resolveInt(settings, KeySampleRate, defaults)
	if err != nil {
		return CaptureConfig{}, err
	}

	channels, err := resolveInt(settings, KeyChannels, defaults)
	if err != nil {
		return CaptureConfig{}, err
	}

	bits, err := resolveInt(settings, KeyBitsPerSample, defaults)
	if err != nil {
		return CaptureConfig{}, err
	}

	intervalMs, err := resolveInt(settings, KeyCaptureIntervalMs, defaults)
	if err != nil {
		return CaptureConfig{}, err
	}

	maxBufferedSeconds, err := resolveInt(settings, KeyMaxBufferedSeconds, defaults)
	if err != nil {
		return CaptureConfig{}, err
	}

	cfg := CaptureConfig{
		SampleRate:         sampleRate,
		Channels:           channels,
		BitsPerSample:      bits,
		CaptureInterval:    time.Duration(intervalMs) * time.Millisecond,
		MaxBufferedSeconds: maxBufferedSeconds,
	}

	if err := cfg.validate(); err != nil {
		return CaptureConfig{}, err
	}

	cfg.BytesPerSecond = sampleRate * channels * bits / 8
	cfg.TargetBytesPerSegment = cfg.BytesPerSecond * intervalMs / 1000
	cfg.MaxBufferedBytes = cfg.BytesPerSecond * maxBufferedSeconds

	return cfg, nil
}

// resolveInt parses the setting if present, falls back to the profile
// default otherwise, and fails with ErrSettingMissing when neither exists.
func resolveInt(settings Settings, key string, defaults map[string]int) (int, error) {
	if raw, ok := settings[key]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q (expected integer)", ErrSettingInvalid, key, raw)
		}
		return n, nil
	}

	if def, ok := defaults[key]; ok {
		return def, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrSettingMissing, key)
}

func (c CaptureConfig) validate() error {
	if c.SampleRate < 1 {
		return fmt.Errorf("%w: %s=%d (must be positive)", ErrSettingInvalid, KeySampleRate, c.SampleRate)
	}

	if c.Channels < 1 || c.Channels > 8 {
		return fmt.Errorf("%w: %s=%d (must be between 1 and 8)", ErrSettingInvalid, KeyChannels, c.Channels)
	}

	if c.BitsPerSample < 8 || c.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: %s=%d (must be a positive multiple of 8)", ErrSettingInvalid, KeyBitsPerSample, c.BitsPerSample)
	}

	if c.CaptureInterval < 10*time.Millisecond {
		return fmt.Errorf("%w: %s=%d (must be at least 10 ms)", ErrSettingInvalid, KeyCaptureIntervalMs, int(c.CaptureInterval/time.Millisecond))
	}

	if c.MaxBufferedSeconds < 1 {
		return fmt.Errorf("%w: %s=%d (must be at least 1 second)", ErrSettingInvalid, KeyMaxBufferedSeconds, c.MaxBufferedSeconds)
	}

	return nil
}

// BytesPerSample returns the per-frame byte width (all channels).
func (c CaptureConfig) BytesPerSample() int {
	return c.Channels * c.BitsPerSample / 8
}

// SegmentDuration returns the wall-clock duration one full segment covers.
func (c CaptureConfig) SegmentDuration() time.Duration {
	return c.CaptureInterval
}
