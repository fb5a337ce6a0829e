package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vkoval/capture-audio-service/internal/audio"
	"github.com/vkoval/capture-audio-service/internal/config"
)

// toneChunksPerInterval controls how often the tone source pushes: four
// chunks per capture interval keeps the queue fed well ahead of each tick.
const toneChunksPerInterval = 4

// ToneSource is the mock capture collaborator. It synthesizes a continuous
// sine tone and pushes it in fixed-cadence chunks, standing in for a real
// microphone when none is available.
type ToneSource struct {
	cfg    config.CaptureConfig
	freq   float64
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewToneSource creates a tone source producing freqHz sine audio matching
// the capture configuration's PCM parameters.
func NewToneSource(cfg config.CaptureConfig, freqHz float64, logger *slog.Logger) *ToneSource {
	if freqHz <= 0 {
		freqHz = audio.DefaultToneFrequency
	}

	return &ToneSource{
		cfg:    cfg,
		freq:   freqHz,
		logger: logger,
	}
}

// Start begins pushing synthesized chunks on a fixed cadence.
func (s *ToneSource) Start(ctx context.Context, onChunk func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("tone source already running")
	}

	pushInterval := s.cfg.CaptureInterval / toneChunksPerInterval
	if pushInterval <= 0 {
		pushInterval = s.cfg.CaptureInterval
	}
	chunkBytes := s.cfg.TargetBytesPerSegment / toneChunksPerInterval

	srcCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("Tone source started",
		slog.Float64("frequency_hz", s.freq),
		slog.Duration("push_interval", pushInterval),
		slog.Int("chunk_bytes", chunkBytes),
	)

	go s.pushLoop(srcCtx, pushInterval, chunkBytes, onChunk)

	return nil
}

func (s *ToneSource) pushLoop(ctx context.Context, interval time.Duration, chunkBytes int, onChunk func([]byte)) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			chunk := audio.GenerateTone(s.freq, chunkBytes,
				s.cfg.SampleRate, s.cfg.Channels, s.cfg.BitsPerSample)
			onChunk(chunk)
		}
	}
}

// Stop halts chunk production and waits for the push loop to exit.
func (s *ToneSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	<-s.done

	s.cancel = nil
	s.running = false

	return nil
}
