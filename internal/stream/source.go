package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vkoval/capture-audio-service/internal/audio"
	"github.com/vkoval/capture-audio-service/internal/capture"
	"github.com/vkoval/capture-audio-service/internal/config"
	"github.com/vkoval/capture-audio-service/internal/encode"
	"github.com/vkoval/capture-audio-service/internal/metrics"
)

// WildcardMode is the capability mode that allows any Prepare selector.
const WildcardMode = "all"

// DataSource is the continuous-capture segmenter. It couples a push-driven
// producer (the capture source's chunk callback) with a pull-driven
// fixed-interval scheduler: chunks accumulate in a bounded queue, and once
// per tick a fixed-byte-length segment is extracted, encoded, and
// dispatched to the observer as a timestamped event.
//
// A single mutex serializes the producer's append+eviction path and the
// scheduler's extract+split+requeue+encode path. The encode call runs
// inside that critical section, so a slow encoder stalls appends; the
// bounded queue turns that stall into eviction of the oldest audio rather
// than unbounded growth.
type DataSource struct {
	name    string
	profile config.Profile
	modes   []string
	source  capture.Source
	encoder encode.Encoder
	logger  *slog.Logger

	metrics   *metrics.Metrics
	newTicker TickerFactory

	// mu is the pipeline critical section: lifecycle state, queue access
	// and the per-tick extract+encode all serialize through it.
	mu     sync.Mutex
	state  State
	cfg    config.CaptureConfig
	queue  *audio.ChunkQueue
	active capture.Source

	// Correlation identifiers recorded by Prepare.
	sessionID string
	traceID   string

	runCancel context.CancelFunc
	ticker    Ticker
	tickWG    sync.WaitGroup

	observerMu sync.RWMutex
	observer   func(Event)

	latestMu  sync.RWMutex
	latest    Event
	hasLatest bool
}

// New creates a data source named name with the given capability modes.
// The capture source and encoder are injected collaborators; the source may
// be nil, in which case Start goes straight to tone generation.
func New(name string, profile config.Profile, modes []string,
	source capture.Source, encoder encode.Encoder, logger *slog.Logger) *DataSource {

	return &DataSource{
		name:      name,
		profile:   profile,
		modes:     modes,
		source:    source,
		encoder:   encoder,
		logger:    logger,
		state:     StateUninitialized,
		newTicker: NewWallTicker,
	}
}

// SetMetrics attaches Prometheus metrics. Optional; a nil metrics set
// disables instrumentation.
func (s *DataSource) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetTickerFactory overrides the scheduler ticker construction. Tests use
// this to drive ticks deterministically. Must be called before Start.
func (s *DataSource) SetTickerFactory(f TickerFactory) {
	s.newTicker = f
}

// SetObserver registers the observer invoked for each dispatched event.
// The observer is called synchronously from the scheduler goroutine;
// observers needing asynchrony must decouple themselves.
func (s *DataSource) SetObserver(fn func(Event)) {
	s.observerMu.Lock()
	defer s.observerMu.Unlock()
	s.observer = fn
}

// Initialize validates the settings against the configured profile, derives
// the byte-rate constants, and creates the bounded queue. Configuration
// errors are fatal: the state does not advance and the error is returned.
// Initialize is permitted again after Stop; attempting it while running is
// a logged no-op.
func (s *DataSource) Initialize(settings config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning || s.state == StatePrepared {
		s.logger.Warn("Initialize ignored",
			slog.String("source", s.name),
			slog.String("state", s.state.String()),
		)
		return nil
	}

	cfg, err := config.NewCaptureConfig(s.profile, settings)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.queue = audio.NewChunkQueue(cfg.MaxBufferedBytes)
	s.state = StateInitialized

	s.logger.Info("Data source initialized",
		slog.String("source", s.name),
		slog.String("profile", string(s.profile)),
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.Channels),
		slog.Int("bits_per_sample", cfg.BitsPerSample),
		slog.Duration("capture_interval", cfg.CaptureInterval),
		slog.Int("bytes_per_second", cfg.BytesPerSecond),
		slog.Int("target_bytes_per_segment", cfg.TargetBytesPerSegment),
		slog.Int("max_buffered_bytes", cfg.MaxBufferedBytes),
	)

	return nil
}

// Prepare selects the data source for the given capability mode. It returns
// false, without error and without mutating state, when mode is neither in
// the configured mode set nor covered by the wildcard. On success it
// records fresh correlation identifiers; repeating Prepare overwrites them.
func (s *DataSource) Prepare(mode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInitialized && s.state != StatePrepared {
		s.logger.Warn("Prepare ignored",
			slog.String("source", s.name),
			slog.String("state", s.state.String()),
		)
		return false
	}

	if !s.modeSelected(mode) {
		s.logger.Debug("Mode not selected for capture",
			slog.String("source", s.name),
			slog.String("mode", mode),
		)
		return false
	}

	s.sessionID = uuid.NewString()
	s.traceID = uuid.NewString()
	s.state = StatePrepared

	s.logger.Info("Data source prepared",
		slog.String("source", s.name),
		slog.String("mode", mode),
		slog.String("session_id", s.sessionID),
		slog.String("trace_id", s.traceID),
	)

	return true
}

func (s *DataSource) modeSelected(mode string) bool {
	for _, m := range s.modes {
		if m == mode || m == WildcardMode {
			return true
		}
	}
	return false
}

// Start begins capture and the fixed-interval scheduler. If the data source
// is not currently prepared, Start returns immediately with no effect. A
// capture source that cannot start is not fatal: the tone source takes its
// place so the segment cadence is preserved.
func (s *DataSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePrepared {
		s.logger.Debug("Start ignored",
			slog.String("source", s.name),
			slog.String("state", s.state.String()),
		)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	s.active = s.startSource(runCtx)

	s.ticker = s.newTicker(s.cfg.CaptureInterval)
	s.tickWG.Add(1)
	go s.run(runCtx, s.ticker)

	// state flips last: the source goroutine's first append blocks on mu
	// until ingestion is officially deliverable.
	s.state = StateRunning

	s.logger.Info("Data source started",
		slog.String("source", s.name),
		slog.String("session_id", s.sessionID),
		slog.Duration("capture_interval", s.cfg.CaptureInterval),
	)
}

// startSource starts the configured capture source, degrading to the tone
// generator when real capture is unavailable. Called with mu held.
func (s *DataSource) startSource(ctx context.Context) capture.Source {
	if s.source != nil {
		err := s.source.Start(ctx, s.append)
		if err == nil {
			return s.source
		}
		s.logger.Warn("Capture source unavailable, falling back to tone generation",
			slog.String("source", s.name),
			slog.String("error", err.Error()),
		)
	}

	tone := capture.NewToneSource(s.cfg, audio.DefaultToneFrequency, s.logger)
	if err := tone.Start(ctx, s.append); err != nil {
		// Synthesis cannot realistically fail; ticks will starve and
		// produce empty segments until Stop.
		s.logger.Error("Tone source failed to start",
			slog.String("source", s.name),
			slog.String("error", err.Error()),
		)
		return nil
	}

	return tone
}

// append is the producer path: the capture source pushes chunks here from
// its own goroutine at arbitrary times with arbitrary sizes.
func (s *DataSource) append(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}

	evicted := s.queue.Append(chunk)
	if evicted > 0 {
		s.logger.Warn("Buffer cap exceeded, dropped oldest audio",
			slog.String("source", s.name),
			slog.Int("evicted_bytes", evicted),
			slog.Int("buffered_bytes", s.queue.BufferedBytes()),
		)
	}

	if s.metrics != nil {
		s.metrics.ChunksAppended.Inc()
		s.metrics.BytesAppended.Add(float64(len(chunk)))
		if evicted > 0 {
			s.metrics.BytesEvicted.Add(float64(evicted))
		}
		s.metrics.BufferedBytes.Set(float64(s.queue.BufferedBytes()))
	}
}

// run is the scheduler loop.
func (s *DataSource) run(ctx context.Context, ticker Ticker) {
	defer s.tickWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick()
		}
	}
}

// tick extracts one segment, encodes it, and dispatches the event. Extract
// and encode happen inside the pipeline critical section; observer dispatch
// happens outside it.
func (s *DataSource) tick() {
	s.mu.Lock()

	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}

	target := s.cfg.TargetBytesPerSegment
	segment := s.queue.ExtractSegment(target)

	if s.metrics != nil {
		s.metrics.TicksTotal.Inc()
		s.metrics.SegmentsExtracted.Inc()
		s.metrics.SegmentBytes.Observe(float64(len(segment)))
		s.metrics.BufferedBytes.Set(float64(s.queue.BufferedBytes()))
		if len(segment) < target {
			s.metrics.StarvationSegments.Inc()
		}
	}

	if len(segment) == 0 {
		s.logger.Debug("Tick found empty queue, skipping dispatch",
			slog.String("source", s.name),
		)
		s.mu.Unlock()
		return
	}

	if len(segment) < target {
		s.logger.Debug("Starvation segment extracted",
			slog.String("source", s.name),
			slog.Int("segment_bytes", len(segment)),
			slog.Int("target_bytes", target),
		)
	}

	payload, format := s.encodeLocked(segment)
	s.mu.Unlock()

	s.emit(payload, format)
}

// encodeLocked encodes the segment, degrading an encode failure to a tone
// substitute of the same length so the cadence is never silently skipped.
// Called with mu held.
func (s *DataSource) encodeLocked(segment []byte) ([]byte, string) {
	format := encode.Format{
		SampleRate:    s.cfg.SampleRate,
		Channels:      s.cfg.Channels,
		BitsPerSample: s.cfg.BitsPerSample,
	}

	payload, err := s.encoder.Encode(segment, format)
	if err == nil {
		return payload, s.encoder.FormatTag()
	}

	s.logger.Error("Segment encode failed, substituting generated tone",
		slog.String("source", s.name),
		slog.Int("segment_bytes", len(segment)),
		slog.String("error", err.Error()),
	)
	if s.metrics != nil {
		s.metrics.EncodeFailures.Inc()
		s.metrics.SubstituteSegments.Inc()
	}

	substitute := audio.GenerateTone(audio.DefaultToneFrequency, len(segment),
		s.cfg.SampleRate, s.cfg.Channels, s.cfg.BitsPerSample)

	return substitute, "audio_pcm"
}

// emit records the event as the latest data and invokes the observer if the
// source is still running. A not-running source records the event and logs
// a no-op instead.
func (s *DataSource) emit(payload []byte, format string) {
	event := Event{
		Kind:      KindAudio,
		Name:      s.name,
		Format:    format,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	s.latestMu.Lock()
	s.latest = event
	s.hasLatest = true
	s.latestMu.Unlock()

	s.mu.Lock()
	running := s.state == StateRunning
	s.mu.Unlock()

	s.observerMu.RLock()
	observer := s.observer
	s.observerMu.RUnlock()

	if !running || observer == nil {
		s.logger.Debug("Event recorded without dispatch",
			slog.String("source", s.name),
			slog.String("format", format),
			slog.Bool("running", running),
			slog.Bool("observer_set", observer != nil),
		)
		if s.metrics != nil {
			s.metrics.EventsSuppressed.Inc()
		}
		return
	}

	observer(event)

	if s.metrics != nil {
		s.metrics.EventsDispatched.Inc()
	}
}

// Stop synchronously halts the scheduler, stops the capture source, and
// clears the queue. No tick fires after Stop returns; a tick already in
// flight when Stop is called finishes first. Stop when not running is a
// no-op and never fails.
func (s *DataSource) Stop() {
	s.mu.Lock()

	if s.state != StateRunning {
		s.logger.Debug("Stop ignored",
			slog.String("source", s.name),
			slog.String("state", s.state.String()),
		)
		s.mu.Unlock()
		return
	}

	ticker := s.ticker
	cancel := s.runCancel
	active := s.active
	s.state = StateStopped
	s.ticker = nil
	s.runCancel = nil
	s.active = nil
	s.mu.Unlock()

	ticker.Stop()
	cancel()
	s.tickWG.Wait()

	if active != nil {
		if err := active.Stop(); err != nil {
			s.logger.Warn("Error stopping capture source",
				slog.String("source", s.name),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	discarded := s.queue.BufferedBytes()
	s.queue.Reset()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.BufferedBytes.Set(0)
	}

	s.logger.Info("Data source stopped",
		slog.String("source", s.name),
		slog.String("session_id", s.sessionID),
		slog.Int("discarded_bytes", discarded),
	)
}

// State returns the current lifecycle state.
func (s *DataSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the correlation identifier recorded by the most recent
// successful Prepare.
func (s *DataSource) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Config returns the capture configuration derived at Initialize.
func (s *DataSource) Config() config.CaptureConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// QueueStats returns a snapshot of the queue statistics, or the zero value
// before Initialize.
func (s *DataSource) QueueStats() audio.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue == nil {
		return audio.QueueStats{}
	}
	return s.queue.Stats()
}

// LatestData returns the most recently constructed event, whether or not it
// was dispatched. The second return is false before the first event.
func (s *DataSource) LatestData() (Event, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest, s.hasLatest
}
