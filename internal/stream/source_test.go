package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vkoval/capture-audio-service/internal/capture"
	"github.com/vkoval/capture-audio-service/internal/config"
	"github.com/vkoval/capture-audio-service/internal/encode"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// manualTicker lets tests fire scheduler ticks deterministically.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time, 8)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}
func (m *manualTicker) Tick()               { m.ch <- time.Now() }

// fakeSource records the push callback so tests can act as the producer.
type fakeSource struct {
	mu        sync.Mutex
	onChunk   func([]byte)
	started   bool
	stopped   bool
	failStart bool
}

func (f *fakeSource) Start(_ context.Context, onChunk func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStart {
		return capture.ErrUnavailable
	}
	f.onChunk = onChunk
	f.started = true
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) push(data []byte) {
	f.mu.Lock()
	onChunk := f.onChunk
	f.mu.Unlock()
	onChunk(data)
}

// failEncoder always fails, forcing the tone substitution path.
type failEncoder struct{}

func (failEncoder) Encode(_ []byte, _ encode.Format) ([]byte, error) {
	return nil, errors.New("codec rejected segment")
}

func (failEncoder) FormatTag() string { return "audio_mp3" }

func voiceSettings() config.Settings {
	return config.Settings{
		config.KeyCaptureIntervalMs: "2000",
	}
}

// newTestSource builds an initialized source with a manual ticker and an
// observer channel.
func newTestSource(t *testing.T, enc encode.Encoder) (*DataSource, *fakeSource, *manualTicker, chan Event) {
	t.Helper()

	src := &fakeSource{}
	s := New("mic", config.ProfileVoice, []string{"all"}, src, enc, testLogger())

	ticker := newManualTicker()
	s.SetTickerFactory(func(time.Duration) Ticker { return ticker })

	events := make(chan Event, 8)
	s.SetObserver(func(e Event) { events <- e })

	if err := s.Initialize(voiceSettings()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	return s, src, ticker, events
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()

	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for dispatched event")
		return Event{}
	}
}

func waitCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestLifecycleTransitions(t *testing.T) {
	s, src, _, _ := newTestSource(t, encode.NewRawEncoder())

	if got := s.State(); got != StateInitialized {
		t.Fatalf("Expected initialized state, got %s", got)
	}

	if !s.Prepare("audio") {
		t.Fatal("Prepare returned false for wildcard mode set")
	}
	if got := s.State(); got != StatePrepared {
		t.Fatalf("Expected prepared state, got %s", got)
	}
	if s.SessionID() == "" {
		t.Error("Expected session ID after Prepare")
	}

	s.Start()
	if got := s.State(); got != StateRunning {
		t.Fatalf("Expected running state, got %s", got)
	}
	if !src.started {
		t.Error("Capture source was not started")
	}

	s.Stop()
	if got := s.State(); got != StateStopped {
		t.Fatalf("Expected stopped state, got %s", got)
	}
	if !src.stopped {
		t.Error("Capture source was not stopped")
	}
}

func TestNewSourceStateIsUninitialized(t *testing.T) {
	s := New("mic", config.ProfileVoice, []string{"all"}, nil, encode.NewRawEncoder(), testLogger())

	if got := s.State(); got != StateUninitialized {
		t.Errorf("Expected uninitialized state, got %s", got)
	}
}

func TestInitializeConfigError(t *testing.T) {
	s := New("mic", config.ProfileVoice, []string{"all"}, nil, encode.NewRawEncoder(), testLogger())

	err := s.Initialize(config.Settings{config.KeySampleRate: "fast"})
	if err == nil {
		t.Fatal("Expected error for unparsable setting, got nil")
	}
	if !errors.Is(err, config.ErrSettingInvalid) {
		t.Errorf("Expected ErrSettingInvalid, got %v", err)
	}

	if got := s.State(); got != StateUninitialized {
		t.Errorf("Failed Initialize must not advance state, got %s", got)
	}
}

func TestPrepareModeGating(t *testing.T) {
	src := &fakeSource{}
	s := New("mic", config.ProfileVoice, []string{"audio"}, src, encode.NewRawEncoder(), testLogger())

	if err := s.Initialize(voiceSettings()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if s.Prepare("video") {
		t.Error("Prepare accepted a mode outside the configured set")
	}
	if got := s.State(); got != StateInitialized {
		t.Errorf("Rejected Prepare must not advance state, got %s", got)
	}
	if s.SessionID() != "" {
		t.Error("Rejected Prepare must not record correlation state")
	}

	// Start after a failed Prepare has no effect.
	s.Start()
	if got := s.State(); got != StateInitialized {
		t.Errorf("Start after failed Prepare changed state to %s", got)
	}
	if src.started {
		t.Error("Start after failed Prepare started the capture source")
	}

	if !s.Prepare("audio") {
		t.Error("Prepare rejected a mode inside the configured set")
	}
}

func TestPrepareWildcardMode(t *testing.T) {
	s := New("mic", config.ProfileVoice, []string{"all"}, nil, encode.NewRawEncoder(), testLogger())

	if err := s.Initialize(voiceSettings()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !s.Prepare("anything") {
		t.Error("Wildcard mode set rejected a selector")
	}
}

func TestPrepareIdempotentOverwritesCorrelation(t *testing.T) {
	s, _, _, _ := newTestSource(t, encode.NewRawEncoder())

	if !s.Prepare("audio") {
		t.Fatal("First Prepare failed")
	}
	first := s.SessionID()

	if !s.Prepare("audio") {
		t.Fatal("Repeated Prepare failed")
	}
	second := s.SessionID()

	if first == second {
		t.Error("Repeated Prepare did not refresh the session ID")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s, _, _, _ := newTestSource(t, encode.NewRawEncoder())

	// Stop before anything was started.
	s.Stop()
	if got := s.State(); got != StateInitialized {
		t.Errorf("Stop before Start changed state to %s", got)
	}

	s.Prepare("audio")
	s.Start()
	s.Stop()
	s.Stop() // second Stop is a no-op

	if got := s.State(); got != StateStopped {
		t.Errorf("Expected stopped state, got %s", got)
	}
}

func TestInitializeIgnoredWhileRunning(t *testing.T) {
	s, _, _, _ := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()
	defer s.Stop()

	if err := s.Initialize(voiceSettings()); err != nil {
		t.Errorf("Initialize while running must be a no-op, got error: %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Errorf("Initialize while running changed state to %s", got)
	}
}

func TestReinitializeAfterStop(t *testing.T) {
	s, _, _, _ := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()
	s.Stop()

	if err := s.Initialize(voiceSettings()); err != nil {
		t.Fatalf("Re-Initialize after Stop failed: %v", err)
	}
	if got := s.State(); got != StateInitialized {
		t.Errorf("Expected initialized state after re-Initialize, got %s", got)
	}

	if !s.Prepare("audio") {
		t.Error("Prepare failed after re-Initialize")
	}
}

func TestTickExtractsAndDispatches(t *testing.T) {
	s, src, ticker, events := newTestSource(t, encode.NewWAVEncoder())
	s.Prepare("audio")
	s.Start()
	defer s.Stop()

	target := s.Config().TargetBytesPerSegment
	if target != 64000 {
		t.Fatalf("Expected 64000-byte segment target, got %d", target)
	}

	for i := 0; i < 4; i++ {
		src.push(make([]byte, 20000))
	}

	ticker.Tick()
	event := waitEvent(t, events)

	if event.Kind != KindAudio {
		t.Errorf("Expected kind %q, got %q", KindAudio, event.Kind)
	}
	if event.Name != "mic" {
		t.Errorf("Expected name 'mic', got %q", event.Name)
	}
	if event.Format != "audio_wav" {
		t.Errorf("Expected format 'audio_wav', got %q", event.Format)
	}
	// WAV container adds a 44-byte header to the 64000-byte segment.
	if len(event.Payload) != 64044 {
		t.Errorf("Expected 64044-byte payload, got %d", len(event.Payload))
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected event timestamp")
	}

	if got := s.QueueStats().BufferedBytes; got != 16000 {
		t.Errorf("Expected 16000 bytes retained after tick, got %d", got)
	}

	latest, ok := s.LatestData()
	if !ok {
		t.Fatal("Expected latest data after dispatch")
	}
	if latest.Timestamp != event.Timestamp {
		t.Error("Latest data does not match the dispatched event")
	}

	// Second tick: 16000 retained + 50000 new = 66000, one more full segment.
	src.push(make([]byte, 50000))
	ticker.Tick()
	second := waitEvent(t, events)
	if len(second.Payload) != 64044 {
		t.Errorf("Expected second 64044-byte payload, got %d", len(second.Payload))
	}
	if got := s.QueueStats().BufferedBytes; got != 2000 {
		t.Errorf("Expected 2000 bytes retained after second tick, got %d", got)
	}
}

func TestStarvationSegmentDispatched(t *testing.T) {
	s, src, ticker, events := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()
	defer s.Stop()

	src.push(make([]byte, 2000))
	ticker.Tick()

	event := waitEvent(t, events)
	if len(event.Payload) != 2000 {
		t.Errorf("Expected 2000-byte starvation segment, got %d", len(event.Payload))
	}
	if event.Format != "audio_pcm" {
		t.Errorf("Expected format 'audio_pcm', got %q", event.Format)
	}
}

func TestEmptyTickSkipsDispatch(t *testing.T) {
	s, _, ticker, events := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()
	defer s.Stop()

	ticker.Tick()
	waitCondition(t, "tick to be processed", func() bool {
		return s.QueueStats().SegmentsExtracted == 1
	})

	select {
	case e := <-events:
		t.Fatalf("Empty tick dispatched an event with %d bytes", len(e.Payload))
	default:
	}

	if _, ok := s.LatestData(); ok {
		t.Error("Empty tick must not record latest data")
	}
}

func TestEncodeFailureSubstitutesTone(t *testing.T) {
	s, src, ticker, events := newTestSource(t, failEncoder{})
	s.Prepare("audio")
	s.Start()
	defer s.Stop()

	target := s.Config().TargetBytesPerSegment
	src.push(make([]byte, target))

	ticker.Tick()
	event := waitEvent(t, events)

	if event.Format != "audio_pcm" {
		t.Errorf("Expected substitute format 'audio_pcm', got %q", event.Format)
	}
	if len(event.Payload) != target {
		t.Errorf("Expected substitute payload of %d bytes, got %d", target, len(event.Payload))
	}

	audible := false
	for _, b := range event.Payload {
		if b != 0 {
			audible = true
			break
		}
	}
	if !audible {
		t.Error("Expected audible substitute tone, got silence")
	}
}

func TestCaptureUnavailableFallsBackToTone(t *testing.T) {
	src := &fakeSource{failStart: true}
	s := New("mic", config.ProfileVoice, []string{"all"}, src, encode.NewRawEncoder(), testLogger())

	events := make(chan Event, 8)
	s.SetObserver(func(e Event) { events <- e })

	// Short interval so the fallback tone source feeds a real tick quickly.
	if err := s.Initialize(config.Settings{config.KeyCaptureIntervalMs: "100"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	s.Prepare("audio")
	s.Start()
	defer s.Stop()

	if got := s.State(); got != StateRunning {
		t.Fatalf("Unavailable capture source must not block Start, state is %s", got)
	}

	event := waitEvent(t, events)
	if len(event.Payload) == 0 {
		t.Error("Expected tone-fed segment, got empty payload")
	}
}

func TestAppendIgnoredWhenNotRunning(t *testing.T) {
	s, src, _, _ := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()

	src.push(make([]byte, 100))
	appended := s.QueueStats().ChunksAppended
	if appended != 1 {
		t.Fatalf("Expected 1 appended chunk, got %d", appended)
	}

	s.Stop()

	// A straggler push from a winding-down producer is dropped.
	src.push(make([]byte, 100))
	if got := s.QueueStats().ChunksAppended; got != appended {
		t.Errorf("Append after Stop was accepted: %d chunks", got)
	}
}

func TestStopClearsQueue(t *testing.T) {
	s, src, _, _ := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()

	src.push(make([]byte, 5000))
	s.Stop()

	if got := s.QueueStats().BufferedBytes; got != 0 {
		t.Errorf("Expected queue cleared on Stop, got %d buffered bytes", got)
	}
}

func TestNoTickAfterStop(t *testing.T) {
	s, src, ticker, events := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()

	src.push(make([]byte, 1000))
	s.Stop()

	extracted := s.QueueStats().SegmentsExtracted

	ticker.Tick()
	time.Sleep(50 * time.Millisecond)

	if got := s.QueueStats().SegmentsExtracted; got != extracted {
		t.Errorf("Tick after Stop extracted a segment")
	}

	select {
	case <-events:
		t.Error("Tick after Stop dispatched an event")
	default:
	}
}

func TestEmitRecordsLatestWithoutDispatchWhenStopped(t *testing.T) {
	s, _, _, events := newTestSource(t, encode.NewRawEncoder())
	s.Prepare("audio")
	s.Start()
	s.Stop()

	// An in-flight tick finishing after Stop still records its event.
	s.emit([]byte{1, 2, 3}, "audio_pcm")

	latest, ok := s.LatestData()
	if !ok {
		t.Fatal("Expected latest data recorded while stopped")
	}
	if len(latest.Payload) != 3 {
		t.Errorf("Expected 3-byte payload, got %d", len(latest.Payload))
	}

	select {
	case <-events:
		t.Error("Observer invoked while not running")
	default:
	}
}
