// Package sink persists dispatched segment events to disk.
package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vkoval/capture-audio-service/internal/stream"
)

// formatExtensions maps event format tags to file extensions.
var formatExtensions = map[string]string{
	"audio_wav": "wav",
	"audio_pcm": "pcm",
	"audio_mp3": "mp3",
}

// FileSink writes each event payload to a timestamped file. Its HandleEvent
// method is registered as the data source observer.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

// NewFileSink creates a sink writing into dir, creating it if needed.
func NewFileSink(dir string, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory %s: %w", dir, err)
	}

	return &FileSink{
		dir:    dir,
		logger: logger,
	}, nil
}

// HandleEvent persists one event payload. Write failures are logged, not
// propagated: the observer contract has no error channel and a failed write
// must not disturb the capture cadence.
func (s *FileSink) HandleEvent(event stream.Event) {
	ext, ok := formatExtensions[event.Format]
	if !ok {
		ext = "bin"
	}

	name := fmt.Sprintf("%s_%d.%s", event.Name, event.Timestamp.UnixNano(), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, event.Payload, 0o644); err != nil {
		s.logger.Error("Failed to persist segment",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("Segment persisted",
		slog.String("path", path),
		slog.String("format", event.Format),
		slog.Int("bytes", len(event.Payload)),
	)
}
