package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/vkoval/capture-audio-service/internal/config"
)

// CommandSource captures audio by running an external recorder process
// (sox, rec, arecord) that writes raw PCM to stdout. Reads come off the
// pipe in whatever sizes the process delivers, which is exactly the
// irregular-chunk behavior the queue is built for.
type CommandSource struct {
	command string
	args    []string
	logger  *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewCommandSource creates a source that runs the given recorder command.
// If args is empty, a sox-style argument list is derived from the capture
// configuration (signed 16-bit little-endian raw PCM on stdout).
func NewCommandSource(command string, args []string, cfg config.CaptureConfig, logger *slog.Logger) *CommandSource {
	if len(args) == 0 {
		args = []string{
			"-q",
			"-d",
			"-t", "raw",
			"-b", fmt.Sprintf("%d", cfg.BitsPerSample),
			"-c", fmt.Sprintf("%d", cfg.Channels),
			"-r", fmt.Sprintf("%d", cfg.SampleRate),
			"-e", "signed-integer",
			"-",
		}
	}

	return &CommandSource{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// Start launches the recorder process and begins pushing stdout reads
// through onChunk. It returns ErrUnavailable if the process cannot be
// started.
func (s *CommandSource) Start(ctx context.Context, onChunk func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("capture command already running")
	}

	if _, err := exec.LookPath(s.command); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, s.command)
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, s.command, s.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stdout pipe: %v", ErrUnavailable, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: starting %s: %v", ErrUnavailable, s.command, err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("Capture command started",
		slog.String("command", s.command),
		slog.Int("pid", cmd.Process.Pid),
	)

	go s.readLoop(cmdCtx, stdout, onChunk)

	return nil
}

// readLoop pushes stdout reads to the consumer until the pipe closes.
func (s *CommandSource) readLoop(ctx context.Context, stdout io.Reader, onChunk func([]byte)) {
	defer close(s.done)

	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil && err != io.EOF {
				s.logger.Warn("Capture command read error",
					slog.String("command", s.command),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// Stop terminates the recorder process and waits for the read loop to
// drain. Calling Stop on a source that is not running is a no-op.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	<-s.done

	// The process was killed through the context; Wait only reaps it.
	if err := s.cmd.Wait(); err != nil {
		s.logger.Debug("Capture command exited",
			slog.String("command", s.command),
			slog.String("error", err.Error()),
		)
	}

	s.cmd = nil
	s.cancel = nil
	s.running = false

	return nil
}
