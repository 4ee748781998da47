package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Recorder captures microphone input into a file by running an external
// program until it exits.
type Recorder struct {
	cmd Command
}

// NewRecorder parses tmpl, e.g. "sox -d -c 1 -r 16000 {file}".
func NewRecorder(tmpl string) (*Recorder, error) {
	c, err := ParseCommand(tmpl)
	if err != nil {
		return nil, fmt.Errorf("audio: recorder: %w", err)
	}
	return &Recorder{cmd: c}, nil
}

// Record writes a new recording to path.
func (r *Recorder) Record(ctx context.Context, path string) error {
	slog.Debug("recording", "cmd", r.cmd.Name(), "file", path)
	return r.cmd.run(ctx, path)
}

// Player plays an audio file through an external program.
type Player struct {
	cmd Command
}

// NewPlayer parses tmpl, e.g. "ffplay -nodisp -autoexit {file}".
func NewPlayer(tmpl string) (*Player, error) {
	c, err := ParseCommand(tmpl)
	if err != nil {
		return nil, fmt.Errorf("audio: player: %w", err)
	}
	return &Player{cmd: c}, nil
}

// Play blocks until playback of path has finished.
func (p *Player) Play(ctx context.Context, path string) error {
	slog.Debug("playing", "cmd", p.cmd.Name(), "file", path)
	return p.cmd.run(ctx, path)
}

// PCMSink is an [io.Writer] that pipes raw PCM into an external player. The
// player is started on the first Write and stopped by Flush, so one sink can
// serve any number of utterances.
type PCMSink struct {
	cmd Command

	mu    sync.Mutex
	proc  *exec.Cmd
	stdin io.WriteCloser
}

var _ io.Writer = (*PCMSink)(nil)

// NewPCMSink parses tmpl. The command must read PCM from standard input.
func NewPCMSink(tmpl string) (*PCMSink, error) {
	c, err := ParseCommand(tmpl)
	if err != nil {
		return nil, fmt.Errorf("audio: pcm sink: %w", err)
	}
	return &PCMSink{cmd: c}, nil
}

// Write forwards p to the player, starting it if needed.
func (s *PCMSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		if err := s.start(); err != nil {
			return 0, err
		}
	}
	n, err := s.stdin.Write(p)
	if err != nil {
		return n, fmt.Errorf("audio: pcm sink: %w", err)
	}
	return n, nil
}

func (s *PCMSink) start() error {
	// Not tied to a request context: the player outlives the Write call.
	proc := s.cmd.cmd(context.Background(), "")
	stdin, err := proc.StdinPipe()
	if err != nil {
		return fmt.Errorf("audio: pcm sink: %w", err)
	}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("audio: pcm sink: start %s: %w", s.cmd.Name(), err)
	}
	s.proc, s.stdin = proc, stdin
	return nil
}

// Flush closes the player's input and waits for it to finish playing. It is
// a no-op when nothing was written since the last Flush.
func (s *PCMSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return nil
	}
	proc, stdin := s.proc, s.stdin
	s.proc, s.stdin = nil, nil

	closeErr := stdin.Close()
	if err := proc.Wait(); err != nil {
		return fmt.Errorf("audio: pcm sink: %s: %w", s.cmd.Name(), err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("audio: pcm sink: %w", closeErr)
	}
	return nil
}
