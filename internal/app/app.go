// Package app runs the verbi conversation loop.
//
// Each turn records the user, transcribes the recording, asks the response
// provider for an answer and speaks it back. The loop owns the only
// [transcript.Transcript]; dispatchers receive copies of it.
//
// For testing, inject fakes via functional options (WithRecorder,
// WithPlayer, ...). When an option is not provided, New creates the external
// command wrappers from the audio section of the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/verbi/internal/audio"
	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/dispatch"
	"github.com/MrWong99/verbi/internal/observe"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// DefaultRetryDelay is the pause after a failed transcription.
const DefaultRetryDelay = time.Second

// Recorder captures one utterance into a file.
type Recorder interface {
	Record(ctx context.Context, path string) error
}

// Player plays an audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Flusher finishes playback of streamed audio.
type Flusher interface {
	Flush() error
}

// App owns the transcript and drives the turn loop.
type App struct {
	recorder   Recorder
	player     Player
	sink       Flusher
	console    *Console
	metrics    *observe.Metrics
	retryDelay time.Duration

	// mu guards cfg, dispatcher and retired. Reload swaps the dispatcher;
	// the replaced one is closed when no turn can still be using it.
	mu         sync.Mutex
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	retired    []*dispatch.Dispatcher

	history *transcript.Transcript

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecorder injects a recorder instead of running audio.record_command.
func WithRecorder(r Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithPlayer injects a player instead of running audio.play_command.
func WithPlayer(p Player) Option {
	return func(a *App) { a.player = p }
}

// WithSink registers the sink streaming speech providers write to. It is
// flushed after every streamed reply and on Shutdown.
func WithSink(s Flusher) Option {
	return func(a *App) { a.sink = s }
}

// WithConsole sets where the conversation is printed. Default: stdout.
func WithConsole(c *Console) Option {
	return func(a *App) { a.console = c }
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRetryDelay overrides the pause after a failed transcription.
func WithRetryDelay(d time.Duration) Option {
	return func(a *App) { a.retryDelay = d }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App for cfg using the dispatchers in d.
func New(cfg *config.Config, d *dispatch.Dispatcher, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if d == nil || d.Transcriber == nil || d.Responder == nil || d.Synthesizer == nil {
		return nil, errors.New("app: dispatcher must provide all three roles")
	}
	a := &App{
		cfg:        cfg,
		dispatcher: d,
		retryDelay: DefaultRetryDelay,
	}
	for _, o := range opts {
		o(a)
	}

	if a.recorder == nil {
		r, err := audio.NewRecorder(cfg.Audio.RecordCommand)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.recorder = r
	}
	if a.player == nil {
		p, err := audio.NewPlayer(cfg.Audio.PlayCommand)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.player = p
	}
	if a.console == nil {
		a.console = NewConsole(os.Stdout, DefaultTheme)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.sink != nil {
		a.closers = append(a.closers, a.sink.Flush)
	}
	a.closers = append(a.closers, a.closeDispatchers)

	prompt := cfg.Assistant.SystemPrompt
	if prompt == "" {
		prompt = config.DefaultSystemPrompt
	}
	a.history = transcript.New(transcript.System(prompt))
	return a, nil
}

// Config returns the configuration the next turn uses.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Transcript returns a copy of the conversation so far.
func (a *App) Transcript() []transcript.Turn {
	return a.history.Turns()
}

// Reload swaps in a new configuration and dispatcher. It takes effect at the
// start of the next turn, which also closes the replaced dispatcher. A nil
// argument keeps the current value. The transcript, including its system
// prompt, is kept.
func (a *App) Reload(cfg *config.Config, d *dispatch.Dispatcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg != nil {
		a.cfg = cfg
	}
	if d != nil && d != a.dispatcher {
		a.retired = append(a.retired, a.dispatcher)
		a.dispatcher = d
	}
}

// current returns the config and dispatcher for the next turn and closes
// dispatchers replaced since the previous one.
func (a *App) current() (*config.Config, *dispatch.Dispatcher) {
	a.mu.Lock()
	cfg, d, retired := a.cfg, a.dispatcher, a.retired
	a.retired = nil
	a.mu.Unlock()

	for _, old := range retired {
		if err := old.Close(); err != nil {
			slog.Warn("closing replaced providers", "err", err)
		}
	}
	return cfg, d
}

func (a *App) closeDispatchers() error {
	a.mu.Lock()
	all := append(a.retired, a.dispatcher)
	a.retired = nil
	a.mu.Unlock()

	var errs []error
	for _, d := range all {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes turns until the user says an exit word or ctx is cancelled.
// It returns nil after an exit word and the context error on cancellation.
// A failing recorder ends the loop with an error.
func (a *App) Run(ctx context.Context) error {
	slog.Info("conversation started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := a.Turn(ctx)
		if err != nil {
			return err
		}
		if done {
			a.console.Notice("Goodbye!")
			slog.Info("conversation ended", "turns", len(a.history.Turns()))
			return nil
		}
	}
}

// Turn performs one pass of the loop. done is true when the user asked to
// stop. Transcription failures and silence are not errors: the turn simply
// ends without a reply.
func (a *App) Turn(ctx context.Context) (done bool, err error) {
	cfg, d := a.current()
	input := cfg.Assistant.InputAudio

	if err := a.recorder.Record(ctx, input); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("app: record: %w", err)
	}
	defer removeFile(input)

	text, err := d.Transcriber.Transcribe(ctx, input)
	if err != nil {
		slog.Error("transcription failed", "provider", d.Transcriber.Kind(), "err", err)
		removeFile(input)
		return false, sleep(ctx, a.retryDelay)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Info("no speech detected, recording again")
		return false, nil
	}
	a.console.Heard(text)

	if containsExitWord(text, cfg.Assistant.ExitWords, cfg.Assistant.ExitWordSimilarity) {
		return true, nil
	}

	if err := a.history.Append(transcript.User(text)); err != nil {
		return false, fmt.Errorf("app: %w", err)
	}
	reply := d.Responder.Reply(ctx, a.history.Turns())
	if err := a.history.Append(transcript.Assistant(reply)); err != nil {
		return false, fmt.Errorf("app: %w", err)
	}
	a.console.Replied(reply)

	output := filepath.Join(cfg.Assistant.OutputDir, d.Synthesizer.OutputFile())
	art, ok := d.Synthesizer.Synthesize(ctx, reply, output)
	switch {
	case !ok:
		// Already logged by the dispatcher; the reply was printed.
	case art.Streamed:
		if a.sink != nil {
			if err := a.sink.Flush(); err != nil {
				slog.Warn("streamed playback failed", "err", err)
			}
		}
	case art.Path != "":
		if err := a.player.Play(ctx, art.Path); err != nil {
			slog.Warn("playback failed", "file", art.Path, "err", err)
		}
		removeFile(art.Path)
	}

	a.metrics.RecordTurn(ctx)
	return false, nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown flushes the audio sink and closes the providers. It respects the
// context deadline: if ctx expires before all closers finish, the remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove audio file", "file", path, "err", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	_ Recorder = (*audio.Recorder)(nil)
	_ Player   = (*audio.Player)(nil)
	_ Flusher  = (*audio.PCMSink)(nil)
)
