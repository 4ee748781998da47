package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/observe"
	"github.com/MrWong99/verbi/pkg/liveness"
	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/provider/llm/gemini"
	llmmock "github.com/MrWong99/verbi/pkg/provider/llm/mock"
	"github.com/MrWong99/verbi/pkg/provider/stt"
	sttmock "github.com/MrWong99/verbi/pkg/provider/stt/mock"
	"github.com/MrWong99/verbi/pkg/provider/tts"
	ttsmock "github.com/MrWong99/verbi/pkg/provider/tts/mock"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// ---- helpers ----

func testOptions(t *testing.T) ([]Option, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return []Option{WithMetrics(m), WithLogger(logger)}, reader
}

// counter sums every data point of the named int64 counter.
func counter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

type completeFunc func(context.Context, []transcript.Turn) (string, error)

func (f completeFunc) Complete(ctx context.Context, turns []transcript.Turn) (string, error) {
	return f(ctx, turns)
}

type synthesizeFunc func(context.Context, string, string) (tts.Artifact, error)

func (f synthesizeFunc) Synthesize(ctx context.Context, text, out string) (tts.Artifact, error) {
	return f(ctx, text, out)
}

// closingSTT counts Close calls and fails them with err.
type closingSTT struct {
	sttmock.Provider
	closed int
	err    error
}

func (c *closingSTT) Close() error {
	c.closed++
	return c.err
}

type closingTTS struct {
	ttsmock.Provider
	closed int
}

func (c *closingTTS) Close() error {
	c.closed++
	return nil
}

var sampleTurns = []transcript.Turn{
	transcript.System("You are Verbi."),
	transcript.User("Hello"),
}

// ---- Transcriber ----

func TestTranscriber_Success(t *testing.T) {
	t.Parallel()
	opts, reader := testOptions(t)
	p := &sttmock.Provider{Text: "turn on the lights"}
	tr := NewTranscriber(p, stt.KindDeepgram, opts...)

	text, err := tr.Transcribe(context.Background(), "test.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "turn on the lights" {
		t.Errorf("text = %q", text)
	}
	if p.Calls[0].AudioPath != "test.wav" {
		t.Errorf("audio path = %q", p.Calls[0].AudioPath)
	}
	if got := counter(t, reader, "verbi.provider.requests"); got != 1 {
		t.Errorf("provider requests = %d, want 1", got)
	}
}

func TestTranscriber_EmptyTextIsNotAnError(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	text, err := NewTranscriber(&sttmock.Provider{}, stt.KindOpenAI, opts...).Transcribe(context.Background(), "a.wav")
	if err != nil || text != "" {
		t.Fatalf("Transcribe = (%q, %v), want empty text and nil error", text, err)
	}
}

func TestTranscriber_ErrorPropagates(t *testing.T) {
	t.Parallel()
	opts, reader := testOptions(t)
	cause := errors.New("401 unauthorized")
	tr := NewTranscriber(&sttmock.Provider{Err: cause}, stt.KindGroq, opts...)

	_, err := tr.Transcribe(context.Background(), "test.wav")
	if !errors.Is(err, ErrTranscription) {
		t.Errorf("error = %v, want ErrTranscription", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want cause preserved", err)
	}
	if got := counter(t, reader, "verbi.provider.errors"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestTranscriber_ServiceUnavailable(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	down := fmt.Errorf("fastwhisper: %w", liveness.ErrUnavailable)
	tr := NewTranscriber(&sttmock.Provider{Err: down}, stt.KindFastWhisper, opts...)

	_, err := tr.Transcribe(context.Background(), "test.wav")
	if !errors.Is(err, ErrTranscription) || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrTranscription and ErrServiceUnavailable", err)
	}
}

func TestTranscriber_PanicBecomesError(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	tr := NewTranscriber(&sttmock.Provider{Panic: "boom"}, stt.KindLocal, opts...)

	_, err := tr.Transcribe(context.Background(), "test.wav")
	if !errors.Is(err, ErrTranscription) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error = %v, want ErrTranscription mentioning the panic", err)
	}
}

// ---- Responder ----

func TestResponder_Success(t *testing.T) {
	t.Parallel()
	opts, reader := testOptions(t)
	p := &llmmock.Provider{Reply: "Hi! How can I help?"}
	r := NewResponder(p, llm.KindOpenAI, opts...)

	if got := r.Reply(context.Background(), sampleTurns); got != "Hi! How can I help?" {
		t.Errorf("Reply = %q", got)
	}
	if len(p.Calls) != 1 || len(p.Calls[0].Turns) != 2 {
		t.Fatalf("provider calls = %+v", p.Calls)
	}
	if p.Calls[0].Turns[0].Role != transcript.RoleSystem {
		t.Errorf("first turn role = %q, want system", p.Calls[0].Turns[0].Role)
	}
	if got := counter(t, reader, "verbi.response.fallbacks"); got != 0 {
		t.Errorf("fallbacks = %d, want 0", got)
	}
}

func TestResponder_FailuresBecomeApology(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    llm.Provider
	}{
		{"provider error", &llmmock.Provider{Err: errors.New("429 rate limited")}},
		{"panic", &llmmock.Provider{Panic: "nil map"}},
		{"empty gemini transcript", &llmmock.Provider{Err: gemini.ErrEmptyTranscript}},
		{"stale gemini turn", &llmmock.Provider{Err: gemini.ErrStaleTurn}},
		{"empty reply", &llmmock.Provider{Reply: ""}},
		{"whitespace reply", &llmmock.Provider{Reply: " \n\t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, reader := testOptions(t)
			r := NewResponder(tt.p, llm.KindGemini, opts...)
			if got := r.Reply(context.Background(), sampleTurns); got != Apology {
				t.Errorf("Reply = %q, want apology", got)
			}
			if got := counter(t, reader, "verbi.response.fallbacks"); got != 1 {
				t.Errorf("fallbacks = %d, want 1", got)
			}
		})
	}
}

func TestResponder_EmptyTranscriptWithGemini(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	p, err := gemini.New(context.Background(), "gm-key")
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	// Normalisation rejects the empty transcript before any request is made.
	if got := NewResponder(p, llm.KindGemini, opts...).Reply(context.Background(), nil); got != Apology {
		t.Errorf("Reply = %q, want apology", got)
	}
}

func TestResponder_ProviderGetsCopy(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	turns := []transcript.Turn{transcript.User("original")}
	mutate := completeFunc(func(_ context.Context, got []transcript.Turn) (string, error) {
		got[0] = transcript.User("mutated")
		return "ok", nil
	})
	NewResponder(mutate, llm.KindLocal, opts...).Reply(context.Background(), turns)
	if turns[0].Content != "original" {
		t.Errorf("caller's transcript was modified: %q", turns[0].Content)
	}
}

func TestResponder_Timeout(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	blocking := completeFunc(func(ctx context.Context, _ []transcript.Turn) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewResponder(blocking, llm.KindOllama, append(opts, WithTimeout(20*time.Millisecond))...)
	if got := r.Reply(context.Background(), sampleTurns); got != Apology {
		t.Errorf("Reply = %q, want apology after timeout", got)
	}
}

// ---- Synthesizer ----

func TestSynthesizer_WritesArtifact(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	out := filepath.Join(t.TempDir(), "output.mp3")
	p := &ttsmock.Provider{Audio: []byte("ID3"), Format: tts.FormatMP3}
	s := NewSynthesizer(p, tts.KindOpenAI, opts...)

	art, ok := s.Synthesize(context.Background(), "Hello there", out)
	if !ok {
		t.Fatal("Synthesize reported failure")
	}
	if art.Path != out || art.Format != tts.FormatMP3 {
		t.Errorf("artifact = %+v", art)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "ID3" {
		t.Errorf("output file = %q, %v", data, err)
	}
	if s.OutputFile() != "output.mp3" {
		t.Errorf("OutputFile = %q", s.OutputFile())
	}
}

func TestSynthesizer_Streamed(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	p := &ttsmock.Provider{Streamed: true, Format: tts.FormatPCM}
	art, ok := NewSynthesizer(p, tts.KindElevenLabs, opts...).Synthesize(context.Background(), "hi", "output.wav")
	if !ok || !art.Streamed || art.Path != "" {
		t.Errorf("Synthesize = (%+v, %v), want streamed artifact without path", art, ok)
	}
}

func TestSynthesizer_FailureIsSwallowed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    tts.Provider
	}{
		{"error", &ttsmock.Provider{Err: errors.New("quota exceeded")}},
		{"panic", synthesizeFunc(func(context.Context, string, string) (tts.Artifact, error) {
			panic("decoder crashed")
		})},
		{"partial artifact with error", synthesizeFunc(func(_ context.Context, _, out string) (tts.Artifact, error) {
			return tts.Artifact{Path: out}, errors.New("truncated")
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, reader := testOptions(t)
			art, ok := NewSynthesizer(tt.p, tts.KindDeepgram, opts...).Synthesize(context.Background(), "hi", "output.wav")
			if ok {
				t.Error("ok = true, want false")
			}
			if art != (tts.Artifact{}) {
				t.Errorf("artifact = %+v, want zero value", art)
			}
			if got := counter(t, reader, "verbi.provider.errors"); got != 1 {
				t.Errorf("provider errors = %d, want 1", got)
			}
		})
	}
}

// ---- Dispatcher and one-shot helpers ----

func TestNew_FromConfig(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	cfg := config.Defaults()
	cfg.Providers.Response = config.ProviderEntry{Name: "openai", Timeout: time.Second}
	cfg.Credentials.OpenAI = "sk-test"

	d, err := New(context.Background(), cfg, Env{}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Transcriber.Kind() != stt.KindLocal || d.Responder.Kind() != llm.KindOpenAI || d.Synthesizer.Kind() != tts.KindLocal {
		t.Errorf("kinds = %s/%s/%s", d.Transcriber.Kind(), d.Responder.Kind(), d.Synthesizer.Kind())
	}
	if d.Responder.s.timeout != time.Second {
		t.Errorf("response timeout = %v, want 1s", d.Responder.s.timeout)
	}
}

func TestDispatcher_CloseClosesProvidersOnce(t *testing.T) {
	t.Parallel()
	boom := errors.New("grpc: connection already closed")
	s := &closingSTT{err: boom}
	sp := &closingTTS{}
	d := &Dispatcher{
		Transcriber: NewTranscriber(s, stt.KindGoogle),
		Responder:   NewResponder(&llmmock.Provider{Reply: "ok"}, llm.KindLocal),
		Synthesizer: NewSynthesizer(sp, tts.KindPolly),
	}

	for range 2 {
		if err := d.Close(); !errors.Is(err, boom) {
			t.Errorf("Close error = %v, want %v", err, boom)
		}
	}
	if s.closed != 1 || sp.closed != 1 {
		t.Errorf("closed = %d/%d, want 1/1", s.closed, sp.closed)
	}
}

func TestDispatcher_ClosePartial(t *testing.T) {
	t.Parallel()
	s := &closingSTT{}
	d := &Dispatcher{Transcriber: NewTranscriber(s, stt.KindGoogle)}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.closed != 1 {
		t.Errorf("closed = %d, want 1", s.closed)
	}
}

func TestNew_JoinsConfigurationErrors(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Providers.Transcription.Name = "whisperx"
	cfg.Providers.Speech.Name = "deepgram" // no credential

	_, err := New(context.Background(), cfg, Env{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	for _, want := range []string{"whisperx", "deepgram"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q: %v", want, err)
		}
	}
}

func TestOneShot_Local(t *testing.T) {
	t.Parallel()
	opts, _ := testOptions(t)
	ctx := context.Background()
	dir := t.TempDir()

	audio := filepath.Join(dir, "test.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	text, err := Transcribe(ctx, "local", "", audio, Env{}, opts...)
	if err != nil || text != "Transcribed text from local model" {
		t.Errorf("Transcribe = (%q, %v)", text, err)
	}

	reply, err := GenerateResponse(ctx, "local", "", sampleTurns, Env{}, opts...)
	if err != nil || reply != "Generated response from local model" {
		t.Errorf("GenerateResponse = (%q, %v)", reply, err)
	}

	out := filepath.Join(dir, "output.wav")
	art, ok, err := Synthesize(ctx, "local", "", "hello", out, Env{}, opts...)
	if err != nil || !ok || art.Path != out {
		t.Errorf("Synthesize = (%+v, %v, %v)", art, ok, err)
	}
}

func TestOneShot_UnsupportedIsConfigurationError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, err := Transcribe(ctx, "nope", "", "a.wav", Env{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Transcribe: %v", err)
	}
	if _, err := GenerateResponse(ctx, "nope", "", sampleTurns, Env{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("GenerateResponse: %v", err)
	}
	if _, _, err := Synthesize(ctx, "nope", "", "hi", "out.wav", Env{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Synthesize: %v", err)
	}
}

// TestFastWhisper_ProbedOncePerProcess drives the real fastwhisperapi
// provider through the dispatcher against a fake server.
func TestFastWhisper_ProbedOncePerProcess(t *testing.T) {
	t.Parallel()
	var infoHits, uploads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			infoHits.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/v1/transcriptions":
			uploads.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"text":"what's the weather"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	probe, err := liveness.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.Providers.Transcription.Name = "fastwhisperapi"
	cfg.Local.FastWhisperURL = srv.URL

	opts, _ := testOptions(t)
	d, err := New(context.Background(), cfg, Env{Probe: probe}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(audio, bytes.Repeat([]byte{0}, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		text, err := d.Transcriber.Transcribe(context.Background(), audio)
		if err != nil {
			t.Fatalf("Transcribe #%d: %v", i, err)
		}
		if text != "what's the weather" {
			t.Errorf("text = %q", text)
		}
	}
	if got := infoHits.Load(); got != 1 {
		t.Errorf("GET /info count = %d, want 1", got)
	}
	if got := uploads.Load(); got != 3 {
		t.Errorf("uploads = %d, want 3", got)
	}
}
