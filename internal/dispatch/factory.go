package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/pkg/liveness"
	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/provider/llm/agent"
	"github.com/MrWong99/verbi/pkg/provider/llm/anyllm"
	"github.com/MrWong99/verbi/pkg/provider/llm/gemini"
	llmlocal "github.com/MrWong99/verbi/pkg/provider/llm/local"
	llmopenai "github.com/MrWong99/verbi/pkg/provider/llm/openai"
	"github.com/MrWong99/verbi/pkg/provider/stt"
	sttdeepgram "github.com/MrWong99/verbi/pkg/provider/stt/deepgram"
	"github.com/MrWong99/verbi/pkg/provider/stt/fastwhisper"
	"github.com/MrWong99/verbi/pkg/provider/stt/google"
	sttlocal "github.com/MrWong99/verbi/pkg/provider/stt/local"
	sttopenai "github.com/MrWong99/verbi/pkg/provider/stt/openai"
	"github.com/MrWong99/verbi/pkg/provider/tts"
	ttsdeepgram "github.com/MrWong99/verbi/pkg/provider/tts/deepgram"
	"github.com/MrWong99/verbi/pkg/provider/tts/elevenlabs"
	ttslocal "github.com/MrWong99/verbi/pkg/provider/tts/local"
	"github.com/MrWong99/verbi/pkg/provider/tts/melotts"
	ttsopenai "github.com/MrWong99/verbi/pkg/provider/tts/openai"
	"github.com/MrWong99/verbi/pkg/provider/tts/piper"
	"github.com/MrWong99/verbi/pkg/provider/tts/polly"
)

// Env carries the collaborators providers need beyond their configuration
// entry.
type Env struct {
	// Local holds the default base URLs of locally hosted services.
	Local config.LocalConfig

	// Probe is reused by fastwhisperapi providers whose base URL matches
	// Probe.BaseURL, so the service is probed once per process.
	Probe *liveness.Probe

	// Sink receives PCM audio from streaming speech providers.
	Sink io.Writer

	// HTTPClient is used by REST providers. Nil keeps each provider's default.
	HTTPClient *http.Client
}

func configErr(role config.Role, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, role, fmt.Sprintf(format, args...))
}

func parseErr(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

func requireKey(role config.Role, name, apiKey string) error {
	if apiKey != "" {
		return nil
	}
	return configErr(role, "provider %q requires a credential (%s)", name, config.CredentialEnv(role, name))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewTranscriptionProvider builds the transcription provider selected by
// entry. Unknown names and missing credentials wrap [ErrConfiguration].
func NewTranscriptionProvider(ctx context.Context, entry config.ProviderEntry, apiKey string, env Env) (stt.Provider, stt.Kind, error) {
	kind, err := stt.ParseKind(entry.Name)
	if err != nil {
		return nil, "", parseErr(err)
	}
	if kind.NeedsCredential() {
		if err := requireKey(config.RoleTranscription, string(kind), apiKey); err != nil {
			return nil, kind, err
		}
	}

	var p stt.Provider
	switch kind {
	case stt.KindOpenAI, stt.KindGroq:
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		if kind == stt.KindGroq {
			p, err = sttopenai.NewGroq(apiKey, opts...)
		} else {
			p, err = sttopenai.New(apiKey, opts...)
		}
	case stt.KindDeepgram:
		var opts []sttdeepgram.Option
		if entry.Model != "" {
			opts = append(opts, sttdeepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttdeepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, sttdeepgram.WithLanguage(lang))
		}
		if env.HTTPClient != nil {
			opts = append(opts, sttdeepgram.WithHTTPClient(env.HTTPClient))
		}
		p, err = sttdeepgram.New(apiKey, opts...)
	case stt.KindGoogle:
		p, err = google.New(ctx, apiKey, google.WithLanguageCode(entry.OptionString("language_code")))
	case stt.KindFastWhisper:
		base := strings.TrimRight(firstNonEmpty(entry.BaseURL, env.Local.FastWhisperURL, fastwhisper.DefaultBaseURL), "/")
		opts := []fastwhisper.Option{
			fastwhisper.WithModel(entry.Model),
			fastwhisper.WithInitialPrompt(entry.OptionString("initial_prompt")),
		}
		if env.Probe != nil && env.Probe.BaseURL() == base {
			opts = append(opts, fastwhisper.WithProbe(env.Probe))
		}
		if env.HTTPClient != nil {
			opts = append(opts, fastwhisper.WithHTTPClient(env.HTTPClient))
		}
		p, err = fastwhisper.New(base, opts...)
	case stt.KindLocal:
		p = sttlocal.New()
	default:
		return nil, kind, configErr(config.RoleTranscription, "provider %q has no constructor", kind)
	}
	if err != nil {
		return nil, kind, configErr(config.RoleTranscription, "%v", err)
	}
	return p, kind, nil
}

// NewResponseProvider builds the response provider selected by entry.
// Unknown names and missing credentials wrap [ErrConfiguration].
func NewResponseProvider(ctx context.Context, entry config.ProviderEntry, apiKey string, env Env) (llm.Provider, llm.Kind, error) {
	kind, err := llm.ParseKind(entry.Name)
	if err != nil {
		return nil, "", parseErr(err)
	}
	if kind.NeedsCredential() {
		if err := requireKey(config.RoleResponse, string(kind), apiKey); err != nil {
			return nil, kind, err
		}
	}

	var p llm.Provider
	switch kind {
	case llm.KindOpenAI:
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, llmopenai.WithTimeout(entry.Timeout))
		}
		p, err = llmopenai.New(apiKey, entry.Model, opts...)
	case llm.KindGroq:
		opts := []anyllmlib.Option{anyllmlib.WithAPIKey(apiKey)}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err = anyllm.NewGroq(entry.Model, opts...)
	case llm.KindOllama:
		var opts []anyllmlib.Option
		if base := firstNonEmpty(entry.BaseURL, env.Local.OllamaURL); base != "" {
			opts = append(opts, anyllmlib.WithBaseURL(base))
		}
		p, err = anyllm.NewOllama(entry.Model, opts...)
	case llm.KindGemini:
		p, err = gemini.New(ctx, apiKey, gemini.WithModel(entry.Model))
	case llm.KindAgent:
		opts := []agent.Option{agent.WithBaseURL(entry.BaseURL), agent.WithModel(entry.Model)}
		if steps, ok := entry.OptionFloat("max_steps"); ok {
			opts = append(opts, agent.WithMaxSteps(int(steps)))
		}
		if env.HTTPClient != nil {
			opts = append(opts, agent.WithHTTPClient(env.HTTPClient))
		}
		p, err = agent.New(ctx, apiKey, opts...)
	case llm.KindLocal:
		p = llmlocal.New()
	default:
		return nil, kind, configErr(config.RoleResponse, "provider %q has no constructor", kind)
	}
	if err != nil {
		return nil, kind, configErr(config.RoleResponse, "%v", err)
	}
	return p, kind, nil
}

// NewSpeechProvider builds the speech provider selected by entry.
// Unknown names, missing credentials and a missing [Env.Sink] for streaming
// providers wrap [ErrConfiguration].
func NewSpeechProvider(_ context.Context, entry config.ProviderEntry, apiKey string, env Env) (tts.Provider, tts.Kind, error) {
	kind, err := tts.ParseKind(entry.Name)
	if err != nil {
		return nil, "", parseErr(err)
	}
	if kind.NeedsCredential() {
		if err := requireKey(config.RoleSpeech, string(kind), apiKey); err != nil {
			return nil, kind, err
		}
	}

	var p tts.Provider
	switch kind {
	case tts.KindOpenAI:
		opts := []ttsopenai.Option{ttsopenai.WithModel(entry.Model), ttsopenai.WithVoice(entry.Voice)}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		p, err = ttsopenai.New(apiKey, opts...)
	case tts.KindDeepgram:
		opts := []ttsdeepgram.Option{ttsdeepgram.WithModel(entry.Model)}
		if entry.BaseURL != "" {
			opts = append(opts, ttsdeepgram.WithEndpoint(entry.BaseURL))
		}
		if env.HTTPClient != nil {
			opts = append(opts, ttsdeepgram.WithHTTPClient(env.HTTPClient))
		}
		p, err = ttsdeepgram.New(apiKey, opts...)
	case tts.KindElevenLabs:
		if env.Sink == nil {
			return nil, kind, configErr(config.RoleSpeech, "provider %q streams audio and needs a playback sink", kind)
		}
		opts := []elevenlabs.Option{elevenlabs.WithModel(entry.Model), elevenlabs.WithVoice(entry.Voice)}
		if f := entry.OptionString("output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		p, err = elevenlabs.New(apiKey, env.Sink, opts...)
	case tts.KindMeloTTS:
		accent := entry.OptionString("accent")
		if accent != "" && !melotts.ValidAccent(accent) {
			return nil, kind, fmt.Errorf("%w: %s: %w: %q", ErrConfiguration, config.RoleSpeech, melotts.ErrInvalidAccent, accent)
		}
		speed, _ := entry.OptionFloat("speed")
		opts := []melotts.Option{melotts.WithAccent(accent), melotts.WithSpeed(speed)}
		if env.HTTPClient != nil {
			opts = append(opts, melotts.WithHTTPClient(env.HTTPClient))
		}
		p, err = melotts.New(firstNonEmpty(entry.BaseURL, env.Local.MeloTTSURL, melotts.DefaultBaseURL), opts...)
	case tts.KindPiper:
		var opts []piper.Option
		if env.HTTPClient != nil {
			opts = append(opts, piper.WithHTTPClient(env.HTTPClient))
		}
		p, err = piper.New(firstNonEmpty(entry.BaseURL, env.Local.PiperURL, piper.DefaultBaseURL), opts...)
	case tts.KindPolly:
		p = polly.New(polly.Config{
			Region:  entry.OptionString("region"),
			VoiceID: entry.Voice,
			Engine:  entry.OptionString("engine"),
		})
	case tts.KindLocal:
		p = ttslocal.New()
	default:
		return nil, kind, configErr(config.RoleSpeech, "provider %q has no constructor", kind)
	}
	if err != nil {
		return nil, kind, configErr(config.RoleSpeech, "%v", err)
	}
	return p, kind, nil
}
