package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/verbi/internal/audio"
	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/dispatch"
	"github.com/MrWong99/verbi/internal/observe"
	"github.com/MrWong99/verbi/pkg/provider/tts"
	"github.com/MrWong99/verbi/pkg/transcript"
)

var (
	providerFlag string
	outputFlag   string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe an audio file",
	Long: `Transcribe an audio file with the configured transcription provider, or
the one named by --provider, and print the text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		env, err := newEnv(cfg, observe.DefaultMetrics())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var text string
		if name, ok := overridden(cfg, config.RoleTranscription); ok {
			text, err = dispatch.Transcribe(ctx, name, credentialFor(cfg, config.RoleTranscription, name), args[0], env)
		} else {
			var d *dispatch.Transcriber
			if d, err = transcriber(ctx, cfg, env); err == nil {
				defer d.Close()
				text, err = d.Transcribe(ctx, args[0])
			}
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("no speech detected")
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <text>...",
	Short: "Generate a single response",
	Long: `Send one user message, preceded by assistant.system_prompt, to the
configured response provider (or --provider) and print the answer.

Provider failures print the apology instead of failing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		env, err := newEnv(cfg, observe.DefaultMetrics())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		turns := []transcript.Turn{
			transcript.System(cfg.Assistant.SystemPrompt),
			transcript.User(strings.Join(args, " ")),
		}

		var reply string
		if name, ok := overridden(cfg, config.RoleResponse); ok {
			reply, err = dispatch.GenerateResponse(ctx, name, credentialFor(cfg, config.RoleResponse, name), turns, env)
		} else {
			var d *dispatch.Responder
			if d, err = responder(ctx, cfg, env); err == nil {
				defer d.Close()
				reply = d.Reply(ctx, turns)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

var speakCmd = &cobra.Command{
	Use:   "speak <text>...",
	Short: "Synthesize speech",
	Long: `Synthesize text with the configured speech provider (or --provider).

File-producing providers write to --output, which defaults to output.mp3 or
output.wav in assistant.output_dir depending on the provider. Streaming
providers play through audio.pcm_play_command.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		env, err := newEnv(cfg, observe.DefaultMetrics())
		if err != nil {
			return err
		}
		var sink *audio.PCMSink
		if cfg.Audio.PCMPlayCommand != "" {
			if sink, err = audio.NewPCMSink(cfg.Audio.PCMPlayCommand); err != nil {
				return err
			}
			env.Sink = sink
		}
		ctx := cmd.Context()
		text := strings.Join(args, " ")

		name, override := overridden(cfg, config.RoleSpeech)
		if !override {
			name = cfg.Providers.Speech.Name
		}
		kind, err := tts.ParseKind(name)
		if err != nil {
			return fmt.Errorf("%w: %w", dispatch.ErrConfiguration, err)
		}
		output := outputFlag
		if output == "" {
			output = filepath.Join(cfg.Assistant.OutputDir, config.OutputFile(kind))
		}

		var (
			art tts.Artifact
			ok  bool
		)
		if override {
			art, ok, err = dispatch.Synthesize(ctx, name, credentialFor(cfg, config.RoleSpeech, name), text, output, env)
		} else {
			art, ok, err = synthesize(ctx, cfg, env, text, output)
		}
		if err != nil {
			return err
		}
		if sink != nil {
			if ferr := sink.Flush(); ferr != nil {
				return ferr
			}
		}
		if !ok {
			return dispatch.ErrSynthesis
		}
		if art.Streamed {
			fmt.Fprintln(cmd.OutOrStdout(), "streamed", art.Format)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), art.Path)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{transcribeCmd, replyCmd, speakCmd} {
		c.Flags().StringVarP(&providerFlag, "provider", "p", "", "provider name overriding the configured one")
		rootCmd.AddCommand(c)
	}
	speakCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output audio file")
}

// overridden reports the --provider name when it differs from the one
// configured for role.
func overridden(cfg *config.Config, role config.Role) (string, bool) {
	name := strings.TrimSpace(providerFlag)
	if name == "" || strings.EqualFold(name, cfg.Entry(role).Name) {
		return "", false
	}
	return name, true
}

func transcriber(ctx context.Context, cfg *config.Config, env dispatch.Env) (*dispatch.Transcriber, error) {
	p, kind, err := dispatch.NewTranscriptionProvider(ctx, cfg.Providers.Transcription, cfg.APIKey(config.RoleTranscription), env)
	if err != nil {
		return nil, err
	}
	return dispatch.NewTranscriber(p, kind, dispatch.WithTimeout(cfg.Providers.Transcription.Timeout)), nil
}

func responder(ctx context.Context, cfg *config.Config, env dispatch.Env) (*dispatch.Responder, error) {
	p, kind, err := dispatch.NewResponseProvider(ctx, cfg.Providers.Response, cfg.APIKey(config.RoleResponse), env)
	if err != nil {
		return nil, err
	}
	return dispatch.NewResponder(p, kind, dispatch.WithTimeout(cfg.Providers.Response.Timeout)), nil
}

func synthesize(ctx context.Context, cfg *config.Config, env dispatch.Env, text, output string) (tts.Artifact, bool, error) {
	p, kind, err := dispatch.NewSpeechProvider(ctx, cfg.Providers.Speech, cfg.APIKey(config.RoleSpeech), env)
	if err != nil {
		return tts.Artifact{}, false, err
	}
	s := dispatch.NewSynthesizer(p, kind, dispatch.WithTimeout(cfg.Providers.Speech.Timeout))
	defer s.Close()
	art, ok := s.Synthesize(ctx, text, output)
	return art, ok, nil
}
