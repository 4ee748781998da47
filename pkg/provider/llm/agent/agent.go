// Package agent provides a response provider that lets the model call the
// assistant's tools before it answers.
//
// Each reply is a loop over the chat completions API: the model either
// answers with text or asks for tool calls. Every requested call is run
// through a [Toolbox] and its result is sent back as a tool message, then the
// model is asked again. The loop ends with the first text answer or after
// [DefaultMaxSteps] rounds.
//
// The default endpoint is Groq's OpenAI-compatible API.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/verbi/pkg/provider/llm"
	llmopenai "github.com/MrWong99/verbi/pkg/provider/llm/openai"
	"github.com/MrWong99/verbi/pkg/transcript"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1/"

	// DefaultModel is a Groq model with tool use support.
	DefaultModel = "llama-3.3-70b-versatile"

	// DefaultMaxSteps bounds the model calls made for one reply.
	DefaultMaxSteps = 5

	maxCompletionTokens = 4096
)

// ErrTooManySteps is returned when the model still asks for tools after the
// step limit.
var ErrTooManySteps = errors.New("agent: too many tool rounds")

type config struct {
	baseURL    string
	model      string
	maxSteps   int
	maxRetries int
	httpClient *http.Client
	toolbox    *Toolbox
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(url string) Option {
	return func(c *config) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithModel overrides [DefaultModel].
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxSteps sets how many model calls one reply may take. Values below 1
// keep [DefaultMaxSteps].
func WithMaxSteps(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithMaxRetries sets how often the SDK retries a failed request.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithToolbox replaces the assistant tools. The Provider takes ownership
// and closes tb.
func WithToolbox(tb *Toolbox) Option {
	return func(c *config) {
		c.toolbox = tb
	}
}

// Provider implements llm.Provider with tool calling.
type Provider struct {
	client   oai.Client
	model    string
	maxSteps int
	toolbox  *Toolbox
	tools    []oai.ChatCompletionToolParam
}

// New builds a Provider authenticated with apiKey. Unless [WithToolbox] is
// given, it starts a toolbox serving [AssistantTools] over a fresh [Store].
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("agent: apiKey must not be empty")
	}
	cfg := &config{baseURL: DefaultBaseURL, model: DefaultModel, maxSteps: DefaultMaxSteps, maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	tb := cfg.toolbox
	if tb == nil {
		var err error
		if tb, err = NewToolbox(ctx, AssistantTools(NewStore())...); err != nil {
			return nil, err
		}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	p := &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		maxSteps: cfg.maxSteps,
		toolbox:  tb,
	}
	for _, d := range tb.Definitions() {
		p.tools = append(p.tools, oai.ChatCompletionToolParam{
			Function: oai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: oai.String(d.Description),
				Parameters:  oai.FunctionParameters(d.Parameters),
			},
		})
	}
	return p, nil
}

// Model returns the configured chat model.
func (p *Provider) Model() string { return p.model }

// Close stops the toolbox.
func (p *Provider) Close() error { return p.toolbox.Close() }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, turns []transcript.Turn) (string, error) {
	messages, err := llmopenai.Messages(turns)
	if err != nil {
		return "", fmt.Errorf("agent: build params: %w", err)
	}
	params := oai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.model),
		Messages:            messages,
		Tools:               p.tools,
		MaxCompletionTokens: oai.Int(maxCompletionTokens),
	}
	if len(p.tools) > 0 {
		params.ToolChoice = oai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: oai.String("auto")}
	}

	for range p.maxSteps {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("agent: chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("agent: empty choices in response")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		params.Messages = append(params.Messages, toolCallMessage(msg))
		for _, tc := range msg.ToolCalls {
			params.Messages = append(params.Messages, oai.ToolMessage(p.run(ctx, tc), tc.ID))
		}
	}
	return "", fmt.Errorf("%w: limit is %d", ErrTooManySteps, p.maxSteps)
}

// run executes one tool call. Failures become the tool result so the model
// can recover or explain them.
func (p *Provider) run(ctx context.Context, tc oai.ChatCompletionMessageToolCall) string {
	out, err := p.toolbox.Call(ctx, tc.Function.Name, tc.Function.Arguments)
	if err != nil {
		slog.Warn("agent tool call failed", "tool", tc.Function.Name, "err", err)
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(b)
	}
	slog.Debug("agent tool call", "tool", tc.Function.Name)
	return out
}

// toolCallMessage echoes the assistant's tool call request back into the
// conversation, as the API requires before the tool results.
func toolCallMessage(msg oai.ChatCompletionMessage) oai.ChatCompletionMessageParamUnion {
	asst := oai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		asst.Content.OfString = oai.String(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: oai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

var _ llm.Provider = (*Provider)(nil)
