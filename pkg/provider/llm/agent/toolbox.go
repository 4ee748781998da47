package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool is a capability the model may call before it answers.
type Tool struct {
	// Name is the function name the model calls.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is the JSON Schema of the arguments object.
	Parameters map[string]any

	// Handler runs the tool with the JSON arguments the model produced and
	// returns a JSON result. A returned error is reported to the model.
	Handler func(ctx context.Context, args json.RawMessage) (string, error)
}

// Definition is a tool as advertised to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ErrToolFailed marks a tool call that ran but reported an error.
var ErrToolFailed = errors.New("agent: tool failed")

// Toolbox serves tools from an in-process MCP server and calls them through
// an MCP client session, so built-in and external tool servers share one
// call path.
type Toolbox struct {
	server *mcpsdk.ServerSession
	client *mcpsdk.ClientSession
	defs   []Definition
}

// NewToolbox starts an MCP server exposing tools, connects to it and lists
// the advertised tools.
func NewToolbox(ctx context.Context, tools ...Tool) (*Toolbox, error) {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "verbi-assistant", Version: "1.0.0"}, nil)
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			return nil, fmt.Errorf("agent: tool %q needs a name and a handler", t.Name)
		}
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		server.AddTool(&mcpsdk.Tool{Name: t.Name, Description: t.Description, InputSchema: schema}, serve(t.Handler))
	}

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("agent: start tool server: %w", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "verbi", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		_ = ss.Close()
		return nil, fmt.Errorf("agent: connect tool server: %w", err)
	}

	tb := &Toolbox{server: ss, client: cs}
	for tool, err := range cs.Tools(ctx, nil) {
		if err != nil {
			_ = tb.Close()
			return nil, fmt.Errorf("agent: list tools: %w", err)
		}
		tb.defs = append(tb.defs, Definition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaToMap(tool.InputSchema),
		})
	}
	return tb, nil
}

func serve(h func(context.Context, json.RawMessage) (string, error)) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := req.Params.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		out, err := h(ctx, args)
		if err != nil {
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}}}, nil
	}
}

// Definitions returns the tools the server advertised.
func (tb *Toolbox) Definitions() []Definition { return tb.defs }

// Call runs the named tool with args, a JSON object. Tool-reported failures
// wrap [ErrToolFailed].
func (tb *Toolbox) Call(ctx context.Context, name, args string) (string, error) {
	var argMap map[string]any
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return "", fmt.Errorf("agent: invalid arguments for %q: %w", name, err)
		}
	}
	res, err := tb.client.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: argMap})
	if err != nil {
		return "", fmt.Errorf("agent: call %q: %w", name, err)
	}

	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, name, sb.String())
	}
	return sb.String(), nil
}

// Close ends the client and server sessions.
func (tb *Toolbox) Close() error {
	return errors.Join(tb.client.Close(), tb.server.Close())
}

// schemaToMap converts an advertised input schema to a plain map.
func schemaToMap(schema any) map[string]any {
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	fallback := map[string]any{"type": "object"}
	if schema == nil {
		return fallback
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fallback
	}
	return m
}
