// Package mcpclient talks to the vendor's hosted MCP server, the sanctioned
// automation surface that complements the session-based paths. It exposes
// the server's tool catalog as "actions" and invokes them on demand.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/config"
)

// Action is one invokable action from the server's catalog.
type Action struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// InvokeResult carries whatever the server returned for one invocation.
type InvokeResult struct {
	IsError    bool     `json:"isError"`
	Content    []string `json:"content,omitempty"`
	Structured any      `json:"structured,omitempty"`
}

var impl = &mcp.Implementation{Name: "zapctl", Version: "1.0.0"}

// Client wraps one MCP session. Transport is an injection point for tests;
// when nil, Connect dials the configured endpoint over streamable HTTP with
// the API key as a bearer token.
type Client struct {
	endpoint  string
	apiKey    string
	logger    *zap.Logger
	Transport mcp.Transport

	session *mcp.ClientSession
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		endpoint: cfg.MCP.Endpoint,
		apiKey:   cfg.MCP.APIKey,
		logger:   logger.Named("mcp"),
	}
}

// Connect performs the MCP initialize handshake. The SDK handles the
// protocol exchange; we only supply the transport.
func (c *Client) Connect(ctx context.Context) error {
	transport := c.Transport
	if transport == nil {
		if c.apiKey == "" {
			return errors.New("missing MCP API key; set mcp.api_key in the config file or the ZAPCTL_MCP_API_KEY environment variable")
		}
		transport = &mcp.StreamableClientTransport{
			Endpoint: c.endpoint,
			HTTPClient: &http.Client{
				Transport: &bearerTransport{key: c.apiKey},
			},
		}
	}

	session, err := mcp.NewClient(impl, nil).Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp connect to %s: %w", c.endpoint, err)
	}
	c.session = session
	c.logger.Debug("mcp session established", zap.String("endpoint", c.endpoint))
	return nil
}

// ListActions returns the full tool catalog, following pagination.
func (c *Client) ListActions(ctx context.Context) ([]Action, error) {
	if c.session == nil {
		return nil, errors.New("mcp client not connected")
	}

	var actions []Action
	var cursor string
	for {
		res, err := c.session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("listing mcp tools: %w", err)
		}
		for _, tool := range res.Tools {
			a := Action{Name: tool.Name, Description: tool.Description}
			if tool.InputSchema != nil {
				if schema, err := json.Marshal(tool.InputSchema); err == nil {
					a.InputSchema = schema
				}
			}
			actions = append(actions, a)
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	return actions, nil
}

// Invoke calls one action by name. A tool-level error comes back in the
// result, not as a Go error; protocol failures are errors.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (*InvokeResult, error) {
	if c.session == nil {
		return nil, errors.New("mcp client not connected")
	}

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking %s: %w", name, err)
	}

	out := &InvokeResult{IsError: res.IsError, Structured: res.StructuredContent}
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if text := strings.TrimSpace(tc.Text); text != "" {
				out.Content = append(out.Content, text)
			}
		}
	}
	return out, nil
}

func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// bearerTransport attaches the API key to every request.
type bearerTransport struct {
	key string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.key)
	return http.DefaultTransport.RoundTrip(clone)
}
