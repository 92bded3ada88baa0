package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

const (
	maxResponseSizeBytes = 2 << 20
	clientName           = "chative-gateway"
)

var errSessionExpired = errors.New("remote session expired")

// ClientOption customizes Client.
type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client speaks MCP JSON-RPC over HTTP POST to one service. It performs the
// initialize handshake lazily and re-initializes once when the service no
// longer knows the session.
type Client struct {
	service    string
	endpoint   string
	httpClient *http.Client

	mu          sync.Mutex
	initialized bool
	sessionID   string
}

func NewClient(service, endpoint string, opts ...ClientOption) (*Client, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return nil, errors.New("remote service name is required")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("remote service %s has no url", service)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid url for remote service %s: %w", service, err)
	}

	c := &Client{
		service:    service,
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Service() string {
	return c.service
}

func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var out ListToolsResult
	if err := c.call(ctx, "tools/list", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// CallTool invokes tool and returns its text and structured content. A result
// flagged isError becomes a *contract.RemoteError.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]any) (contractx.RemoteResult, error) {
	var out CallToolResult
	if err := c.call(ctx, "tools/call", CallToolParams{Name: tool, Arguments: args}, &out); err != nil {
		return contractx.RemoteResult{}, err
	}

	var texts []string
	for _, item := range out.Content {
		if item.Type == "text" {
			texts = append(texts, item.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if out.IsError {
		return contractx.RemoteResult{}, decodeRemoteError(text)
	}
	if len(texts) == 0 && len(out.StructuredContent) == 0 {
		return contractx.RemoteResult{}, fmt.Errorf("%w: %s returned no text or structured content", contractx.ErrProviderUnavailable, c.service)
	}
	return contractx.RemoteResult{Text: text, Structured: out.StructuredContent}, nil
}

func decodeRemoteError(text string) error {
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload.Message != "" {
		return &contractx.RemoteError{Kind: payload.ErrorKind, Message: payload.Message}
	}
	if strings.TrimSpace(text) == "" {
		text = "the service reported an error"
	}
	return &contractx.RemoteError{Message: text}
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	sessionID, err := c.session(ctx)
	if err != nil {
		return err
	}

	_, err = c.post(ctx, sessionID, method, params, out)
	if !errors.Is(err, errSessionExpired) {
		return err
	}

	log.Info().Str("service", c.service).Msg("remote session expired, re-initializing")
	c.resetSession(sessionID)
	if sessionID, err = c.session(ctx); err != nil {
		return err
	}
	_, err = c.post(ctx, sessionID, method, params, out)
	if errors.Is(err, errSessionExpired) {
		return fmt.Errorf("%w: %s rejected a fresh session", contractx.ErrProviderUnavailable, c.service)
	}
	return err
}

func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.sessionID, nil
	}

	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": clientName, "version": "1.0.0"},
	}
	var result map[string]any
	header, err := c.post(ctx, "", "initialize", params, &result)
	if err != nil {
		return "", err
	}
	sessionID := header.Get(SessionHeader)

	if _, err := c.post(ctx, sessionID, "notifications/initialized", nil, nil); err != nil {
		return "", err
	}
	c.sessionID = sessionID
	c.initialized = true
	return sessionID, nil
}

func (c *Client) resetSession(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == stale {
		c.sessionID = ""
		c.initialized = false
	}
}

// post sends one JSON-RPC message. A nil out marks a notification.
func (c *Client) post(ctx context.Context, sessionID, method string, params any, out any) (http.Header, error) {
	req := JSONRPCRequest{JSONRPC: "2.0", Method: method}
	var id string
	if out != nil {
		id = uuid.NewString()
		req.ID = json.RawMessage(`"` + id + `"`)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
		req.Params = raw
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		httpReq.Header.Set(SessionHeader, sessionID)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", contractx.ErrProviderUnavailable, c.service, method, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("service", c.service).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("remote call")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", contractx.ErrProviderUnavailable, c.service, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && sessionID != "":
		return nil, errSessionExpired
	case out == nil && (resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent):
		return resp.Header, nil
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("%w: %s http status=%d body=%s", contractx.ErrProviderUnavailable, c.service, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		if raw, err = firstEventData(raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", contractx.ErrProviderUnavailable, c.service, err)
		}
	}

	var parsed JSONRPCResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %w", contractx.ErrProviderUnavailable, c.service, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", contractx.ErrProviderUnavailable, c.service, method, parsed.Error)
	}
	if len(parsed.Result) == 0 {
		return nil, fmt.Errorf("%w: %s %s returned no result", contractx.ErrProviderUnavailable, c.service, method)
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return nil, fmt.Errorf("%w: %s %s result does not match schema: %w", contractx.ErrProviderUnavailable, c.service, method, err)
	}
	return resp.Header, nil
}

// firstEventData extracts the data of the first event in an SSE body.
func firstEventData(raw []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseSizeBytes)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "" && len(data) > 0:
			return []byte(strings.Join(data, "\n")), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("event stream carried no data")
	}
	return []byte(strings.Join(data, "\n")), nil
}
