package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	"github.com/tanpawarit/chative-gateway/agent/tool"
)

const (
	MaxOutputChars  = 4000
	truncatedMarker = "\n...[truncated]..."
)

// Caller routes calls to per-service clients.
type Caller struct {
	clients map[string]*Client
}

var _ contractx.RemoteCaller = (*Caller)(nil)

// NewCaller builds one client per enabled service in m.
func NewCaller(m *Manifest, httpClient *http.Client) (*Caller, error) {
	c := &Caller{clients: map[string]*Client{}}
	for _, svc := range m.Enabled() {
		client, err := NewClient(svc.Name, svc.URL, WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		c.clients[svc.Name] = client
	}
	return c, nil
}

func (c *Caller) Clients() []*Client {
	out := make([]*Client, 0, len(c.clients))
	for _, client := range c.clients {
		out = append(out, client)
	}
	return out
}

func (c *Caller) CallTool(ctx context.Context, service, name string, args map[string]any) (contractx.RemoteResult, error) {
	client, ok := c.clients[service]
	if !ok {
		return contractx.RemoteResult{}, fmt.Errorf("%w: service %s is not configured", contractx.ErrProviderUnavailable, service)
	}
	return client.CallTool(ctx, name, args)
}

// Tools turns the enabled services of m into tool definitions that call
// through caller. defaultTimeout applies to services without their own.
func Tools(m *Manifest, caller contractx.RemoteCaller, defaultTimeout time.Duration) []tool.Definition {
	var defs []tool.Definition
	for _, svc := range m.Enabled() {
		timeout := svc.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		for _, spec := range svc.Tools {
			defs = append(defs, definition(svc.Name, timeout, spec, caller))
		}
	}
	return defs
}

func definition(service string, timeout time.Duration, spec ToolSpec, caller contractx.RemoteCaller) tool.Definition {
	params := make([]tool.Param, 0, len(spec.Params))
	for _, p := range spec.Params {
		params = append(params, tool.Param{
			Name:        p.Name,
			Type:        tool.ParamType(p.Type),
			Required:    p.Required,
			Description: p.Description,
		})
	}

	action := spec.Action
	if action == "" {
		action = spec.Name
	}

	name := spec.Name
	return tool.Definition{
		Name:        name,
		Description: spec.Description,
		Action:      action,
		Params:      params,
		Provider:    tool.Provider{Kind: tool.ProviderRemote, Service: service},
		Timeout:     timeout,
		Handler: func(ctx context.Context, args tool.Args) (tool.Outcome, error) {
			res, err := caller.CallTool(ctx, service, name, args)
			if err != nil {
				return tool.Outcome{}, err
			}
			return tool.Outcome{
				Message: Truncate(res.Text, MaxOutputChars),
				Data:    res.Structured,
			}, nil
		},
	}
}

// Truncate caps text at limit runes and appends a marker when it cut.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncatedMarker
}
