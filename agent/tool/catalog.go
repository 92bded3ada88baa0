package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
)

type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

type ProviderKind string

const (
	ProviderLocal  ProviderKind = "local"
	ProviderRemote ProviderKind = "remote"
)

// Provider names who executes a tool. Service is the remote service handle
// and is empty for local tools.
type Provider struct {
	Kind    ProviderKind
	Service string
}

func (p Provider) String() string {
	if p.Kind == ProviderRemote {
		return "remote:" + p.Service
	}
	return string(ProviderLocal)
}

// Outcome is what a handler produces on success.
type Outcome struct {
	Message string
	Records []storex.Record
	Data    json.RawMessage
}

type Handler func(ctx context.Context, args Args) (Outcome, error)

// Definition describes one tool. Params are ordered; the order is used when
// listing the schema to clients.
type Definition struct {
	Name        string
	Description string
	Action      string
	Params      []Param
	Provider    Provider
	ReadOnly    bool
	Timeout     time.Duration
	Handler     Handler
}

func (d Definition) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// InputSchema renders Params as a JSON Schema object.
func (d Definition) InputSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Registry is built once at startup and never mutated afterwards.
type Registry struct {
	defs  []Definition
	index map[string]int
}

func NewRegistry(groups ...[]Definition) (*Registry, error) {
	r := &Registry{index: map[string]int{}}
	for _, group := range groups {
		for _, def := range group {
			if err := def.validate(); err != nil {
				return nil, err
			}
			if _, exists := r.index[def.Name]; exists {
				return nil, fmt.Errorf("tool %q registered twice", def.Name)
			}
			r.index[def.Name] = len(r.defs)
			r.defs = append(r.defs, def)
		}
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

func (r *Registry) Definitions() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (d Definition) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("tool name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}
	if d.Provider.Kind == ProviderRemote && strings.TrimSpace(d.Provider.Service) == "" {
		return fmt.Errorf("remote tool %q has no service", d.Name)
	}
	seen := map[string]bool{}
	for _, p := range d.Params {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("tool %q has an empty or duplicate parameter %q", d.Name, p.Name)
		}
		if p.Type != TypeString && p.Type != TypeInteger {
			return fmt.Errorf("tool %q parameter %q has unsupported type %q", d.Name, p.Name, p.Type)
		}
		seen[p.Name] = true
	}
	return nil
}
