package remote

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ToolGetLeaveBalance  = "get_leave_balance"
	ToolGetLeaveHistory  = "get_leave_history"
	ToolApplyLeave       = "apply_leave"
	ToolGetLoanDetails   = "get_loan_details"
	ToolApplyForLoan     = "apply_for_loan"
	ToolSearchHRPolicies = "search_hr_policies"
)

//go:embed manifest.yaml
var defaultManifest []byte

type Manifest struct {
	Services []ServiceSpec `yaml:"services"`
}

type ServiceSpec struct {
	Name       string     `yaml:"name"`
	URL        string     `yaml:"url"`
	TimeoutStr string     `yaml:"timeout"`
	Tools      []ToolSpec `yaml:"tools"`

	Timeout time.Duration `yaml:"-"`
}

type ToolSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Action      string      `yaml:"action"`
	Params      []ParamSpec `yaml:"params"`
}

type ParamSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// LoadManifest reads the manifest at path, or the embedded default when path
// is empty.
func LoadManifest(path string) (*Manifest, error) {
	data := defaultManifest
	if p := strings.TrimSpace(path); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading tools manifest: %w", err)
		}
		data = raw
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &m); err != nil {
		return nil, fmt.Errorf("parsing tools manifest: %w", err)
	}
	if err := m.normalize(); err != nil {
		return nil, fmt.Errorf("validating tools manifest: %w", err)
	}
	return &m, nil
}

// Enabled returns the services that have a url.
func (m *Manifest) Enabled() []ServiceSpec {
	var out []ServiceSpec
	for _, svc := range m.Services {
		if svc.URL != "" {
			out = append(out, svc)
		}
	}
	return out
}

func (m *Manifest) normalize() error {
	seenService := map[string]bool{}
	seenTool := map[string]bool{}
	for i := range m.Services {
		svc := &m.Services[i]
		svc.Name = strings.TrimSpace(svc.Name)
		svc.URL = strings.TrimSpace(svc.URL)
		if svc.Name == "" {
			return errors.New("service name is required")
		}
		if seenService[svc.Name] {
			return fmt.Errorf("service %q declared twice", svc.Name)
		}
		seenService[svc.Name] = true

		if svc.TimeoutStr != "" {
			d, err := time.ParseDuration(svc.TimeoutStr)
			if err != nil {
				return fmt.Errorf("service %s timeout: %w", svc.Name, err)
			}
			svc.Timeout = d
		}

		for _, t := range svc.Tools {
			if t.Name == "" {
				return fmt.Errorf("service %s has a tool without a name", svc.Name)
			}
			if seenTool[t.Name] {
				return fmt.Errorf("tool %q declared twice", t.Name)
			}
			seenTool[t.Name] = true
			for _, p := range t.Params {
				if p.Type != "string" && p.Type != "integer" {
					return fmt.Errorf("tool %s param %s: unsupported type %q", t.Name, p.Name, p.Type)
				}
			}
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := envVarPattern.FindStringSubmatch(match)[1]
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		if v, ok := os.LookupEnv(name); ok && (v != "" || !hasDefault) {
			return v
		}
		return fallback
	})
}
