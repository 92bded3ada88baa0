package intent

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tanpawarit/chative-gateway/agent/remote"
	"github.com/tanpawarit/chative-gateway/agent/tool"
)

func newTestResolver(t *testing.T, withRemote bool) *Resolver {
	t.Helper()

	groups := [][]tool.Definition{tool.ProductTools(nil)}
	if withRemote {
		m, err := remote.LoadManifest("")
		if err != nil {
			t.Fatalf("LoadManifest() error = %v", err)
		}
		groups = append(groups, remote.Tools(m, nil, time.Second))
	}
	reg, err := tool.NewRegistry(groups...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewResolver(reg)
}

func TestResolveMatches(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, true)

	tests := []struct {
		input    string
		tool     string
		captures map[string]string
	}{
		{
			input:    "add product P1 named Widget in Tools with quantity 5",
			tool:     tool.ToolCreateProduct,
			captures: map[string]string{"id": "P1", "name": "Widget", "category": "Tools", "quantity": "5"},
		},
		{
			input:    "Add product PROD999 named Ultra Fiber in Internet Services with quantity 100.",
			tool:     tool.ToolCreateProduct,
			captures: map[string]string{"id": "PROD999", "name": "Ultra Fiber", "category": "Internet Services", "quantity": "100"},
		},
		{
			input:    "create product p2 named Gadget in Tools",
			tool:     tool.ToolCreateProduct,
			captures: map[string]string{"id": "P2", "name": "Gadget", "category": "Tools"},
		},
		{
			input:    "show all products",
			tool:     tool.ToolListProducts,
			captures: map[string]string{},
		},
		{
			input:    "list products in Digital TV",
			tool:     tool.ToolListProducts,
			captures: map[string]string{"category": "Digital TV"},
		},
		{
			input:    "search for fiber products",
			tool:     tool.ToolSearchProducts,
			captures: map[string]string{"term": "fiber"},
		},
		{
			input:    "update product SLT001 quantity to 600",
			tool:     tool.ToolUpdateProduct,
			captures: map[string]string{"id": "SLT001", "quantity": "600"},
		},
		{
			input:    "rename product slt002 to PeoTV Max",
			tool:     tool.ToolUpdateProduct,
			captures: map[string]string{"id": "SLT002", "name": "PeoTV Max"},
		},
		{
			input:    "increase product SLT003 quantity by 50",
			tool:     tool.ToolAdjustQuantity,
			captures: map[string]string{"direction": "increase", "id": "SLT003", "amount": "50"},
		},
		{
			input:    "remove 5 units from SLT001",
			tool:     tool.ToolAdjustQuantity,
			captures: map[string]string{"direction": "remove", "amount": "5", "id": "SLT001"},
		},
		{
			input:    "Delete product slt006!",
			tool:     tool.ToolDeleteProduct,
			captures: map[string]string{"id": "SLT006"},
		},
		{
			input:    "show product SLT001",
			tool:     tool.ToolGetProduct,
			captures: map[string]string{"id": "SLT001"},
		},
		{
			input:    "get leave balance for e123",
			tool:     remote.ToolGetLeaveBalance,
			captures: map[string]string{"employee_id": "E123"},
		},
		{
			input:    "apply for loan for E9 of 50,000 for 12 months",
			tool:     remote.ToolApplyForLoan,
			captures: map[string]string{"employee_id": "E9", "amount": "50000", "months": "12"},
		},
		{
			input:    "apply leave for E1 from 2024-03-01 for 2 days",
			tool:     remote.ToolApplyLeave,
			captures: map[string]string{"employee_id": "E1", "start_date": "2024-03-01", "days": "2"},
		},
		{
			input:    "search hr policies about remote work",
			tool:     remote.ToolSearchHRPolicies,
			captures: map[string]string{"query": "remote work"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			res := r.Resolve(tt.input)
			if res.NoMatch() {
				t.Fatalf("Resolve(%q) = no match, want %s", tt.input, tt.tool)
			}
			got := res.Candidates[0]
			if got.Tool != tt.tool {
				t.Fatalf("Resolve(%q) tool = %s, want %s", tt.input, got.Tool, tt.tool)
			}
			if !reflect.DeepEqual(got.RawCaptures, tt.captures) {
				t.Fatalf("Resolve(%q) captures = %v, want %v", tt.input, got.RawCaptures, tt.captures)
			}
			if got.Confidence <= 0 {
				t.Fatalf("Confidence = %d, want > 0", got.Confidence)
			}
		})
	}
}

func TestResolveNoMatchKeepsText(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, true)
	for _, input := range []string{"what's the weather today", "", "   ", "product"} {
		res := r.Resolve(input)
		if !res.NoMatch() {
			t.Fatalf("Resolve(%q) = %+v, want no match", input, res.Candidates)
		}
		if res.Text != input {
			t.Fatalf("Text = %q, want %q", res.Text, input)
		}
		if res.Suggestion == "" {
			t.Fatalf("Resolve(%q) suggestion is empty", input)
		}
	}
}

func TestResolveNonNumericQuantityIsNotAMatch(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, false)
	for _, input := range []string{
		"update product SLT001 quantity to lots",
		"add product P1 named Widget in Tools with quantity many",
	} {
		res := r.Resolve(input)
		if !res.NoMatch() {
			t.Fatalf("Resolve(%q) = %+v, want no match", input, res.Candidates)
		}
	}
}

func TestResolveDemotedCandidateFallsThrough(t *testing.T) {
	t.Parallel()

	reg, err := tool.NewRegistry(tool.ProductTools(nil))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	strict := NewPatternRecognizer(tool.ToolUpdateProduct, []string{`set (?P<id>\S+) to (?P<quantity>\S+)`}, nil, "id")
	loose := NewPatternRecognizer(tool.ToolUpdateProduct, []string{`set (?P<id>\S+) to (?P<name>.+)`}, nil, "id")
	r := NewResolver(reg, strict, loose)

	res := r.Resolve("set P1 to Blue")
	if res.NoMatch() {
		t.Fatal("Resolve() = no match, want fallthrough to the name recognizer")
	}
	if got := res.Candidates[0].RawCaptures; got["name"] != "Blue" || got["quantity"] != "" {
		t.Fatalf("captures = %v", got)
	}

	res = r.Resolve("set P1 to 7")
	if got := res.Candidates[0].RawCaptures; got["quantity"] != "7" {
		t.Fatalf("captures = %v, want quantity 7", got)
	}
}

func TestResolveDoesNotShadowSpecificCommands(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, true)
	notTool := map[string]string{
		"add product P1 named Widget in Tools with quantity 5": tool.ToolSearchProducts,
		"show all products":                                    tool.ToolGetProduct,
		"show product SLT001":                                  tool.ToolListProducts,
		"remove 5 units from SLT001":                           tool.ToolDeleteProduct,
		"find product SLT002":                                  tool.ToolSearchProducts,
		"search hr policies about leave":                       tool.ToolSearchProducts,
	}
	for input, forbidden := range notTool {
		res := r.Resolve(input)
		if !res.NoMatch() && res.Candidates[0].Tool == forbidden {
			t.Fatalf("Resolve(%q) was captured by %s", input, forbidden)
		}
	}
}

func TestResolverSkipsUnregisteredTools(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, false)
	res := r.Resolve("get leave balance for E123")
	if !res.NoMatch() {
		t.Fatalf("Resolve() = %+v, want no match without the leave service", res.Candidates)
	}
	for _, ex := range r.Examples() {
		if strings.Contains(ex, "leave") {
			t.Fatalf("Examples() includes unregistered tool example %q", ex)
		}
	}
}

func TestResolvedCandidateValidatesAgainstSchema(t *testing.T) {
	t.Parallel()

	reg, err := tool.NewRegistry(tool.ProductTools(nil))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	r := NewResolver(reg)

	res := r.Resolve("add product P7 named Lamp")
	if res.NoMatch() {
		t.Fatal("Resolve() = no match")
	}
	def, _ := reg.Lookup(res.Candidates[0].Tool)
	if _, err := tool.Validate(def, res.Candidates[0].Request().Args); err == nil || !strings.Contains(err.Error(), "category") {
		t.Fatalf("Validate() error = %v, want missing category", err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  Show   all products!! ":      "Show all products",
		"what's the weather?":           "whats the weather",
		"apply for loan of 1,000.":      "apply for loan of 1000",
		"version 2.5 please.":           "version 2.5 please",
		"\"delete\" product: SLT001 ;": "delete product SLT001",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
