package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

func newSeededGateway(t *testing.T, opts ...GatewayOption) (*Gateway, *storex.JSONFileStore) {
	t.Helper()

	st, err := storex.Open(filepath.Join(t.TempDir(), "products.json"), storex.WithSeed(storex.DefaultSeed()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	reg, err := NewRegistry(ProductTools(st))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	gw, err := NewGateway(reg, opts...)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return gw, st
}

func executeOne(t *testing.T, gw *Gateway, ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	t.Helper()

	results := gw.Execute(ctx, []contractx.ToolRequest{{Tool: tool, Args: args}})
	if len(results) != 1 {
		t.Fatalf("Execute() returned %d results, want 1", len(results))
	}
	return results[0]
}

func TestGatewayUpdateProductQuantity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, st := newSeededGateway(t)

	res := executeOne(t, gw, ctx, ToolUpdateProduct, map[string]any{"id": "SLT001", "quantity": "600"})
	if !res.Success() {
		t.Fatalf("update failed: %s", res.Error)
	}
	if res.Action != "update_product" {
		t.Fatalf("Action = %q, want update_product", res.Action)
	}
	if len(res.Records) != 1 || res.Records[0].Quantity != 600 {
		t.Fatalf("Records = %+v", res.Records)
	}

	got, err := st.Get(ctx, "SLT001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Quantity != 600 {
		t.Fatalf("Quantity = %d, want 600", got.Quantity)
	}
}

func TestGatewayMissingFieldNamesField(t *testing.T) {
	t.Parallel()

	gw, _ := newSeededGateway(t)
	res := executeOne(t, gw, context.Background(), ToolCreateProduct, map[string]any{"id": "P1", "name": "Widget"})

	if res.Success() {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != contractx.KindValidation {
		t.Fatalf("ErrorKind = %q, want %q", res.ErrorKind, contractx.KindValidation)
	}
	if !strings.Contains(res.Error, "category") {
		t.Fatalf("Error = %q, want it to name category", res.Error)
	}
}

func TestGatewayRejectsNonNumericQuantity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, st := newSeededGateway(t)
	res := executeOne(t, gw, ctx, ToolUpdateProduct, map[string]any{"id": "SLT001", "quantity": "lots"})

	if res.ErrorKind != contractx.KindValidation || !strings.Contains(res.Error, "quantity") {
		t.Fatalf("result = %+v", res)
	}
	got, _ := st.Get(ctx, "SLT001")
	if got.Quantity != 500 {
		t.Fatalf("Quantity = %d, want 500", got.Quantity)
	}
}

func TestGatewayDuplicateAndNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, _ := newSeededGateway(t)

	dup := executeOne(t, gw, ctx, ToolCreateProduct, map[string]any{
		"id": "SLT001", "name": "Copy", "category": "Internet Services", "quantity": 1,
	})
	if dup.ErrorKind != contractx.KindDuplicateKey {
		t.Fatalf("ErrorKind = %q, want duplicate_key", dup.ErrorKind)
	}

	missing := executeOne(t, gw, ctx, ToolDeleteProduct, map[string]any{"id": "NOPE1"})
	if missing.ErrorKind != contractx.KindNotFound {
		t.Fatalf("ErrorKind = %q, want not_found", missing.ErrorKind)
	}
	if !strings.Contains(missing.Error, "NOPE1") {
		t.Fatalf("Error = %q", missing.Error)
	}
}

func TestGatewayUnknownTool(t *testing.T) {
	t.Parallel()

	gw, _ := newSeededGateway(t)
	res := executeOne(t, gw, context.Background(), "launch_rocket", nil)
	if res.ErrorKind != contractx.KindToolNotFound {
		t.Fatalf("ErrorKind = %q, want tool_not_found", res.ErrorKind)
	}
}

func TestGatewayReadOnlyToolsNeverMutate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, st := newSeededGateway(t)
	before, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}

	inputs := []contractx.ToolRequest{
		{Tool: ToolListProducts, Args: map[string]any{"category": 42, "search": []int{1}}},
		{Tool: ToolGetProduct, Args: map[string]any{"id": ""}},
		{Tool: ToolGetProduct, Args: map[string]any{"id": "SLT001", "quantity": -5}},
		{Tool: ToolSearchProducts, Args: map[string]any{"term": "   "}},
		{Tool: ToolSearchProducts, Args: map[string]any{"term": "fiber", "name": "x"}},
	}
	gw.Execute(ctx, inputs)

	after, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("read-only tools modified the data file")
	}
}

func TestGatewayAdjustQuantity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, _ := newSeededGateway(t)

	res := executeOne(t, gw, ctx, ToolAdjustQuantity, map[string]any{"id": "slt005", "direction": "decrease", "amount": "50"})
	if !res.Success() || res.Records[0].Quantity != 100 {
		t.Fatalf("result = %+v", res)
	}

	res = executeOne(t, gw, ctx, ToolAdjustQuantity, map[string]any{"id": "SLT005", "direction": "decrease", "amount": 1000})
	if res.Success() || res.ErrorKind != contractx.KindValidation {
		t.Fatalf("result = %+v, want validation failure", res)
	}
}

func TestGatewayLocalMutationSurvivesCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw, st := newSeededGateway(t)
	res := executeOne(t, gw, ctx, ToolCreateProduct, map[string]any{
		"id": "P9", "name": "Widget", "category": "Tools", "quantity": 1,
	})
	if !res.Success() {
		t.Fatalf("create failed: %s", res.Error)
	}
	if _, err := st.Get(context.Background(), "P9"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestGatewayRemoteTimeout(t *testing.T) {
	t.Parallel()

	slow := Definition{
		Name:     "get_leave_balance",
		Action:   "get_leave_balance",
		Provider: Provider{Kind: ProviderRemote, Service: "leave"},
		Params:   []Param{{Name: "employee_id", Type: TypeString, Required: true}},
		Handler: func(ctx context.Context, _ Args) (Outcome, error) {
			<-ctx.Done()
			return Outcome{}, ctx.Err()
		},
	}
	reg, err := NewRegistry([]Definition{slow})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	gw, err := NewGateway(reg, WithRemoteTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	res := executeOne(t, gw, context.Background(), "get_leave_balance", map[string]any{"employee_id": "E123"})
	if res.ErrorKind != contractx.KindProviderUnavailable {
		t.Fatalf("ErrorKind = %q, want provider_unavailable", res.ErrorKind)
	}
	if !strings.Contains(res.Error, "leave") {
		t.Fatalf("Error = %q", res.Error)
	}
}

func TestGatewayRecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	boom := Definition{
		Name:     "boom",
		Provider: Provider{Kind: ProviderLocal},
		Handler: func(context.Context, Args) (Outcome, error) {
			panic("kaboom")
		},
	}
	reg, err := NewRegistry([]Definition{boom})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	gw, _ := NewGateway(reg)

	res := executeOne(t, gw, context.Background(), "boom", nil)
	if res.Success() || res.ErrorKind != contractx.KindInternal {
		t.Fatalf("result = %+v", res)
	}
}

type recordingAlerter struct {
	mu   sync.Mutex
	errs []error
}

func (a *recordingAlerter) Escalate(_ context.Context, err error, _ map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, err)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []contractx.AuditEntry
}

func (a *recordingAudit) Record(e contractx.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

type failingStore struct {
	storex.Store
	err error
}

func (f failingStore) Create(context.Context, storex.Record) (storex.Record, error) {
	return storex.Record{}, f.err
}

func TestGatewayEscalatesIrrecoverableStorageFault(t *testing.T) {
	t.Parallel()

	alerter := &recordingAlerter{}
	audit := &recordingAudit{}
	st := failingStore{err: fmt.Errorf("%w: create temp file: %w", storex.ErrStorageIO, syscall.EROFS)}

	reg, err := NewRegistry(ProductTools(st))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	gw, _ := NewGateway(reg, WithAlerter(alerter), WithAuditSink(audit))

	res := executeOne(t, gw, context.Background(), ToolCreateProduct, map[string]any{
		"id": "P1", "name": "Widget", "category": "Tools",
	})
	if res.ErrorKind != contractx.KindStorageIO {
		t.Fatalf("ErrorKind = %q, want storage_io", res.ErrorKind)
	}
	if res.Error == "" {
		t.Fatal("expected a user-facing error message")
	}
	if len(alerter.errs) != 1 || !errors.Is(alerter.errs[0], syscall.EROFS) {
		t.Fatalf("alerts = %v", alerter.errs)
	}
	if len(audit.entries) != 1 || audit.entries[0].Success {
		t.Fatalf("audit entries = %+v", audit.entries)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	def := Definition{Name: "x", Handler: func(context.Context, Args) (Outcome, error) { return Outcome{}, nil }}
	if _, err := NewRegistry([]Definition{def}, []Definition{def}); err == nil {
		t.Fatal("NewRegistry() error = nil, want duplicate error")
	}
}

func TestValidateCoercesAndDropsUnknown(t *testing.T) {
	t.Parallel()

	def := Definition{
		Name: "t",
		Params: []Param{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "quantity", Type: TypeInteger},
		},
	}
	args, err := Validate(def, map[string]any{"id": "  P1 ", "quantity": float64(7), "extra": "x"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if args.String("id") != "P1" || args.Int("quantity") != 7 {
		t.Fatalf("args = %v", args)
	}
	if _, ok := args["extra"]; ok {
		t.Fatalf("unknown argument kept: %v", args)
	}

	_, err = Validate(def, map[string]any{"id": "P1", "quantity": 2.5})
	var fieldErr *contractx.FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "quantity" {
		t.Fatalf("Validate() error = %v, want FieldError(quantity)", err)
	}
}
