package tool

import (
	"context"
	"reflect"
	"testing"
)

func noopHandler(context.Context, Args) (Outcome, error) { return Outcome{}, nil }

func TestProductToolsReadOnlyFlags(t *testing.T) {
	t.Parallel()

	defs := ProductTools(nil)
	if len(defs) != 7 {
		t.Fatalf("expected 7 product tools, got %d", len(defs))
	}
	readOnly := map[string]bool{
		ToolListProducts:   true,
		ToolGetProduct:     true,
		ToolSearchProducts: true,
	}
	for _, def := range defs {
		if def.ReadOnly != readOnly[def.Name] {
			t.Fatalf("%s ReadOnly = %v", def.Name, def.ReadOnly)
		}
		if def.Provider.Kind != ProviderLocal {
			t.Fatalf("%s provider = %s", def.Name, def.Provider)
		}
	}
}

func TestInputSchemaListsRequired(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(ProductTools(nil))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	def, ok := reg.Lookup(ToolCreateProduct)
	if !ok {
		t.Fatalf("Lookup(%q) not found", ToolCreateProduct)
	}

	schema := def.InputSchema()
	if schema["type"] != "object" {
		t.Fatalf("unexpected schema type: %v", schema["type"])
	}
	required, _ := schema["required"].([]string)
	if !reflect.DeepEqual(required, []string{"id", "name", "category"}) {
		t.Fatalf("unexpected required: %v", required)
	}
	props, _ := schema["properties"].(map[string]any)
	quantity, _ := props["quantity"].(map[string]any)
	if quantity["type"] != "integer" {
		t.Fatalf("unexpected quantity property: %v", quantity)
	}

	list, _ := reg.Lookup(ToolListProducts)
	if _, ok := list.InputSchema()["required"]; ok {
		t.Fatal("list schema must not declare required fields")
	}
}

func TestRegistryPreservesOrder(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		[]Definition{{Name: "b", Handler: noopHandler}},
		[]Definition{{Name: "a", Handler: noopHandler}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defs := reg.Definitions()
	if len(defs) != 2 || defs[0].Name != "b" || defs[1].Name != "a" {
		t.Fatalf("unexpected definitions: %+v", defs)
	}
	if reg.Has("c") {
		t.Fatal("Has(c) = true")
	}

	var nilReg *Registry
	if _, ok := nilReg.Lookup("a"); ok {
		t.Fatal("nil registry lookup succeeded")
	}
}

func TestNewRegistryRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	cases := map[string]Definition{
		"no name":        {Handler: noopHandler},
		"no handler":     {Name: "x"},
		"remote service": {Name: "x", Handler: noopHandler, Provider: Provider{Kind: ProviderRemote}},
		"duplicate param": {
			Name:    "x",
			Handler: noopHandler,
			Params:  []Param{{Name: "id", Type: TypeString}, {Name: "id", Type: TypeString}},
		},
		"bad type": {
			Name:    "x",
			Handler: noopHandler,
			Params:  []Param{{Name: "n", Type: "float"}},
		},
	}
	for name, def := range cases {
		if _, err := NewRegistry([]Definition{def}); err == nil {
			t.Fatalf("%s: NewRegistry() error = nil", name)
		}
	}
}

func TestProviderString(t *testing.T) {
	t.Parallel()

	if got := (Provider{Kind: ProviderLocal}).String(); got != "local" {
		t.Fatalf("local provider = %q", got)
	}
	if got := (Provider{Kind: ProviderRemote, Service: "leave"}).String(); got != "remote:leave" {
		t.Fatalf("remote provider = %q", got)
	}
}
