package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

const (
	ToolListProducts   = "list_products"
	ToolGetProduct     = "get_product"
	ToolSearchProducts = "search_products"
	ToolCreateProduct  = "create_product"
	ToolUpdateProduct  = "update_product"
	ToolAdjustQuantity = "adjust_product_quantity"
	ToolDeleteProduct  = "delete_product"
)

// ProductTools builds the local CRUD tools over st. Only create, update,
// adjust and delete call mutating store methods.
func ProductTools(st storex.Store) []Definition {
	p := productHandlers{store: st}
	local := Provider{Kind: ProviderLocal}

	return []Definition{
		{
			Name:        ToolListProducts,
			Description: "List products, optionally filtered by category or a search term.",
			Action:      "list_products",
			Params: []Param{
				{Name: "category", Type: TypeString, Description: "Category to filter by"},
				{Name: "search", Type: TypeString, Description: "Term matched against id, name or category"},
			},
			Provider: local,
			ReadOnly: true,
			Handler:  p.list,
		},
		{
			Name:        ToolGetProduct,
			Description: "Get one product by id.",
			Action:      "get_product",
			Params: []Param{
				{Name: "id", Type: TypeString, Required: true, Description: "Product id"},
			},
			Provider: local,
			ReadOnly: true,
			Handler:  p.get,
		},
		{
			Name:        ToolSearchProducts,
			Description: "Search products by id, name or category.",
			Action:      "search_products",
			Params: []Param{
				{Name: "term", Type: TypeString, Required: true, Description: "Search term"},
			},
			Provider: local,
			ReadOnly: true,
			Handler:  p.search,
		},
		{
			Name:        ToolCreateProduct,
			Description: "Create a product with a caller-assigned id.",
			Action:      "create_product",
			Params: []Param{
				{Name: "id", Type: TypeString, Required: true, Description: "Unique product id"},
				{Name: "name", Type: TypeString, Required: true, Description: "Product name"},
				{Name: "category", Type: TypeString, Required: true, Description: "Product category"},
				{Name: "quantity", Type: TypeInteger, Description: "Units in stock, defaults to 0"},
			},
			Provider: local,
			Handler:  p.create,
		},
		{
			Name:        ToolUpdateProduct,
			Description: "Update the name, category or quantity of a product.",
			Action:      "update_product",
			Params: []Param{
				{Name: "id", Type: TypeString, Required: true, Description: "Product id"},
				{Name: "name", Type: TypeString, Description: "New name"},
				{Name: "category", Type: TypeString, Description: "New category"},
				{Name: "quantity", Type: TypeInteger, Description: "New quantity"},
			},
			Provider: local,
			Handler:  p.update,
		},
		{
			Name:        ToolAdjustQuantity,
			Description: "Increase or decrease the quantity of a product by an amount.",
			Action:      "adjust_product_quantity",
			Params: []Param{
				{Name: "id", Type: TypeString, Required: true, Description: "Product id"},
				{Name: "direction", Type: TypeString, Required: true, Description: "increase or decrease"},
				{Name: "amount", Type: TypeInteger, Required: true, Description: "Units to add or remove"},
			},
			Provider: local,
			Handler:  p.adjust,
		},
		{
			Name:        ToolDeleteProduct,
			Description: "Delete a product by id.",
			Action:      "delete_product",
			Params: []Param{
				{Name: "id", Type: TypeString, Required: true, Description: "Product id"},
			},
			Provider: local,
			Handler:  p.delete,
		},
	}
}

type productHandlers struct {
	store storex.Store
}

func (p productHandlers) list(ctx context.Context, args Args) (Outcome, error) {
	filter := storex.Filter{Category: args.String("category"), Search: args.String("search")}
	recs, err := p.store.List(ctx, filter)
	if err != nil {
		return Outcome{}, err
	}

	scope := ""
	switch {
	case filter.Category != "" && filter.Search != "":
		scope = fmt.Sprintf(" in %s matching %q", filter.Category, filter.Search)
	case filter.Category != "":
		scope = " in " + filter.Category
	case filter.Search != "":
		scope = fmt.Sprintf(" matching %q", filter.Search)
	}
	return Outcome{Message: countMessage(len(recs), scope), Records: recs}, nil
}

func (p productHandlers) get(ctx context.Context, args Args) (Outcome, error) {
	id := normalizeID(args.String("id"))
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, notFoundMessage(err, id)
	}
	return Outcome{Message: describe(rec), Records: []storex.Record{rec}}, nil
}

func (p productHandlers) search(ctx context.Context, args Args) (Outcome, error) {
	term := args.String("term")
	recs, err := p.store.Search(ctx, term)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: countMessage(len(recs), fmt.Sprintf(" matching %q", term)), Records: recs}, nil
}

func (p productHandlers) create(ctx context.Context, args Args) (Outcome, error) {
	qty, _ := args.OptInt("quantity")
	if qty < 0 {
		return Outcome{}, &contractx.FieldError{Field: "quantity", Reason: "must not be negative"}
	}
	rec, err := p.store.Create(ctx, storex.Record{
		ID:       normalizeID(args.String("id")),
		Name:     args.String("name"),
		Category: args.String("category"),
		Quantity: qty,
	})
	if errors.Is(err, storex.ErrDuplicateKey) {
		return Outcome{}, contractx.WithMessage(err, "A product with ID %s already exists.", normalizeID(args.String("id")))
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Message: fmt.Sprintf("Successfully created %s (ID: %s, Category: %s, Quantity: %d).", rec.Name, rec.ID, rec.Category, rec.Quantity),
		Records: []storex.Record{rec},
	}, nil
}

func (p productHandlers) update(ctx context.Context, args Args) (Outcome, error) {
	id := normalizeID(args.String("id"))

	var patch storex.Patch
	if v, ok := args.OptString("name"); ok {
		patch.Name = &v
	}
	if v, ok := args.OptString("category"); ok {
		patch.Category = &v
	}
	if v, ok := args.OptInt("quantity"); ok {
		if v < 0 {
			return Outcome{}, &contractx.FieldError{Field: "quantity", Reason: "must not be negative"}
		}
		patch.Quantity = &v
	}
	if patch.IsEmpty() {
		return Outcome{}, &contractx.FieldError{Field: "name, category or quantity", Reason: "at least one is required"}
	}

	rec, err := p.store.Update(ctx, id, patch)
	if err != nil {
		return Outcome{}, notFoundMessage(err, id)
	}
	return Outcome{
		Message: fmt.Sprintf("Successfully updated product %s: %s.", rec.ID, summarize(rec)),
		Records: []storex.Record{rec},
	}, nil
}

func (p productHandlers) adjust(ctx context.Context, args Args) (Outcome, error) {
	id := normalizeID(args.String("id"))
	amount := args.Int("amount")
	if amount < 0 {
		return Outcome{}, &contractx.FieldError{Field: "amount", Reason: "must not be negative"}
	}

	delta := amount
	switch strings.ToLower(args.String("direction")) {
	case "increase", "add", "raise", "restock":
	case "decrease", "remove", "reduce", "lower":
		delta = -amount
	default:
		return Outcome{}, &contractx.FieldError{Field: "direction", Reason: "must be increase or decrease"}
	}

	rec, err := p.store.Update(ctx, id, storex.Patch{QuantityDelta: &delta})
	if errors.Is(err, storex.ErrInvalidRecord) {
		return Outcome{}, contractx.WithMessage(err, "Product %s does not have enough stock to remove %d units.", id, amount)
	}
	if err != nil {
		return Outcome{}, notFoundMessage(err, id)
	}
	return Outcome{
		Message: fmt.Sprintf("Successfully updated product %s: quantity is now %d.", rec.ID, rec.Quantity),
		Records: []storex.Record{rec},
	}, nil
}

func (p productHandlers) delete(ctx context.Context, args Args) (Outcome, error) {
	id := normalizeID(args.String("id"))

	prior, err := p.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, notFoundMessage(err, id)
	}
	removed, err := p.store.Delete(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if !removed {
		return Outcome{}, notFoundMessage(fmt.Errorf("%w: id=%s", storex.ErrNotFound, id), id)
	}
	return Outcome{
		Message: fmt.Sprintf("Successfully deleted product %s: %s.", id, prior.Name),
		Records: []storex.Record{prior},
	}, nil
}

func notFoundMessage(err error, id string) error {
	if errors.Is(err, storex.ErrNotFound) {
		return contractx.WithMessage(err, "Product %s was not found.", id)
	}
	return err
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func describe(rec storex.Record) string {
	return fmt.Sprintf("Product %s: %s.", rec.ID, summarize(rec))
}

func summarize(rec storex.Record) string {
	return fmt.Sprintf("%s (%s), quantity %d", rec.Name, rec.Category, rec.Quantity)
}

func countMessage(n int, scope string) string {
	switch n {
	case 0:
		return "No products found" + scope + "."
	case 1:
		return "Found 1 product" + scope + "."
	default:
		return fmt.Sprintf("Found %d products%s.", n, scope)
	}
}
