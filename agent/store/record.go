package store

import (
	"strings"
	"time"
)

// Record is one product entry. ID is assigned by the caller and never changes.
type Record struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Quantity  int        `json:"quantity"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Patch carries the fields an update supplies. Nil fields keep their prior value.
// QuantityDelta is applied after Quantity when both are set.
type Patch struct {
	Name          *string `json:"name,omitempty"`
	Category      *string `json:"category,omitempty"`
	Quantity      *int    `json:"quantity,omitempty"`
	QuantityDelta *int    `json:"quantity_delta,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Quantity == nil && p.QuantityDelta == nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
}

func (f Filter) matches(r Record) bool {
	if f.Category != "" && !containsFold(r.Category, f.Category) {
		return false
	}
	if f.Search != "" && !r.matchesTerm(f.Search) {
		return false
	}
	return true
}

func (r Record) matchesTerm(term string) bool {
	return containsFold(r.ID, term) || containsFold(r.Name, term) || containsFold(r.Category, term)
}

func (r Record) clone() Record {
	cp := r
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		cp.UpdatedAt = &t
	}
	return cp
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}
