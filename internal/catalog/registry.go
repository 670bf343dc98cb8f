package catalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

// AllProducts selects the whole catalog in SetSelection.
const AllProducts = "all"

// SelectionChange describes a successful selection update.
type SelectionChange struct {
	Applied []string // new selection, catalog order
	Dropped []string // requested ids that are not in the catalog
}

// Registry holds the fixed catalog and the mutable selection.
// It is safe for concurrent use.
type Registry struct {
	products []domain.Product
	byID     map[string]int // id -> index in products

	mu        sync.RWMutex
	selection []string
}

// NewRegistry creates a registry. The initial selection must be a valid, non-empty subset.
func NewRegistry(products []domain.Product, initial []string) (*Registry, error) {
	r := &Registry{
		products: append([]domain.Product(nil), products...),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range r.products {
		r.byID[p.ID] = i
	}
	ch, err := r.resolve(initial)
	if err != nil {
		return nil, fmt.Errorf("initial selection: %w", err)
	}
	if len(ch.Dropped) > 0 {
		return nil, fmt.Errorf("initial selection: %w: %s", domain.ErrUnknownProduct, strings.Join(ch.Dropped, ", "))
	}
	r.selection = ch.Applied
	return r, nil
}

// FromFile builds a registry from a loaded catalog file.
func FromFile(f *File) (*Registry, error) {
	return NewRegistry(f.ProductList(), f.DefaultSelection)
}

// Catalog returns all known products in catalog order.
func (r *Registry) Catalog() []domain.Product {
	return append([]domain.Product(nil), r.products...)
}

// Product looks up a single catalog entry.
func (r *Registry) Product(id string) (domain.Product, error) {
	i, ok := r.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %q", domain.ErrUnknownProduct, id)
	}
	return r.products[i], nil
}

// Selection returns the ids currently targeted for polling.
func (r *Registry) Selection() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.selection...)
}

// SelectedProducts returns a snapshot of the selected products.
func (r *Registry) SelectedProducts() []domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.selection))
	for _, id := range r.selection {
		out = append(out, r.products[r.byID[id]])
	}
	return out
}

// SetSelection replaces the selection. Unknown ids are dropped and reported;
// if nothing valid remains the previous selection is kept and
// domain.ErrNoValidProducts is returned.
func (r *Registry) SetSelection(requested []string) (SelectionChange, error) {
	ch, err := r.resolve(requested)
	if err != nil {
		return ch, err
	}
	r.mu.Lock()
	r.selection = ch.Applied
	r.mu.Unlock()
	return ch, nil
}

func (r *Registry) resolve(requested []string) (SelectionChange, error) {
	var ch SelectionChange
	want := make(map[string]bool, len(requested))
	seenDropped := make(map[string]bool)

	for _, raw := range requested {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if strings.EqualFold(id, AllProducts) {
			for _, p := range r.products {
				want[p.ID] = true
			}
			continue
		}
		if _, ok := r.byID[id]; ok {
			want[id] = true
			continue
		}
		if !seenDropped[id] {
			seenDropped[id] = true
			ch.Dropped = append(ch.Dropped, id)
		}
	}

	for _, p := range r.products {
		if want[p.ID] {
			ch.Applied = append(ch.Applied, p.ID)
		}
	}
	if len(ch.Applied) == 0 {
		if len(ch.Dropped) > 0 {
			return ch, fmt.Errorf("%w: %s", domain.ErrNoValidProducts, strings.Join(ch.Dropped, ", "))
		}
		return ch, domain.ErrNoValidProducts
	}
	return ch, nil
}
