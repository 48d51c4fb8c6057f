// Package memory holds the in-process catalog used when no database is
// configured.
package memory

import (
	"context"
	"os"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository is a read-only product catalog kept in memory. Listing
// order is the order the products were supplied in.
type ProductRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]product.Product
}

// NewProductRepository builds a catalog from products. A later duplicate id
// replaces the earlier entry in place.
func NewProductRepository(products []product.Product) *ProductRepository {
	r := &ProductRepository{byID: make(map[string]product.Product, len(products))}
	r.replace(products)
	return r
}

// LoadProductFile reads a JSON catalog file.
func LoadProductFile(path string) (*ProductRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog file")
	}
	products, err := product.DecodeList(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return NewProductRepository(products), nil
}

// List returns all products.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]product.Product, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// Ping always succeeds.
func (r *ProductRepository) Ping(context.Context) error { return nil }

func (r *ProductRepository) replace(products []product.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.byID)
	r.order = r.order[:0]
	for _, p := range products {
		if _, dup := r.byID[p.ID]; !dup {
			r.order = append(r.order, p.ID)
		}
		r.byID[p.ID] = p
	}
	r.order = slices.Clip(r.order)
}
