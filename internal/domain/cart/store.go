package cart

import (
	"math"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

// Store owns the line items of a single cart. All mutation goes through its
// methods, which run under one lock so Snapshot never observes a partially
// applied change.
//
// The total is never stored: every read recomputes it from the line items.
type Store struct {
	mu    sync.Mutex
	items []LineItem
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{}
}

// Add increments the quantity of the named item, or appends a new line with
// quantity 1 when the cart does not contain it yet.
func (s *Store) Add(name string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(name); i >= 0 {
		s.items[i].Quantity++
		return
	}
	s.items = append(s.items, LineItem{
		Name:      name,
		UnitPrice: price,
		Quantity:  1,
	})
}

// Remove deletes the named line. It reports whether a line was removed;
// removing an absent item is not an error.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(name)
}

// Adjust adds delta to the quantity of the named item. A resulting quantity
// of zero or less removes the line; a quantity past math.MaxInt saturates.
func (s *Store) Adjust(name string, delta int) AdjustOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(name)
	if i < 0 || delta == 0 {
		return Unchanged
	}
	q := s.items[i].Quantity
	switch {
	case delta <= -q:
		s.removeLocked(name)
		return Removed
	case delta > math.MaxInt-q:
		if q == math.MaxInt {
			return Unchanged
		}
		s.items[i].Quantity = math.MaxInt
	default:
		s.items[i].Quantity = q + delta
	}
	return Updated
}

// Clear removes every line. Clearing an empty cart is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Total recomputes the cart total from the current lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, _ := computeTotals(s.items)
	return total
}

// Snapshot returns a copy of the current lines along with their total and
// aggregate quantity.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := slices.Clone(s.items)
	total, count := computeTotals(items)
	return Snapshot{
		Items: items,
		Total: total,
		Count: count,
	}
}

func (s *Store) removeLocked(name string) bool {
	i := s.indexOf(name)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

func (s *Store) indexOf(name string) int {
	return slices.IndexFunc(s.items, func(li LineItem) bool {
		return li.Name == name
	})
}
