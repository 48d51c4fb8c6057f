// Package cart holds the shopping cart state: line items keyed by product
// name and the total derived from them.
package cart

import (
	"github.com/shopspring/decimal"
)

// LineItem is one product entry in the cart. Quantity is always at least 1;
// a line driven to zero is removed rather than kept.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice × Quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Snapshot is an immutable copy of the cart taken at a single point in time.
type Snapshot struct {
	Items []LineItem
	// Total is recomputed from Items when the snapshot is taken.
	Total decimal.Decimal
	// Count is the sum of all quantities.
	Count int
}

// IsEmpty reports whether the snapshot has no line items.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find returns the line item with the given name.
func (s Snapshot) Find(name string) (LineItem, bool) {
	for _, li := range s.Items {
		if li.Name == name {
			return li, true
		}
	}
	return LineItem{}, false
}

// AdjustOutcome describes what an Adjust call did to the cart.
type AdjustOutcome int

const (
	// Unchanged means the item was absent or delta was zero.
	Unchanged AdjustOutcome = iota
	// Updated means the quantity changed and the line is still present.
	Updated
	// Removed means the quantity dropped to zero or below and the line was deleted.
	Removed
)

func (o AdjustOutcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// computeTotals sums line totals and quantities.
func computeTotals(items []LineItem) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, li := range items {
		total = total.Add(li.Total())
		count += li.Quantity
	}
	return total, count
}
