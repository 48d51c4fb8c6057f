// Package render projects cart state into display models. Projections are
// pure: the same snapshot always yields the same View.
package render

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// ActionKind identifies a per-row user action.
type ActionKind string

const (
	ActionDecrement ActionKind = "decrement"
	ActionIncrement ActionKind = "increment"
	ActionRemove    ActionKind = "remove"
)

// Action is a handler descriptor attached to a rendered row. The page sends it
// back verbatim and the session dispatches it; no global handler names are
// involved. Delta is informational: the session derives the change from Kind.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Item  string     `json:"item"`
	Delta int        `json:"delta"`
}

// Row is one rendered cart line.
type Row struct {
	Name      string
	UnitPrice string
	Quantity  int
	LineTotal string
	Actions   []Action
}

// View is the sidebar display model.
type View struct {
	// Count is the aggregate quantity shown on the cart badge.
	Count int
	// Lines is the number of distinct rows.
	Lines    int
	Rows     []Row
	Total    string
	Currency string
	Empty    bool
}

// SummaryItem is one line of the payment summary, e.g. "Widget x2".
type SummaryItem struct {
	Label  string
	Amount string
}

// Summary is the itemised list shown when the payment form opens.
type Summary struct {
	Items    []SummaryItem
	Total    string
	Currency string
}

// Projector renders snapshots using a fixed display currency.
type Projector struct {
	currency currency.Unit
}

// NewProjector returns a Projector labelling amounts with unit.
func NewProjector(unit currency.Unit) *Projector {
	return &Projector{currency: unit}
}

// Project maps a cart snapshot to a View. The total is recomputed from the
// rows rather than taken from the snapshot so the rendered figure can never
// disagree with the rendered lines.
func (p *Projector) Project(s cart.Snapshot) View {
	rows := make([]Row, 0, len(s.Items))
	total := decimal.Zero
	count := 0
	for _, li := range s.Items {
		lineTotal := li.Total()
		total = total.Add(lineTotal)
		count += li.Quantity

		rows = append(rows, Row{
			Name:      li.Name,
			UnitPrice: Money(li.UnitPrice),
			Quantity:  li.Quantity,
			LineTotal: Money(lineTotal),
			Actions: []Action{
				{Kind: ActionDecrement, Item: li.Name, Delta: -1},
				{Kind: ActionIncrement, Item: li.Name, Delta: 1},
				{Kind: ActionRemove, Item: li.Name},
			},
		})
	}

	return View{
		Count:    count,
		Lines:    len(rows),
		Rows:     rows,
		Total:    Money(total),
		Currency: p.currency.String(),
		Empty:    len(rows) == 0,
	}
}

// Summarize builds the payment summary for a snapshot.
func (p *Projector) Summarize(s cart.Snapshot) Summary {
	items := make([]SummaryItem, 0, len(s.Items))
	total := decimal.Zero
	for _, li := range s.Items {
		lineTotal := li.Total()
		total = total.Add(lineTotal)
		items = append(items, SummaryItem{
			Label:  fmt.Sprintf("%s x%d", li.Name, li.Quantity),
			Amount: Money(lineTotal),
		})
	}
	return Summary{
		Items:    items,
		Total:    Money(total),
		Currency: p.currency.String(),
	}
}

// Money formats an amount with exactly two decimal places.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Painter receives every freshly projected View. It is the side-effecting
// half of rendering.
type Painter interface {
	Paint(v View)
}

// PainterFunc adapts a function to Painter.
type PainterFunc func(v View)

// Paint calls f(v).
func (f PainterFunc) Paint(v View) { f(v) }
