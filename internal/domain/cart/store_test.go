package cart

import (
	"math"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStore_AddNewItem(t *testing.T) {
	s := NewStore()
	s.Add("Widget", price("9.99"))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Widget", snap.Items[0].Name)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.True(t, price("9.99").Equal(snap.Total))
}

func TestStore_AddSameNameIncrements(t *testing.T) {
	s := NewStore()
	s.Add("Widget", price("9.99"))
	s.Add("Widget", price("9.99"))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, 2, snap.Count)
}

func TestStore_InsertionOrder(t *testing.T) {
	s := NewStore()
	s.Add("Gadget", price("4.50"))
	s.Add("Widget", price("9.99"))
	s.Add("Gadget", price("4.50"))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Gadget", snap.Items[0].Name)
	assert.Equal(t, "Widget", snap.Items[1].Name)
}

func TestStore_Remove(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		s := NewStore()
		s.Add("Widget", price("9.99"))
		s.Add("Gadget", price("4.50"))

		assert.True(t, s.Remove("Widget"))
		snap := s.Snapshot()
		require.Len(t, snap.Items, 1)
		assert.Equal(t, "Gadget", snap.Items[0].Name)
	})

	t.Run("absent is no-op", func(t *testing.T) {
		s := NewStore()
		s.Add("Widget", price("9.99"))

		assert.False(t, s.Remove("Missing"))
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_Adjust(t *testing.T) {
	tests := []struct {
		name      string
		delta     int
		wantOut   AdjustOutcome
		wantQty   int
		wantFound bool
	}{
		{name: "increment", delta: 1, wantOut: Updated, wantQty: 3, wantFound: true},
		{name: "decrement", delta: -1, wantOut: Updated, wantQty: 1, wantFound: true},
		{name: "to zero removes", delta: -2, wantOut: Removed, wantFound: false},
		{name: "below zero removes", delta: -5, wantOut: Removed, wantFound: false},
		{name: "zero delta", delta: 0, wantOut: Unchanged, wantQty: 2, wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.Add("Widget", price("9.99"))
			s.Add("Widget", price("9.99"))

			out := s.Adjust("Widget", tt.delta)
			assert.Equal(t, tt.wantOut, out)

			li, ok := s.Snapshot().Find("Widget")
			require.Equal(t, tt.wantFound, ok)
			if ok {
				assert.Equal(t, tt.wantQty, li.Quantity)
			}
		})
	}
}

func TestStore_AdjustExtremeDeltas(t *testing.T) {
	s := NewStore()
	s.Add("Widget", decimal.RequireFromString("9.99"))

	assert.Equal(t, Updated, s.Adjust("Widget", math.MaxInt))
	li, ok := s.Snapshot().Find("Widget")
	require.True(t, ok)
	assert.Equal(t, math.MaxInt, li.Quantity)

	assert.Equal(t, Unchanged, s.Adjust("Widget", 1))
	assert.Equal(t, 1, s.Len())

	assert.Equal(t, Updated, s.Adjust("Widget", -(math.MaxInt - 2)))
	li, _ = s.Snapshot().Find("Widget")
	assert.Equal(t, 2, li.Quantity)

	assert.Equal(t, Removed, s.Adjust("Widget", math.MinInt))
	assert.True(t, s.IsEmpty())
}

func TestStore_AdjustAbsent(t *testing.T) {
	s := NewStore()
	assert.Equal(t, Unchanged, s.Adjust("Missing", 1))
	assert.True(t, s.IsEmpty())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Add("Widget", price("9.99"))
	s.Clear()
	assert.True(t, s.IsEmpty())
	assert.True(t, decimal.Zero.Equal(s.Total()))

	// Clearing again is harmless.
	s.Clear()
	assert.True(t, s.IsEmpty())
}

func TestStore_ExampleTotal(t *testing.T) {
	s := NewStore()
	s.Add("Widget", price("9.99"))
	s.Add("Widget", price("9.99"))
	s.Add("Gadget", price("4.50"))

	snap := s.Snapshot()
	assert.True(t, price("24.48").Equal(snap.Total), "got %s", snap.Total)
	assert.Equal(t, 3, snap.Count)
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	s.Add("Widget", price("9.99"))

	snap := s.Snapshot()
	s.Add("Widget", price("9.99"))
	s.Add("Gadget", price("4.50"))

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.True(t, price("9.99").Equal(snap.Total))
}

// TestStore_TotalNeverDrifts drives random operation sequences and checks the
// reported total against an independent recomputation after every step.
func TestStore_TotalNeverDrifts(t *testing.T) {
	f := gofakeit.New(42)
	names := []string{"Widget", "Gadget", "Doohickey", "Sprocket", "Gizmo"}
	prices := make(map[string]decimal.Decimal, len(names))
	for _, n := range names {
		prices[n] = decimal.NewFromFloat(f.Price(0, 100)).Round(2)
	}

	s := NewStore()
	for step := range 2000 {
		name := f.RandomString(names)
		switch f.IntRange(0, 3) {
		case 0:
			s.Add(name, prices[name])
		case 1:
			s.Remove(name)
		case 2:
			s.Adjust(name, f.IntRange(-3, 3))
		case 3:
			if f.IntRange(0, 50) == 0 {
				s.Clear()
			}
		}

		snap := s.Snapshot()
		want := decimal.Zero
		seen := make(map[string]bool)
		for _, li := range snap.Items {
			require.GreaterOrEqual(t, li.Quantity, 1, "step %d", step)
			require.False(t, seen[li.Name], "duplicate line %q at step %d", li.Name, step)
			seen[li.Name] = true
			want = want.Add(prices[li.Name].Mul(decimal.NewFromInt(int64(li.Quantity))))
		}
		require.True(t, want.Equal(snap.Total), "step %d: want %s got %s", step, want, snap.Total)
		require.True(t, want.Equal(s.Total()), "step %d", step)
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add("Widget", price("1.00"))
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 50, snap.Items[0].Quantity)
	assert.True(t, price("50.00").Equal(snap.Total))
}
