package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-storefront/internal/domain/render"
)

func newTestRegistry(idle time.Duration) *Registry {
	projector := render.NewProjector(currency.USD)
	return NewRegistry(func(id string) *Session {
		return NewSession(id, Deps{Projector: projector, NotificationLifetime: time.Hour})
	}, idle, nil)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := newTestRegistry(time.Minute)
	defer r.Close()

	s1, created := r.GetOrCreate("abc")
	require.True(t, created)
	assert.Equal(t, "abc", s1.ID())

	s2, created := r.GetOrCreate("abc")
	assert.False(t, created)
	assert.Same(t, s1, s2)

	got, ok := r.Get("abc")
	require.True(t, ok)
	assert.Same(t, s1, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_EmptyIDGeneratesOne(t *testing.T) {
	r := newTestRegistry(time.Minute)
	defer r.Close()

	a, created := r.GetOrCreate("")
	require.True(t, created)
	b, _ := r.GetOrCreate("")
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	r := newTestRegistry(time.Minute)
	defer r.Close()

	start := time.Now()
	r.now = func() time.Time { return start }
	r.GetOrCreate("old")

	r.now = func() time.Time { return start.Add(50 * time.Second) }
	r.GetOrCreate("fresh")

	evicted := r.Sweep(start.Add(90 * time.Second))
	assert.Equal(t, 1, evicted)

	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)
}

func TestRegistry_SweeperStopsWithContext(t *testing.T) {
	r := newTestRegistry(time.Millisecond)
	defer r.Close()
	r.GetOrCreate("x")

	ctx, cancel := context.WithCancel(context.Background())
	r.StartSweeper(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
