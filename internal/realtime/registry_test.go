package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1)

	_, ok := r.Lookup("u1")
	assert.False(t, ok)

	r.Register("u1", c)
	got, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Unregister("u1", c))
	assert.False(t, r.Unregister("u1", c)) // idempotent
	_, ok = r.Lookup("u1")
	assert.False(t, ok)
}

func TestRegistry_ReplacementInvalidatesOld(t *testing.T) {
	r := NewRegistry()
	first, second := NewConn(1), NewConn(1)

	r.Register("u1", first)
	r.Register("u1", second)

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.ErrorIs(t, first.Push(context.Background(), []byte("x")), ErrConnClosed)

	// a stale unregister must not evict the newer connection
	assert.False(t, r.Unregister("u1", first))
	got, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistry_ReRegisterSameHandle(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1)

	r.Register("u1", c)
	r.Register("u1", c)

	assert.False(t, c.Closed())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			c := NewConn(1)
			r.Register(user, c)
			_, _ = r.Lookup(user)
			r.Unregister(user, c)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 5)
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := NewConn(1), NewConn(1)
	r.Register("a", a)
	r.Register("b", b)

	r.CloseAll()

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestConn_PushRespectsContext(t *testing.T) {
	c := NewConn(1)
	require.NoError(t, c.Push(context.Background(), []byte("1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Push(ctx, []byte("2")), context.DeadlineExceeded)

	assert.Equal(t, []byte("1"), <-c.Outbound())
}
