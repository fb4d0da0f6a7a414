// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/tripgen/internal/store"
)

// Run exercises s against the store contract. Keys are namespaced with the
// test name so a shared backend can be reused.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), key(t, "missing"))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SetGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "k")

		require.NoError(t, s.Set(ctx, k, []byte("v1"), time.Minute))
		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(got))

		require.NoError(t, s.Set(ctx, k, []byte("v2"), time.Minute))
		got, err = s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("Expiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "ttl")

		require.NoError(t, s.Set(ctx, k, []byte("v"), 100*time.Millisecond))
		require.Eventually(t, func() bool {
			_, err := s.Get(ctx, k)
			return errors.Is(err, store.ErrNotFound)
		}, 3*time.Second, 20*time.Millisecond)
	})

	t.Run("SetNX", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "nx")

		ok, err := s.SetNX(ctx, k, []byte("first"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(ctx, k, []byte("second"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "first", string(got))
	})

	t.Run("SetNXAfterExpiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "nx-expired")

		ok, err := s.SetNX(ctx, k, []byte("first"), 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		require.Eventually(t, func() bool {
			ok, err := s.SetNX(ctx, k, []byte("second"), time.Minute)
			return err == nil && ok
		}, 3*time.Second, 20*time.Millisecond)
	})

	t.Run("SetNXConcurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "nx-race")

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.SetNX(ctx, k, []byte(fmt.Sprint(i)), time.Minute)
				if err == nil && ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, b := key(t, "a"), key(t, "b")

		require.NoError(t, s.Set(ctx, a, []byte("1"), time.Minute))
		require.NoError(t, s.Set(ctx, b, []byte("2"), time.Minute))
		require.NoError(t, s.Delete(ctx, a, b, key(t, "never-set")))

		_, err := s.Get(ctx, a)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Get(ctx, b)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, s.Delete(ctx))
	})

	t.Run("CompareAndDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "cad")

		require.NoError(t, s.Set(ctx, k, []byte("owner-1"), time.Minute))

		ok, err := s.CompareAndDelete(ctx, k, []byte("owner-2"))
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = s.Get(ctx, k)
		require.NoError(t, err)

		ok, err = s.CompareAndDelete(ctx, k, []byte("owner-1"))
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = s.Get(ctx, k)
		require.ErrorIs(t, err, store.ErrNotFound)

		ok, err = s.CompareAndDelete(ctx, k, []byte("owner-1"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Ping(context.Background()))
	})
}

func key(t *testing.T, name string) string {
	return "storetest:" + t.Name() + ":" + name
}
