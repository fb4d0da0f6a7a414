package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/tripgen/internal/store"
	"github.com/suPer8Hu/tripgen/internal/store/storetest"
)

// Runs against a live Redis when TRIPGEN_TEST_REDIS_ADDR is set.
func TestContract(t *testing.T) {
	addr := os.Getenv("TRIPGEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRIPGEN_TEST_REDIS_ADDR not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(Options{Addr: addr})
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestUnreachable(t *testing.T) {
	// nothing listens on the discard port
	s := New(Options{Addr: "127.0.0.1:9"})
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)

	_, err = s.SetNX(ctx, "k", []byte("v"), time.Second)
	require.Error(t, err)
	require.Error(t, s.Ping(ctx))
}
