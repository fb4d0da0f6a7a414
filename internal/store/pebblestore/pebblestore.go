// Package pebblestore implements store.Store on an embedded Pebble database,
// for single-node deployments that want locks and results to survive a
// restart without running Redis.
//
// Each value is stored with an 8-byte big-endian expiry (unix nanoseconds,
// zero for none) in front of it. Expired keys are treated as absent on read
// and removed lazily, and by a periodic sweep when SweepInterval is set.
package pebblestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/suPer8Hu/tripgen/internal/store"
)

const headerLen = 8

type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// SweepInterval enables a background sweep of expired keys. Zero disables it.
	SweepInterval time.Duration
	// PebbleOptions allows advanced tuning of Pebble. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

type Store struct {
	db  *pebble.DB
	now func() time.Time

	// mu serialises read-modify-write operations (SetNX, CompareAndDelete)
	// against plain writes.
	mu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	if opts.SweepInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.sweepLoop(opts.SweepInterval)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok, err := s.read([]byte(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Set([]byte(key), s.encode(value, ttl), pebble.Sync)
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, err := s.read([]byte(key))
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := s.db.Set([]byte(key), s.encode(value, ttl), pebble.Sync); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete([]byte(k), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.read([]byte(key))
	if err != nil || !ok {
		return false, err
	}
	if !bytes.Equal(cur, value) {
		return false, nil
	}
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.read([]byte("\x00ping"))
	return err
}

func (s *Store) Close() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
	}
	return s.db.Close()
}

// Sweep deletes every expired key and returns how many were removed.
func (s *Store) Sweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.NewIter(nil)
	if err != nil {
		return 0, err
	}
	now := s.now()
	b := s.db.NewBatch()
	defer b.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if _, live := decode(iter.Value(), now); live {
			continue
		}
		if err := b.Delete(bytes.Clone(iter.Key()), nil); err != nil {
			_ = iter.Close()
			return 0, err
		}
		n++
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, b.Commit(pebble.Sync)
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			_, _ = s.Sweep()
		}
	}
}

// read returns the live value for key. Expired values report ok=false.
func (s *Store) read(key []byte) ([]byte, bool, error) {
	raw, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	v, live := decode(raw, s.now())
	if !live {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (s *Store) encode(value []byte, ttl time.Duration) []byte {
	out := make([]byte, headerLen+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(out[:headerLen], uint64(s.now().Add(ttl).UnixNano()))
	}
	copy(out[headerLen:], value)
	return out
}

func decode(raw []byte, now time.Time) ([]byte, bool) {
	if len(raw) < headerLen {
		return nil, false
	}
	exp := int64(binary.BigEndian.Uint64(raw[:headerLen]))
	if exp != 0 && now.UnixNano() >= exp {
		return nil, false
	}
	return raw[headerLen:], true
}

var _ store.Store = (*Store)(nil)
