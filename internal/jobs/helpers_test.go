package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/suPer8Hu/tripgen/internal/jobs"
	"github.com/suPer8Hu/tripgen/internal/store/memstore"
)

var errUnreachable = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

var testKeys = jobs.Keys{Prefix: "test:"}

type tripPayload struct {
	Destinations []string `json:"destinations"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
}

var paris = tripPayload{Destinations: []string{"Paris"}, StartDate: "2025-06-01", EndDate: "2025-06-03"}

func inputHash(p any) string {
	c, err := jobs.Canonicalize(p)
	if err != nil {
		panic(err)
	}
	return jobs.InputHashOf(c)
}

// flakyStore wraps memstore and fails selected operations.
type flakyStore struct {
	*memstore.Store

	mu   sync.Mutex
	fail map[string]error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memstore.New(), fail: map[string]error{}}
}

// failOn makes op fail with err; op "*" fails every operation.
func (s *flakyStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

func (s *flakyStore) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = map[string]error{}
}

func (s *flakyStore) err(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail["*"]; ok {
		return err
	}
	return s.fail[op]
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.err("Get"); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.err("Set"); err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *flakyStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.err("SetNX"); err != nil {
		return false, err
	}
	return s.Store.SetNX(ctx, key, value, ttl)
}

func (s *flakyStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.err("Delete"); err != nil {
		return err
	}
	return s.Store.Delete(ctx, keys...)
}

func (s *flakyStore) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	if err := s.err("CompareAndDelete"); err != nil {
		return false, err
	}
	return s.Store.CompareAndDelete(ctx, key, value)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, job jobs.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockBroker) Consume(ctx context.Context, tier jobs.Tier, prefetch int) (<-chan jobs.Delivery, error) {
	args := m.Called(ctx, tier, prefetch)
	ch, _ := args.Get(0).(<-chan jobs.Delivery)
	return ch, args.Error(1)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}

// stubGenerator counts calls and answers with fn.
type stubGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int32) (json.RawMessage, error)

	mu    sync.Mutex
	times []time.Time
}

func (g *stubGenerator) Generate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	n := g.calls.Add(1)
	g.mu.Lock()
	g.times = append(g.times, time.Now())
	g.mu.Unlock()
	return g.fn(ctx, n)
}

func (g *stubGenerator) callTimes() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]time.Time(nil), g.times...)
}

func succeedWith(result string) func(context.Context, int32) (json.RawMessage, error) {
	return func(context.Context, int32) (json.RawMessage, error) {
		return json.RawMessage(result), nil
	}
}

func alwaysFail(context.Context, int32) (json.RawMessage, error) {
	return nil, errors.New("upstream: 429 rate limited")
}
