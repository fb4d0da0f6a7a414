package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/store"
)

// lockAttempts bounds how often Submit retries SET NX when the competing
// lock disappears between the failed SET NX and the read of its owner.
const lockAttempts = 3

type GatewayOptions struct {
	Keys Keys
	// LockTTL bounds the processing lock and processing marker.
	LockTTL time.Duration
	// NewHandle mints request handles. Defaults to NewHandle.
	NewHandle func() string
	Now       func() time.Time
}

// Gateway is the job submission entry point. It deduplicates by input hash:
// a cached result is returned directly, an in-flight job is reported by its
// existing handle, and only a miss on both enqueues a new job.
type Gateway struct {
	store     store.Store
	broker    Broker
	keys      Keys
	lockTTL   time.Duration
	newHandle func() string
	now       func() time.Time
}

func NewGateway(s store.Store, b Broker, opts GatewayOptions) *Gateway {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 300 * time.Second
	}
	if opts.NewHandle == nil {
		opts.NewHandle = NewHandle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		store:     s,
		broker:    b,
		keys:      opts.Keys,
		lockTTL:   opts.LockTTL,
		newHandle: opts.NewHandle,
		now:       opts.Now,
	}
}

// NewHandle returns a fresh ULID request handle.
func NewHandle() string {
	return ulid.Make().String()
}

// Submit registers payload for generation. Status is StatusCompleted with a
// Record on a cache hit, StatusProcessing with the in-flight job's handle
// when the same input is already queued or running, and StatusQueued with a
// new handle otherwise. Store failures return an error wrapping ErrStore and
// leave no lock behind.
func (g *Gateway) Submit(ctx context.Context, payload any) (*Outcome, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	hash := InputHashOf(canonical)
	logger := slogcontext.FromCtx(ctx).With("input_hash", hash)

	rec, err := g.cached(ctx, hash)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		logger.Debug("submit: cache hit", "key", rec.Key)
		return &Outcome{Handle: rec.Key, Status: StatusCompleted, Record: rec}, nil
	}

	owner, err := g.lockOwner(ctx, hash)
	if err != nil {
		return nil, err
	}
	if owner != "" {
		logger.Debug("submit: already processing", "key", owner)
		return &Outcome{Handle: owner, Status: StatusProcessing}, nil
	}

	// The marker goes in before the lock: once another submitter can read
	// this handle as the lock owner, Poll must already report it processing.
	handle := g.newHandle()
	if err := g.store.Set(ctx, g.keys.Processing(handle), []byte(hash), g.lockTTL); err != nil {
		return nil, storeError("mark processing", err)
	}

	acquired := false
	for i := 0; i < lockAttempts && !acquired; i++ {
		acquired, err = g.store.SetNX(ctx, g.keys.Lock(hash), []byte(handle), g.lockTTL)
		if err != nil {
			g.dropMarker(ctx, handle)
			return nil, storeError("acquire lock", err)
		}
		if acquired {
			break
		}
		owner, err = g.lockOwner(ctx, hash)
		if err != nil {
			g.dropMarker(ctx, handle)
			return nil, err
		}
		if owner != "" {
			g.dropMarker(ctx, handle)
			logger.Debug("submit: lost lock race", "key", owner)
			return &Outcome{Handle: owner, Status: StatusProcessing}, nil
		}
	}
	if !acquired {
		g.dropMarker(ctx, handle)
		return nil, storeError("acquire lock", errors.New("lock contended without an owner"))
	}

	// A worker may have stored the result and cleared its lock between the
	// cache read and our SET NX.
	rec, err = g.cached(ctx, hash)
	if err != nil {
		g.release(ctx, hash, handle)
		return nil, err
	}
	if rec != nil {
		g.release(ctx, hash, handle)
		return &Outcome{Handle: rec.Key, Status: StatusCompleted, Record: rec}, nil
	}

	now := g.now()
	job := Job{
		Key:        handle,
		InputHash:  hash,
		Payload:    canonical,
		Tier:       TierPrimary,
		CreatedAt:  now,
		EnqueuedAt: now,
	}
	if err := g.broker.Publish(ctx, job); err != nil {
		g.release(ctx, hash, handle)
		return nil, enqueueError("publish "+TierPrimary.String(), err)
	}

	logger.Info("submit: queued", "key", handle)
	return &Outcome{Handle: handle, Status: StatusQueued}, nil
}

func (g *Gateway) cached(ctx context.Context, hash string) (*ResultRecord, error) {
	return readRecord(ctx, g.store, g.keys.Input(hash))
}

func (g *Gateway) lockOwner(ctx context.Context, hash string) (string, error) {
	b, err := g.store.Get(ctx, g.keys.Lock(hash))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", storeError("read lock", err)
	}
	return string(b), nil
}

// release undoes a partial submission. It runs detached from ctx so a
// cancelled request still cleans up; failures are left to the lock TTL.
func (g *Gateway) release(ctx context.Context, hash, handle string) {
	g.dropMarker(ctx, handle)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := g.store.CompareAndDelete(ctx, g.keys.Lock(hash), []byte(handle)); err != nil {
		slogcontext.FromCtx(ctx).Warn("submit: release lock failed", "key", handle, "input_hash", hash, "err", err)
	}
}

// dropMarker removes the processing marker of a handle that never became
// the lock owner or gave the lock back.
func (g *Gateway) dropMarker(ctx context.Context, handle string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.store.Delete(ctx, g.keys.Processing(handle)); err != nil {
		slogcontext.FromCtx(ctx).Warn("submit: release marker failed", "key", handle, "err", err)
	}
}

func readRecord(ctx context.Context, s store.Store, key string) (*ResultRecord, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, storeError("read result", err)
	}
	var rec ResultRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, storeError("decode result", fmt.Errorf("%s: %w", key, err))
	}
	return &rec, nil
}
