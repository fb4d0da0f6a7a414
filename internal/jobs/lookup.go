package jobs

import (
	"context"
	"errors"

	"github.com/suPer8Hu/tripgen/internal/store"
)

// Lookup reports the state of a job by handle.
type Lookup struct {
	store store.Store
	keys  Keys
}

func NewLookup(s store.Store, keys Keys) *Lookup {
	return &Lookup{store: s, keys: keys}
}

// Poll returns StatusCompleted with the record, StatusProcessing while the
// job's processing marker lives, and StatusNotFound otherwise. Unknown,
// expired and discarded handles are deliberately indistinguishable.
func (l *Lookup) Poll(ctx context.Context, handle string) (*Outcome, error) {
	rec, err := readRecord(ctx, l.store, l.keys.Result(handle))
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return &Outcome{Handle: handle, Status: StatusCompleted, Record: rec}, nil
	}

	if _, err := l.store.Get(ctx, l.keys.Processing(handle)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Outcome{Handle: handle, Status: StatusNotFound}, nil
		}
		return nil, storeError("read processing marker", err)
	}
	return &Outcome{Handle: handle, Status: StatusProcessing}, nil
}
