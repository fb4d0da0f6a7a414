package jobs

import "errors"

var (
	// ErrStore marks failures of the expiring store. They are infrastructure
	// errors and are never retried by the pipeline.
	ErrStore = errors.New("store unavailable")

	// ErrEnqueue marks failures to publish a job to a tier queue.
	ErrEnqueue = errors.New("enqueue failed")

	// ErrInvalidPayload is returned when a payload cannot be canonicalised.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrDeliveriesClosed is reported by a running pipeline when a tier's
	// delivery stream ends without Stop, usually a lost broker connection.
	ErrDeliveriesClosed = errors.New("deliveries closed")
)

type opError struct {
	kind error
	op   string
	err  error
}

func (e *opError) Error() string {
	return e.kind.Error() + ": " + e.op + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error { return []error{e.kind, e.err} }

func storeError(op string, err error) error {
	return &opError{kind: ErrStore, op: op, err: err}
}

func enqueueError(op string, err error) error {
	return &opError{kind: ErrEnqueue, op: op, err: err}
}
