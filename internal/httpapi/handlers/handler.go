package handlers

import (
	"context"

	"github.com/suPer8Hu/tripgen/internal/jobs"
)

type Submitter interface {
	Submit(ctx context.Context, payload any) (*jobs.Outcome, error)
}

type Poller interface {
	Poll(ctx context.Context, handle string) (*jobs.Outcome, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Gateway Submitter
	Lookup  Poller
	Store   Pinger
}

func NewHandler(gw Submitter, lookup Poller, store Pinger) *Handler {
	return &Handler{Gateway: gw, Lookup: lookup, Store: store}
}
