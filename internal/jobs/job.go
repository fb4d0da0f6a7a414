package jobs

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tier is one stage of the retry cascade. A job starts on TierPrimary and
// moves one tier forward on every failed attempt.
type Tier int

const (
	TierPrimary Tier = iota
	TierRetry1
	TierRetry2
)

// Tiers lists every tier in cascade order.
var Tiers = []Tier{TierPrimary, TierRetry1, TierRetry2}

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierRetry1:
		return "tier1"
	case TierRetry2:
		return "tier2"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

func (t Tier) Valid() bool {
	return t >= TierPrimary && t <= TierRetry2
}

// Next returns the tier a job moves to after failing on t. ok is false on
// the last tier: the job is discarded.
func (t Tier) Next() (next Tier, ok bool) {
	if !t.Valid() || t == TierRetry2 {
		return t, false
	}
	return t + 1, true
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("jobs: invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	for _, c := range Tiers {
		if c.String() == string(b) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("jobs: unknown tier %q", string(b))
}

// Job is the unit of queue transport. Key, InputHash and Payload never
// change after the gateway creates the job; only Tier advances.
type Job struct {
	Key        string          `json:"key"`
	InputHash  string          `json:"input_hash"`
	Payload    json.RawMessage `json:"payload"`
	Tier       Tier            `json:"tier"`
	CreatedAt  time.Time       `json:"created_at"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Attempt is the 1-based attempt number this job is on.
func (j Job) Attempt() int { return int(j.Tier) + 1 }

// MaxAttempts is the number of attempts a job gets before it is discarded.
const MaxAttempts = int(TierRetry2) + 1

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusNotFound   Status = "not_found"
)

// ResultRecord is what a worker stores for a completed job, under both the
// job key and its input hash.
type ResultRecord struct {
	Key         string          `json:"key"`
	InputHash   string          `json:"input_hash"`
	Result      json.RawMessage `json:"result"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Outcome is returned by Submit and Poll. Record is set only when Status is
// StatusCompleted.
type Outcome struct {
	Handle string
	Status Status
	Record *ResultRecord
}
