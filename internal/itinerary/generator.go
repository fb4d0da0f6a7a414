package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/ai"
	"github.com/suPer8Hu/tripgen/internal/jobs"
)

// Result is the document stored for a completed job.
type Result struct {
	Plan    *Plan  `json:"plan"`
	Summary string `json:"summary"`
}

// Generator produces a Result from a Request payload.
type Generator struct {
	provider ai.Provider
}

func NewGenerator(p ai.Provider) *Generator {
	return &Generator{provider: p}
}

func (g *Generator) Generate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	msgs, err := Messages(&req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := g.provider.Chat(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("ai chat: %w", err)
	}
	slogcontext.FromCtx(ctx).Debug("ai reply", "chars", len(reply), "elapsed", time.Since(start))

	plan, err := ParsePlan(reply)
	if err != nil {
		return nil, err
	}
	plan.NormalizeCosts()

	return json.Marshal(Result{Plan: plan, Summary: Summary(&req, plan)})
}

func Summary(r *Request, p *Plan) string {
	return fmt.Sprintf("Multi-city trip to %s from %s to %s. Estimated budget: %s",
		strings.Join(r.Destinations, ", "), r.StartDate, r.EndDate, p.TotalEstimatedCost)
}

var _ jobs.Generator = (*Generator)(nil)
