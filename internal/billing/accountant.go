// Package billing implements usage accounting: the durable per-session
// resource counter and the display-only monetary cost estimate.
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/szaher/chatrelay/internal/llm"
	"github.com/szaher/chatrelay/internal/session"
)

// Resolver looks up the cost model for a model identifier. Satisfied by
// *llm.Registry.
type Resolver interface {
	Resolve(modelID string) (llm.Descriptor, error)
}

// Accountant converts raw token and duration counts into per-session usage
// totals and estimated monetary cost.
type Accountant struct {
	resolver Resolver

	// perMinuteUnits is the synthetic charge per started minute of
	// transcribed audio. Transcription usage is not backend-reported.
	perMinuteUnits int64
}

// NewAccountant creates an accountant against the given price resolver.
func NewAccountant(resolver Resolver, perMinuteUnits int64) *Accountant {
	return &Accountant{resolver: resolver, perMinuteUnits: perMinuteUnits}
}

// Accumulate adds delta resource units to the session's durable counter.
// The counter is strictly additive; a negative delta is rejected so the
// monotonicity invariant cannot be violated.
func (a *Accountant) Accumulate(s *session.Session, delta int64) (int64, error) {
	if delta < 0 {
		return s.Usage, fmt.Errorf("billing: negative usage delta %d", delta)
	}
	s.Usage += delta
	return s.Usage, nil
}

// TranscriptionUnits returns the synthetic usage charge for an audio clip,
// rounded up to the nearest whole minute.
func (a *Accountant) TranscriptionUnits(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes * a.perMinuteUnits
}

// perThousand divides token counts into the per-1000-token price unit.
var perThousand = decimal.NewFromInt(1000)

// EstimateCost walks the per-turn model/token annotations and returns the
// estimated monetary cost of the stored history. User turns are priced at
// the backend's input rate and assistant turns at its output rate; turns
// without annotations, turns on models absent from the catalog, and turns
// on free backends all contribute zero.
//
// This is a display-only recomputation. It never feeds back into the
// durable usage counter and is allowed to diverge from it.
func (a *Accountant) EstimateCost(turns []session.Turn) decimal.Decimal {
	total := decimal.Zero
	for _, t := range turns {
		if t.Model == "" || t.Tokens <= 0 {
			continue
		}
		desc, err := a.resolver.Resolve(t.Model)
		if err != nil || desc.Free() {
			continue
		}

		var rate decimal.Decimal
		switch t.Role {
		case llm.RoleUser:
			rate = desc.Pricing.Input
		case llm.RoleAssistant:
			rate = desc.Pricing.Output
		default:
			continue
		}

		cost := rate.Mul(decimal.NewFromInt(int64(t.Tokens))).Div(perThousand)
		total = total.Add(cost)
	}
	return total
}
