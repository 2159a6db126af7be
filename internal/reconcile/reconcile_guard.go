package reconcile

import (
	"context"
	"time"
)

// Guard answers the two questions asked before any ledger mutation: has an
// equivalent punch already been recorded, and is a close candidate
// chronologically valid against its open session.
type Guard struct {
	ledger    Ledger
	tolerance time.Duration
}

func NewGuard(ledger Ledger, tolerance time.Duration) *Guard {
	return &Guard{ledger: ledger, tolerance: tolerance}
}

// IsDuplicate reports whether the ledger already holds a record whose
// check-in or check-out falls within ±tolerance of the punch instant.
// Probing both columns is what makes re-runs no-ops: a re-seen opening punch
// collapses against the recorded check-in, a re-seen closing punch against
// the recorded check-out.
func (g *Guard) IsDuplicate(ctx context.Context, employeeKey int64, at time.Time) (bool, error) {
	dup, err := g.ledger.CheckinWithin(ctx, employeeKey, at, g.tolerance)
	if err != nil || dup {
		return dup, err
	}
	return g.ledger.CheckoutWithin(ctx, employeeKey, at, g.tolerance)
}

// ValidOrder rejects a close candidate that precedes or coincides with the
// open session's check-in.
func (g *Guard) ValidOrder(openCheckin, candidate time.Time) bool {
	return candidate.After(openCheckin)
}
