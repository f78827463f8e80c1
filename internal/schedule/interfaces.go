package schedule

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/fincast/fincast/internal/domain"
)

// RuleStore is the narrow store surface the processor needs. Implementations
// must support partial merges: UpdateRuleCursor touches only the cursor
// fields, never amount, dates or other user-owned data.
type RuleStore interface {
	// ListActiveRules returns all rules for the owner with isActive=true.
	// Ordering is store-defined; the processor does not rely on it.
	ListActiveRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error)

	// UpdateRuleCursor persists a rule's scheduling cursor.
	UpdateRuleCursor(ctx context.Context, ownerID, ruleID string, cursor CursorUpdate) error
}

// Ledger is the external collaborator that records materialized
// transactions. The engine treats CreateTransaction as atomic and trusts
// its error signal; account balance mutation is the ledger's own side
// effect, never the engine's.
type Ledger interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error)
}

// CursorUpdate carries the full post-pass cursor state for one rule.
// A nil NextProcessDate means the schedule is exhausted.
type CursorUpdate struct {
	LastProcessed   *civil.Date
	NextProcessDate *civil.Date
	IsActive        bool
}
