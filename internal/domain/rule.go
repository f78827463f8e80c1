package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RecurrenceRule is the persisted definition of one recurring obligation
// plus its scheduling cursor. Dates are calendar dates: the engine never
// cares about time-of-day, so civil.Date keeps timezone drift out of the
// arithmetic entirely.
type RecurrenceRule struct {
	ID      string
	OwnerID string

	Description string
	Amount      decimal.Decimal
	Kind        Kind
	Category    string
	AccountID   string

	Frequency Frequency
	StartDate civil.Date
	EndDate   *civil.Date // nil means the rule runs forever

	IsActive      bool
	PayOnWeekends bool

	// Cursor. LastProcessed is the unadjusted scheduled date of the most
	// recently materialized occurrence, not the weekend-shifted one.
	// NextProcessDate is nil once the rule is exhausted.
	LastProcessed   *civil.Date
	NextProcessDate *civil.Date

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleState is the lifecycle of a rule, derived from its cursor fields.
type RuleState string

const (
	// StatePending means the rule has an occurrence due on or before today.
	StatePending RuleState = "pending"
	// StateScheduled means the rule is dormant, waiting for a future date.
	StateScheduled RuleState = "scheduled"
	// StateExhausted is terminal: past endDate or explicitly deactivated.
	StateExhausted RuleState = "exhausted"
)

// State derives the rule's lifecycle state as of the given day.
func (r *RecurrenceRule) State(today civil.Date) RuleState {
	if !r.IsActive || r.NextProcessDate == nil {
		return StateExhausted
	}
	if r.NextProcessDate.After(today) {
		return StateScheduled
	}
	return StatePending
}

// Schedulable reports whether the rule is well-formed enough to process.
// Rules failing this are skipped for the pass, never rejected or
// deactivated; the data may be fixed by a later user edit.
func (r *RecurrenceRule) Schedulable() bool {
	return r.AccountID != "" &&
		r.Amount.IsPositive() &&
		r.Frequency.Valid() &&
		r.StartDate != (civil.Date{})
}

// TransactionDescription is the description recorded on materialized
// transactions: the rule's own description, or a generic fallback.
func (r *RecurrenceRule) TransactionDescription() string {
	if r.Description != "" {
		return r.Description
	}
	if r.Kind == KindIncome {
		return "Recurring income"
	}
	return "Recurring expense"
}
