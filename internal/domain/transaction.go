package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction represents one ledger entry. This is a domain struct, not a
// BigQuery row; the infra layer maps it into the finance.transactions table
// schema. For entries produced by the recurring engine, Date is the
// weekend-adjusted materialized date and RecurrenceID links back to the
// rule that produced it. Materialized transactions survive rule deletion.
type Transaction struct {
	ID      string
	OwnerID string

	AccountID   string
	Amount      decimal.Decimal
	Kind        Kind
	Category    string
	Date        civil.Date
	Description string
	Method      string

	RecurrenceID string // empty for hand-entered transactions

	CreatedAt time.Time
}
