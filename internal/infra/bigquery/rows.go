package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

const (
	defaultProjectID = "fincast-dev"
	defaultDatasetID = "finance"

	rulesTable        = "recurrence_rules"
	transactionsTable = "transactions"
	accountsTable     = "accounts"
)

// RuleRow is the recurrence_rules table schema. DATE columns keep the
// scheduler's calendar semantics intact end to end: no timestamps, no
// timezone conversion on the cursor.
type RuleRow struct {
	RuleID  string `bigquery:"rule_id"`  // REQUIRED
	OwnerID string `bigquery:"owner_id"` // REQUIRED

	Description string   `bigquery:"description"` // NULLABLE ("" when unset)
	Amount      *big.Rat `bigquery:"amount"`      // REQUIRED NUMERIC
	Kind        string   `bigquery:"kind"`        // REQUIRED income|expense
	Category    string   `bigquery:"category"`    // NULLABLE free-form label
	AccountID   string   `bigquery:"account_id"`  // REQUIRED

	Frequency string            `bigquery:"frequency"`  // REQUIRED
	StartDate civil.Date        `bigquery:"start_date"` // REQUIRED DATE
	EndDate   bigquery.NullDate `bigquery:"end_date"`   // NULLABLE DATE

	IsActive      bool `bigquery:"is_active"`
	PayOnWeekends bool `bigquery:"pay_on_weekends"`

	LastProcessed   bigquery.NullDate `bigquery:"last_processed"`    // NULLABLE DATE
	NextProcessDate bigquery.NullDate `bigquery:"next_process_date"` // NULLABLE DATE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// TransactionRow is the finance.transactions table schema.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	OwnerID       string `bigquery:"owner_id"`       // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED

	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Kind            string     `bigquery:"kind"`             // REQUIRED
	Category        string     `bigquery:"category"`         // REQUIRED (closed set)
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED DATE
	Description     string     `bigquery:"description"`      // NULLABLE
	Method          string     `bigquery:"method"`           // NULLABLE

	RecurrenceID bigquery.NullString `bigquery:"recurrence_id"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// AccountRow is the finance.accounts table schema. Only display metadata;
// balances live with the ledger side of the application.
type AccountRow struct {
	AccountID string `bigquery:"account_id"` // REQUIRED
	OwnerID   string `bigquery:"owner_id"`   // REQUIRED

	AccountName string `bigquery:"account_name"` // NULLABLE
	Currency    string `bigquery:"currency"`     // NULLABLE
	AccountType string `bigquery:"account_type"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
