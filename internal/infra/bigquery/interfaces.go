package bigquery

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/fincast/fincast/internal/domain"
	"github.com/fincast/fincast/internal/schedule"
)

// RuleRepository is the full rule-store surface: the CRUD operations the
// API handlers need plus the narrow cursor operations the scheduler needs.
// It is a superset of schedule.RuleStore.
type RuleRepository interface {
	InsertRule(ctx context.Context, rule *domain.RecurrenceRule) error
	GetRule(ctx context.Context, ownerID, ruleID string) (*domain.RecurrenceRule, error)
	ListRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error)
	ListActiveRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error)
	UpdateRule(ctx context.Context, rule *domain.RecurrenceRule) error
	UpdateRuleCursor(ctx context.Context, ownerID, ruleID string, cursor schedule.CursorUpdate) error
	DeleteRule(ctx context.Context, ownerID, ruleID string) error
}

// LedgerRepository records and reads ledger transactions.
type LedgerRepository interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error)
	ListTransactions(ctx context.Context, ownerID string, start, end *civil.Date) ([]*domain.Transaction, error)
}

// AccountRepository serves account display metadata.
type AccountRepository interface {
	GetAccount(ctx context.Context, ownerID, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error)
	UpsertAccount(ctx context.Context, account *domain.Account) (string, error)
}
