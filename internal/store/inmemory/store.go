// Package inmemory is a map-backed implementation of the rule, ledger and
// account repositories. It backs the processor tests and the STORE=memory
// local mode. Data is lost on restart; for persistence use the BigQuery
// repositories.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/fincast/fincast/internal/domain"
	infra "github.com/fincast/fincast/internal/infra/bigquery"
	"github.com/fincast/fincast/internal/schedule"
)

// Store holds rules, transactions and accounts in memory. Safe for
// concurrent use; everything crossing the boundary is copied so callers
// can't mutate stored state behind the lock.
type Store struct {
	mu           sync.RWMutex
	rules        map[string]*domain.RecurrenceRule
	transactions map[string]*domain.Transaction
	accounts     map[string]*domain.Account
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		rules:        make(map[string]*domain.RecurrenceRule),
		transactions: make(map[string]*domain.Transaction),
		accounts:     make(map[string]*domain.Account),
	}
}

// ---- rules ----

// InsertRule implements RuleRepository.
func (s *Store) InsertRule(ctx context.Context, rule *domain.RecurrenceRule) error {
	if rule.ID == "" {
		return fmt.Errorf("InsertRule: rule ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("InsertRule: rule already exists: %s", rule.ID)
	}
	s.rules[rule.ID] = copyRule(rule)
	return nil
}

// GetRule implements RuleRepository. Returns nil when the rule does not
// exist or belongs to another owner.
func (s *Store) GetRule(ctx context.Context, ownerID, ruleID string) (*domain.RecurrenceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[ruleID]
	if !exists || rule.OwnerID != ownerID {
		return nil, nil
	}
	return copyRule(rule), nil
}

// ListRules implements RuleRepository.
func (s *Store) ListRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error) {
	return s.listRules(ownerID, false), nil
}

// ListActiveRules implements RuleRepository and schedule.RuleStore.
func (s *Store) ListActiveRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error) {
	return s.listRules(ownerID, true), nil
}

func (s *Store) listRules(ownerID string, activeOnly bool) []*domain.RecurrenceRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RecurrenceRule
	for _, rule := range s.rules {
		if rule.OwnerID != ownerID {
			continue
		}
		if activeOnly && !rule.IsActive {
			continue
		}
		result = append(result, copyRule(rule))
	}

	// Deterministic ordering so test runs are stable.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// UpdateRule implements RuleRepository.
func (s *Store) UpdateRule(ctx context.Context, rule *domain.RecurrenceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists || existing.OwnerID != rule.OwnerID {
		return fmt.Errorf("UpdateRule: rule not found: %s", rule.ID)
	}
	updated := copyRule(rule)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	s.rules[rule.ID] = updated
	return nil
}

// UpdateRuleCursor implements RuleRepository and schedule.RuleStore: a
// partial merge touching only the cursor fields.
func (s *Store) UpdateRuleCursor(ctx context.Context, ownerID, ruleID string, cursor schedule.CursorUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[ruleID]
	if !exists || rule.OwnerID != ownerID {
		return fmt.Errorf("UpdateRuleCursor: rule not found: %s", ruleID)
	}
	rule.LastProcessed = copyDate(cursor.LastProcessed)
	rule.NextProcessDate = copyDate(cursor.NextProcessDate)
	rule.IsActive = cursor.IsActive
	rule.UpdatedAt = time.Now()
	return nil
}

// DeleteRule implements RuleRepository. Transactions materialized from the
// rule are kept.
func (s *Store) DeleteRule(ctx context.Context, ownerID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[ruleID]
	if !exists || rule.OwnerID != ownerID {
		return fmt.Errorf("DeleteRule: rule not found: %s", ruleID)
	}
	delete(s.rules, ruleID)
	return nil
}

// ---- ledger ----

// CreateTransaction implements LedgerRepository and schedule.Ledger.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *tx
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.transactions[stored.ID] = &stored
	return stored.ID, nil
}

// ListTransactions implements LedgerRepository: the owner's transactions,
// optionally bounded by an inclusive date range, oldest first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, start, end *civil.Date) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		if start != nil && tx.Date.Before(*start) {
			continue
		}
		if end != nil && tx.Date.After(*end) {
			continue
		}
		txCopy := *tx
		result = append(result, &txCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ---- accounts ----

// GetAccount implements AccountRepository. Returns nil when absent.
func (s *Store) GetAccount(ctx context.Context, ownerID, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[accountID]
	if !exists || account.OwnerID != ownerID {
		return nil, nil
	}
	accountCopy := *account
	return &accountCopy, nil
}

// ListAccounts implements AccountRepository.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Account
	for _, account := range s.accounts {
		if account.OwnerID != ownerID {
			continue
		}
		accountCopy := *account
		result = append(result, &accountCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpsertAccount implements AccountRepository.
func (s *Store) UpsertAccount(ctx context.Context, account *domain.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *account
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.accounts[stored.ID] = &stored
	return stored.ID, nil
}

// copyRule deep-copies a rule, including its nullable cursor dates, so
// stored state never aliases caller memory.
func copyRule(r *domain.RecurrenceRule) *domain.RecurrenceRule {
	c := *r
	c.EndDate = copyDate(r.EndDate)
	c.LastProcessed = copyDate(r.LastProcessed)
	c.NextProcessDate = copyDate(r.NextProcessDate)
	return &c
}

func copyDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Ensure Store satisfies every repository surface.
var (
	_ infra.RuleRepository    = (*Store)(nil)
	_ infra.LedgerRepository  = (*Store)(nil)
	_ infra.AccountRepository = (*Store)(nil)
	_ schedule.RuleStore      = (*Store)(nil)
	_ schedule.Ledger         = (*Store)(nil)
)
