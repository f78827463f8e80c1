package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/domain"
)

// fakeRuleStore serves rules from a slice and applies cursor updates in
// place, like a real store would.
type fakeRuleStore struct {
	rules        []*domain.RecurrenceRule
	listErr      error
	cursorErr    error
	cursorWrites int
}

func (s *fakeRuleStore) ListActiveRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var active []*domain.RecurrenceRule
	for _, r := range s.rules {
		if r.OwnerID == ownerID && r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *fakeRuleStore) UpdateRuleCursor(ctx context.Context, ownerID, ruleID string, cursor CursorUpdate) error {
	if s.cursorErr != nil {
		return s.cursorErr
	}
	s.cursorWrites++
	for _, r := range s.rules {
		if r.ID == ruleID && r.OwnerID == ownerID {
			r.LastProcessed = cursor.LastProcessed
			r.NextProcessDate = cursor.NextProcessDate
			r.IsActive = cursor.IsActive
			return nil
		}
	}
	return fmt.Errorf("rule not found: %s", ruleID)
}

// fakeLedger records created transactions and can be told to fail on the
// nth write (1-based) of a given rule.
type fakeLedger struct {
	created    []*domain.Transaction
	failOnCall int
	calls      int
}

var errLedgerDown = errors.New("ledger unavailable")

func (l *fakeLedger) CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	l.calls++
	if l.failOnCall > 0 && l.calls == l.failOnCall {
		return "", errLedgerDown
	}
	l.created = append(l.created, tx)
	return fmt.Sprintf("tx-%d", len(l.created)), nil
}

func newTestProcessor(store *fakeRuleStore, ledger *fakeLedger, today civil.Date) *Processor {
	p := NewProcessor(store, ledger, zerolog.Nop())
	return p.WithClock(func() time.Time {
		return time.Date(today.Year, today.Month, today.Day, 12, 0, 0, 0, time.UTC)
	})
}

func monthlyRule(id string) *domain.RecurrenceRule {
	return &domain.RecurrenceRule{
		ID:            id,
		OwnerID:       "owner-1",
		Description:   "Rent",
		Amount:        decimal.NewFromInt(1200),
		Kind:          domain.KindExpense,
		Category:      "Housing",
		AccountID:     "acct-1",
		Frequency:     domain.FrequencyMonthly,
		StartDate:     date(2024, time.January, 15),
		IsActive:      true,
		PayOnWeekends: true,
	}
}

// The never-processed rule catches up on its whole history in one pass:
// four occurrences due by 2024-04-20, cursor left at the May occurrence.
func TestProcessor_CatchUp(t *testing.T) {
	rule := monthlyRule("rule-1")
	SeedCursor(rule)
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{}
	p := newTestProcessor(store, ledger, date(2024, time.April, 20))

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ProcessDueOccurrences failed: %v", err)
	}
	if created != 4 {
		t.Fatalf("created = %d, want 4", created)
	}

	wantDates := []civil.Date{
		date(2024, time.January, 15),
		date(2024, time.February, 15),
		date(2024, time.March, 15),
		date(2024, time.April, 15),
	}
	for i, tx := range ledger.created {
		if tx.Date != wantDates[i] {
			t.Errorf("transaction %d date = %v, want %v", i, tx.Date, wantDates[i])
		}
		if tx.RecurrenceID != "rule-1" {
			t.Errorf("transaction %d recurrence ID = %q", i, tx.RecurrenceID)
		}
		if tx.Method != domain.MethodBankTransfer {
			t.Errorf("transaction %d method = %q, want bank_transfer", i, tx.Method)
		}
	}

	if rule.LastProcessed == nil || *rule.LastProcessed != date(2024, time.April, 15) {
		t.Errorf("lastProcessed = %v, want 2024-04-15", rule.LastProcessed)
	}
	if rule.NextProcessDate == nil || *rule.NextProcessDate != date(2024, time.May, 15) {
		t.Errorf("nextProcessDate = %v, want 2024-05-15", rule.NextProcessDate)
	}
}

// Running the processor twice with no time elapsed must not materialize
// anything on the second pass, and must not rewrite an unchanged cursor.
func TestProcessor_SecondRunIsIdempotent(t *testing.T) {
	rule := monthlyRule("rule-1")
	SeedCursor(rule)
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{}
	p := newTestProcessor(store, ledger, date(2024, time.April, 20))

	if _, err := p.ProcessDueOccurrences(context.Background(), "owner-1"); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	writesAfterFirst := store.cursorWrites

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if created != 0 {
		t.Errorf("second pass created = %d, want 0", created)
	}
	if store.cursorWrites != writesAfterFirst {
		t.Errorf("second pass wrote the cursor %d extra times", store.cursorWrites-writesAfterFirst)
	}
}

// 2024-06-15 is a Saturday. With payOnWeekends=false the transaction lands
// on Friday the 14th, but the cursor advances from the 15th: the weekend
// shift never bends the cadence.
func TestProcessor_WeekendAdjustmentLeavesCursorAlone(t *testing.T) {
	rule := monthlyRule("rule-1")
	rule.StartDate = date(2024, time.June, 15)
	rule.PayOnWeekends = false
	SeedCursor(rule)
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{}
	p := newTestProcessor(store, ledger, date(2024, time.June, 20))

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ProcessDueOccurrences failed: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if got, want := ledger.created[0].Date, date(2024, time.June, 14); got != want {
		t.Errorf("materialized date = %v, want Friday %v", got, want)
	}
	if rule.LastProcessed == nil || *rule.LastProcessed != date(2024, time.June, 15) {
		t.Errorf("lastProcessed = %v, want unadjusted 2024-06-15", rule.LastProcessed)
	}
	if rule.NextProcessDate == nil || *rule.NextProcessDate != date(2024, time.July, 15) {
		t.Errorf("nextProcessDate = %v, want 2024-07-15", rule.NextProcessDate)
	}
}

// An occurrence scheduled for exactly today is due: the boundary is
// inclusive.
func TestProcessor_TodayIsInclusive(t *testing.T) {
	rule := monthlyRule("rule-1")
	rule.NextProcessDate = datePtrOf(date(2024, time.April, 15))
	rule.LastProcessed = datePtrOf(date(2024, time.March, 15))
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{}
	p := newTestProcessor(store, ledger, date(2024, time.April, 15))

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ProcessDueOccurrences failed: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
}

func TestProcessor_EndDateExhaustion(t *testing.T) {
	t.Run("last in-range occurrence still materializes", func(t *testing.T) {
		rule := monthlyRule("rule-1")
		rule.EndDate = datePtrOf(date(2024, time.February, 20))
		SeedCursor(rule)
		store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
		ledger := &fakeLedger{}
		p := newTestProcessor(store, ledger, date(2024, time.June, 1))

		created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
		if err != nil {
			t.Fatalf("ProcessDueOccurrences failed: %v", err)
		}
		if created != 2 { // Jan 15 and Feb 15; Mar 15 is past the end date
			t.Errorf("created = %d, want 2", created)
		}
		if rule.IsActive {
			t.Error("rule should be deactivated after exhausting its end date")
		}
		if rule.NextProcessDate != nil {
			t.Errorf("nextProcessDate = %v, want nil", rule.NextProcessDate)
		}
		if rule.LastProcessed == nil || *rule.LastProcessed != date(2024, time.February, 15) {
			t.Errorf("lastProcessed = %v, want 2024-02-15", rule.LastProcessed)
		}
	})

	t.Run("nothing due but end date already passed", func(t *testing.T) {
		rule := monthlyRule("rule-1")
		rule.EndDate = datePtrOf(date(2024, time.April, 30))
		rule.LastProcessed = datePtrOf(date(2024, time.April, 15))
		rule.NextProcessDate = datePtrOf(date(2024, time.May, 15))
		store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
		ledger := &fakeLedger{}
		p := newTestProcessor(store, ledger, date(2024, time.June, 1))

		created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
		if err != nil {
			t.Fatalf("ProcessDueOccurrences failed: %v", err)
		}
		if created != 0 {
			t.Errorf("created = %d, want 0", created)
		}
		if rule.IsActive || rule.NextProcessDate != nil {
			t.Errorf("cleanup pass should deactivate: active=%v next=%v", rule.IsActive, rule.NextProcessDate)
		}
	})
}

// A ledger failure on the third of four due occurrences keeps the first
// two, leaves the cursor at the failed date, and the next pass resumes
// exactly there.
func TestProcessor_LedgerFailureStopsAtFailedOccurrence(t *testing.T) {
	rule := monthlyRule("rule-1")
	SeedCursor(rule)
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{failOnCall: 3}
	p := newTestProcessor(store, ledger, date(2024, time.April, 20))

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("batch error = %v, want nil (per-rule failures are isolated)", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if rule.LastProcessed == nil || *rule.LastProcessed != date(2024, time.February, 15) {
		t.Errorf("lastProcessed = %v, want 2024-02-15", rule.LastProcessed)
	}
	if rule.NextProcessDate == nil || *rule.NextProcessDate != date(2024, time.March, 15) {
		t.Errorf("nextProcessDate = %v, want failed date 2024-03-15", rule.NextProcessDate)
	}

	// Ledger recovers; the retry picks up from the failed occurrence.
	ledger.failOnCall = 0
	created, err = p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("retry pass failed: %v", err)
	}
	if created != 2 { // Mar 15 and Apr 15
		t.Errorf("retry created = %d, want 2", created)
	}
	if got := ledger.created[2].Date; got != date(2024, time.March, 15) {
		t.Errorf("retry resumed at %v, want 2024-03-15", got)
	}
}

// Rules with missing account or non-positive amount are skipped for the
// pass without being deactivated or written to.
func TestProcessor_SkipsUnschedulableRules(t *testing.T) {
	noAccount := monthlyRule("rule-1")
	noAccount.AccountID = ""
	SeedCursor(noAccount)

	zeroAmount := monthlyRule("rule-2")
	zeroAmount.Amount = decimal.Zero
	SeedCursor(zeroAmount)

	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{noAccount, zeroAmount}}
	ledger := &fakeLedger{}
	p := newTestProcessor(store, ledger, date(2024, time.April, 20))

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ProcessDueOccurrences failed: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	if store.cursorWrites != 0 {
		t.Errorf("cursorWrites = %d, want 0", store.cursorWrites)
	}
	if !noAccount.IsActive || !zeroAmount.IsActive {
		t.Error("skipped rules must stay active")
	}
}

// A failure in one rule must not stop sibling rules from processing.
func TestProcessor_RuleFailureIsolation(t *testing.T) {
	failing := monthlyRule("rule-1")
	SeedCursor(failing)
	healthy := monthlyRule("rule-2")
	healthy.CreatedAt = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	SeedCursor(healthy)

	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{failing, healthy}}
	ledger := &fakeLedger{failOnCall: 1} // first write (rule-1, Jan 15) fails
	p := newTestProcessor(store, ledger, date(2024, time.February, 1))

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("batch error = %v, want nil", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 (healthy rule only)", created)
	}
	if healthy.LastProcessed == nil {
		t.Error("healthy rule was not processed")
	}
	if failing.LastProcessed != nil {
		t.Errorf("failing rule lastProcessed = %v, want nil", failing.LastProcessed)
	}
}

// A store failure on the batch query is the one error that propagates.
func TestProcessor_ListErrorPropagates(t *testing.T) {
	store := &fakeRuleStore{listErr: errors.New("store unreachable")}
	p := newTestProcessor(store, &fakeLedger{}, date(2024, time.April, 20))

	if _, err := p.ProcessDueOccurrences(context.Background(), "owner-1"); err == nil {
		t.Fatal("expected batch query error to propagate")
	}
}

// A daily rule neglected for years stops at the iteration cap and resumes
// on the next invocation from the persisted cursor.
func TestProcessor_IterationCapBoundsCatchUp(t *testing.T) {
	rule := monthlyRule("rule-1")
	rule.Frequency = domain.FrequencyDaily
	rule.StartDate = date(2021, time.January, 1)
	SeedCursor(rule)
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{}
	today := date(2024, time.June, 1)
	p := newTestProcessor(store, ledger, today)

	created, err := p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ProcessDueOccurrences failed: %v", err)
	}
	if created != maxScheduleIterations {
		t.Fatalf("created = %d, want cap %d", created, maxScheduleIterations)
	}
	if rule.NextProcessDate == nil || !rule.NextProcessDate.Before(today) {
		t.Fatalf("cursor should still be behind today, got %v", rule.NextProcessDate)
	}

	// Next invocation continues from where the cap stopped.
	created, err = p.ProcessDueOccurrences(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if created == 0 {
		t.Error("second pass should continue the catch-up")
	}
}

// Category resolution and description fallback on the materialized
// transaction.
func TestProcessor_TransactionShape(t *testing.T) {
	rule := monthlyRule("rule-1")
	rule.Description = ""
	rule.Category = "weird hobby stuff"
	rule.Kind = domain.KindIncome
	SeedCursor(rule)
	store := &fakeRuleStore{rules: []*domain.RecurrenceRule{rule}}
	ledger := &fakeLedger{}
	p := newTestProcessor(store, ledger, date(2024, time.January, 20))

	if _, err := p.ProcessDueOccurrences(context.Background(), "owner-1"); err != nil {
		t.Fatalf("ProcessDueOccurrences failed: %v", err)
	}
	if len(ledger.created) != 1 {
		t.Fatalf("created %d transactions, want 1", len(ledger.created))
	}
	tx := ledger.created[0]
	if tx.Category != domain.CategoryOther {
		t.Errorf("category = %q, want fallback %q", tx.Category, domain.CategoryOther)
	}
	if tx.Description != "Recurring income" {
		t.Errorf("description = %q, want generic fallback", tx.Description)
	}
	if tx.Method != domain.MethodDirectDeposit {
		t.Errorf("method = %q, want direct_deposit", tx.Method)
	}
	if !tx.Amount.Equal(rule.Amount) {
		t.Errorf("amount = %v, want %v", tx.Amount, rule.Amount)
	}
}
