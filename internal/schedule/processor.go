// Package schedule implements the recurring-transaction engine: occurrence
// scheduling, exactly-once-per-cursor materialization against an external
// ledger, and the per-owner processing pass that read paths invoke before
// surfacing recurring or transaction data.
package schedule

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/fincast/fincast/internal/calendar"
	"github.com/fincast/fincast/internal/domain"
)

// Processor scans all active rules for an owner and materializes every due
// occurrence.
//
// Materialization is at-least-once, not exactly-once: the ledger write and
// the cursor update are two separate non-transactional writes, and there is
// no optimistic-concurrency token on the cursor, so concurrent invocations
// for the same owner (or a crash between the two writes) can replay an
// occurrence. Downstream consumers must tolerate the occasional duplicate.
type Processor struct {
	rules  RuleStore
	ledger Ledger
	log    zerolog.Logger
	now    func() time.Time
}

// NewProcessor creates a processor over the given rule store and ledger.
func NewProcessor(rules RuleStore, ledger Ledger, log zerolog.Logger) *Processor {
	return &Processor{
		rules:  rules,
		ledger: ledger,
		log:    log,
		now:    time.Now,
	}
}

// WithClock overrides the processor's notion of "now". Tests use this to
// pin the evaluation day.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// ProcessDueOccurrences materializes every due occurrence across the
// owner's active rules and returns the number of transactions created.
// Failures in one rule never abort sibling rules; only a failure of the
// batch query itself propagates.
func (p *Processor) ProcessDueOccurrences(ctx context.Context, ownerID string) (int, error) {
	today := calendar.DateOf(p.now())

	rules, err := p.rules.ListActiveRules(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("ProcessDueOccurrences: listing active rules: %w", err)
	}

	total := 0
	for _, rule := range rules {
		created, err := p.processRule(ctx, rule, today)
		total += created
		if err != nil {
			p.log.Error().
				Err(err).
				Str("owner_id", ownerID).
				Str("rule_id", rule.ID).
				Int("created", created).
				Msg("Rule processing aborted")
		}
	}
	return total, nil
}

// EnsureProcessed is the invocation trigger for read paths: any caller
// about to read recurring or transaction data calls this first so "due
// today" items are materialized before being displayed or aggregated. It is
// cheap when nothing is due.
func (p *Processor) EnsureProcessed(ctx context.Context, ownerID string) error {
	created, err := p.ProcessDueOccurrences(ctx, ownerID)
	if err != nil {
		return err
	}
	if created > 0 {
		p.log.Info().
			Str("owner_id", ownerID).
			Int("created", created).
			Msg("Materialized due recurring transactions")
	}
	return nil
}

// processRule runs one rule's catch-up loop: enumerate due occurrences
// oldest to newest from the persisted cursor, write each to the ledger,
// then persist the advanced cursor. A ledger failure stops the loop without
// advancing past the failed occurrence; progress made before the failure is
// kept.
func (p *Processor) processRule(ctx context.Context, rule *domain.RecurrenceRule, today civil.Date) (int, error) {
	if !rule.Schedulable() {
		// Skip-and-retry-later: bad data may be fixed by a user edit, so
		// the rule is neither deactivated nor surfaced as an error.
		p.log.Debug().
			Str("rule_id", rule.ID).
			Str("account_id", rule.AccountID).
			Str("amount", rule.Amount.String()).
			Msg("Skipping unschedulable rule")
		return 0, nil
	}

	anchor := rule.StartDate.Day
	sched := nextEvaluationDate(rule)
	last := rule.LastProcessed

	created := 0
	var writeErr error
	for i := 0; i < maxScheduleIterations; i++ {
		if sched.After(today) {
			break
		}
		if rule.EndDate != nil && sched.After(*rule.EndDate) {
			break
		}

		tx := buildTransaction(rule, sched)
		if _, err := p.ledger.CreateTransaction(ctx, tx); err != nil {
			writeErr = fmt.Errorf("processRule: ledger write for %s: %w", sched, err)
			break
		}
		created++

		occurrence := sched
		last = &occurrence
		sched = calendar.AddFrequency(sched, rule.Frequency, anchor)
	}

	// The schedule is exhausted when the cursor has moved past endDate,
	// including the cleanup case where nothing was due at all. A write
	// failure can never coincide with exhaustion: the loop only attempts
	// occurrences within bounds.
	cursor := CursorUpdate{LastProcessed: last, IsActive: rule.IsActive}
	if rule.EndDate != nil && sched.After(*rule.EndDate) {
		cursor.NextProcessDate = nil
		cursor.IsActive = false
	} else {
		next := sched
		cursor.NextProcessDate = &next
	}

	if !cursorChanged(rule, cursor) {
		return created, writeErr
	}

	if err := p.rules.UpdateRuleCursor(ctx, rule.OwnerID, rule.ID, cursor); err != nil {
		if writeErr != nil {
			return created, fmt.Errorf("processRule: persisting cursor after %w: %v", writeErr, err)
		}
		return created, fmt.Errorf("processRule: persisting cursor: %w", err)
	}

	rule.LastProcessed = cursor.LastProcessed
	rule.NextProcessDate = cursor.NextProcessDate
	rule.IsActive = cursor.IsActive
	return created, writeErr
}

// buildTransaction assembles the ledger entry for one due occurrence. The
// recorded date is weekend-adjusted; the cursor never is.
func buildTransaction(rule *domain.RecurrenceRule, scheduled civil.Date) *domain.Transaction {
	return &domain.Transaction{
		OwnerID:      rule.OwnerID,
		AccountID:    rule.AccountID,
		Amount:       rule.Amount,
		Kind:         rule.Kind,
		Category:     domain.ResolveLedgerCategory(rule.Category),
		Date:         calendar.AdjustForWeekends(scheduled, rule.PayOnWeekends),
		Description:  rule.TransactionDescription(),
		Method:       domain.MethodFor(rule.Kind),
		RecurrenceID: rule.ID,
	}
}

// cursorChanged reports whether persisting the update would change the
// rule's stored cursor. Unchanged cursors are not written, keeping the
// nothing-due invocation cheap.
func cursorChanged(rule *domain.RecurrenceRule, cursor CursorUpdate) bool {
	if cursor.IsActive != rule.IsActive {
		return true
	}
	if !datePtrEqual(cursor.LastProcessed, rule.LastProcessed) {
		return true
	}
	return !datePtrEqual(cursor.NextProcessDate, rule.NextProcessDate)
}

func datePtrEqual(a, b *civil.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
