package schedule

import (
	"cloud.google.com/go/civil"

	"github.com/fincast/fincast/internal/calendar"
	"github.com/fincast/fincast/internal/domain"
)

// maxScheduleIterations bounds every catch-up loop. Roughly two years of
// daily cadence: a rule neglected longer will not fully backfill in one
// pass, but the persisted cursor lets the next invocation carry on.
const maxScheduleIterations = 730

// ComputeNextProcessDate returns the first occurrence date on or after
// reference that is reachable from start by repeated frequency steps. If
// the iteration cap is hit, the last candidate reached is returned rather
// than looping forever; that result is behind reference but still on the
// rule's cadence, so later invocations converge.
func ComputeNextProcessDate(start civil.Date, f domain.Frequency, reference civil.Date) civil.Date {
	next := start
	for i := 0; i < maxScheduleIterations; i++ {
		if !next.Before(reference) {
			return next
		}
		next = calendar.AddFrequency(next, f, start.Day)
	}
	return next
}

// SeedCursor initializes the cursor of a freshly created rule: the first
// occurrence to evaluate is the start date itself, so a backdated rule
// catches up on its full history on the first processing pass.
func SeedCursor(rule *domain.RecurrenceRule) {
	start := rule.StartDate
	rule.LastProcessed = nil
	rule.NextProcessDate = &start
	if rule.EndDate != nil && start.After(*rule.EndDate) {
		rule.NextProcessDate = nil
		rule.IsActive = false
	}
}

// RecomputeCursor re-seeds a rule's cursor after a user edit. Reactivating
// a rule always seeds the schedule forward from today; a plain edit while
// the rule stays active re-aligns from the current cursor position so the
// historical cadence is preserved.
func RecomputeCursor(rule *domain.RecurrenceRule, today civil.Date, reactivated bool) {
	reference := today
	if !reactivated && rule.NextProcessDate != nil {
		reference = *rule.NextProcessDate
	}

	next := ComputeNextProcessDate(rule.StartDate, rule.Frequency, reference)
	if rule.EndDate != nil && next.After(*rule.EndDate) {
		rule.NextProcessDate = nil
		rule.IsActive = false
		return
	}
	rule.NextProcessDate = &next
}

// nextEvaluationDate resolves where a processing pass should begin: the
// persisted cursor when present, otherwise one step past lastProcessed,
// otherwise the rule's start date.
func nextEvaluationDate(rule *domain.RecurrenceRule) civil.Date {
	if rule.NextProcessDate != nil {
		return *rule.NextProcessDate
	}
	if rule.LastProcessed != nil {
		return calendar.AddFrequency(*rule.LastProcessed, rule.Frequency, rule.StartDate.Day)
	}
	return rule.StartDate
}
