package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/fincast/fincast/internal/domain"
	"github.com/fincast/fincast/internal/schedule"
)

// BigQueryRuleRepository is the BigQuery-backed implementation of
// RuleRepository. It holds a shared client; rule rows are written with DML
// (not the streaming inserter) so cursor updates are visible immediately,
// the same reason the rest of the app keeps mutable tables out of the
// streaming buffer.
type BigQueryRuleRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRuleRepository creates a rule repository with a shared
// BigQuery client. Empty projectID/datasetID fall back to the defaults.
func NewBigQueryRuleRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRuleRepository, error) {
	if projectID == "" {
		projectID = defaultProjectID
	}
	if datasetID == "" {
		datasetID = defaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRuleRepository: creating client: %w", err)
	}
	return &BigQueryRuleRepository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRuleRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryRuleRepository) table() string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, rulesTable)
}

const ruleColumns = `
	rule_id, owner_id, description, amount, kind, category, account_id,
	frequency, start_date, end_date, is_active, pay_on_weekends,
	last_processed, next_process_date, created_ts, updated_ts
`

// InsertRule writes a new rule row.
func (r *BigQueryRuleRepository) InsertRule(ctx context.Context, rule *domain.RecurrenceRule) error {
	row := ruleToRow(rule)

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (%s)
		VALUES (
			@rule_id, @owner_id, @description, @amount, @kind, @category, @account_id,
			@frequency, @start_date, @end_date, @is_active, @pay_on_weekends,
			@last_processed, @next_process_date, @created_ts, @updated_ts
		)
	`, r.table(), ruleColumns))
	q.Parameters = ruleParameters(row)

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertRule: %w", err)
	}
	return nil
}

// GetRule fetches a single rule scoped to its owner. Returns nil when no
// matching rule exists.
func (r *BigQueryRuleRepository) GetRule(ctx context.Context, ownerID, ruleID string) (*domain.RecurrenceRule, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id AND rule_id = @rule_id
		LIMIT 1
	`, ruleColumns, r.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "rule_id", Value: ruleID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetRule: query read: %w", err)
	}

	var row RuleRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetRule: iter next: %w", err)
	}
	return ruleFromRow(&row), nil
}

// ListRules returns every rule for the owner, newest first.
func (r *BigQueryRuleRepository) ListRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error) {
	return r.listRules(ctx, ownerID, false)
}

// ListActiveRules returns the owner's rules with is_active=true.
func (r *BigQueryRuleRepository) ListActiveRules(ctx context.Context, ownerID string) ([]*domain.RecurrenceRule, error) {
	return r.listRules(ctx, ownerID, true)
}

func (r *BigQueryRuleRepository) listRules(ctx context.Context, ownerID string, activeOnly bool) ([]*domain.RecurrenceRule, error) {
	filter := ""
	if activeOnly {
		filter = "AND is_active = TRUE"
	}
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id %s
		ORDER BY created_ts DESC
	`, ruleColumns, r.table(), filter))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("listRules: query read: %w", err)
	}

	var rules []*domain.RecurrenceRule
	for {
		var row RuleRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listRules: iter next: %w", err)
		}
		rules = append(rules, ruleFromRow(&row))
	}
	return rules, nil
}

// UpdateRule overwrites every user-editable field plus the cursor. Used by
// the edit path, where the caller has already recomputed the cursor.
func (r *BigQueryRuleRepository) UpdateRule(ctx context.Context, rule *domain.RecurrenceRule) error {
	row := ruleToRow(rule)
	row.UpdatedTS = nullTimestamp(time.Now())

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET description = @description,
		    amount = @amount,
		    kind = @kind,
		    category = @category,
		    account_id = @account_id,
		    frequency = @frequency,
		    start_date = @start_date,
		    end_date = @end_date,
		    is_active = @is_active,
		    pay_on_weekends = @pay_on_weekends,
		    last_processed = @last_processed,
		    next_process_date = @next_process_date,
		    updated_ts = @updated_ts
		WHERE owner_id = @owner_id AND rule_id = @rule_id
	`, r.table()))
	q.Parameters = ruleParameters(row)

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateRule: %w", err)
	}
	return nil
}

// UpdateRuleCursor merges only the cursor fields, leaving user-owned data
// untouched. This is the write the materializer performs on every pass.
func (r *BigQueryRuleRepository) UpdateRuleCursor(ctx context.Context, ownerID, ruleID string, cursor schedule.CursorUpdate) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET last_processed = @last_processed,
		    next_process_date = @next_process_date,
		    is_active = @is_active,
		    updated_ts = @updated_ts
		WHERE owner_id = @owner_id AND rule_id = @rule_id
	`, r.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "last_processed", Value: nullDate(cursor.LastProcessed)},
		{Name: "next_process_date", Value: nullDate(cursor.NextProcessDate)},
		{Name: "is_active", Value: cursor.IsActive},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "owner_id", Value: ownerID},
		{Name: "rule_id", Value: ruleID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateRuleCursor: %w", err)
	}
	return nil
}

// DeleteRule removes the rule row. Transactions already materialized from
// it are left in place.
func (r *BigQueryRuleRepository) DeleteRule(ctx context.Context, ownerID, ruleID string) error {
	q := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE owner_id = @owner_id AND rule_id = @rule_id
	`, r.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "rule_id", Value: ruleID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteRule: %w", err)
	}
	return nil
}

func ruleParameters(row *RuleRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "rule_id", Value: row.RuleID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "description", Value: row.Description},
		{Name: "amount", Value: row.Amount},
		{Name: "kind", Value: row.Kind},
		{Name: "category", Value: row.Category},
		{Name: "account_id", Value: row.AccountID},
		{Name: "frequency", Value: row.Frequency},
		{Name: "start_date", Value: row.StartDate},
		{Name: "end_date", Value: row.EndDate},
		{Name: "is_active", Value: row.IsActive},
		{Name: "pay_on_weekends", Value: row.PayOnWeekends},
		{Name: "last_processed", Value: row.LastProcessed},
		{Name: "next_process_date", Value: row.NextProcessDate},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

// runDML runs a DML query and waits for the job to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// Interface guards.
var (
	_ RuleRepository     = (*BigQueryRuleRepository)(nil)
	_ schedule.RuleStore = (*BigQueryRuleRepository)(nil)
)
