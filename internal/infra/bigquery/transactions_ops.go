package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/fincast/fincast/internal/domain"
	"github.com/fincast/fincast/internal/schedule"
)

// BigQueryLedgerRepository is the BigQuery-backed ledger. Transactions are
// append-only, so the streaming inserter is fine here.
type BigQueryLedgerRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryLedgerRepository creates a ledger repository with a shared
// BigQuery client. Empty projectID/datasetID fall back to the defaults.
func NewBigQueryLedgerRepository(ctx context.Context, projectID, datasetID string) (*BigQueryLedgerRepository, error) {
	if projectID == "" {
		projectID = defaultProjectID
	}
	if datasetID == "" {
		datasetID = defaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// CreateTransaction inserts one ledger transaction and returns its ID.
func (r *BigQueryLedgerRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	row := transactionToRow(tx)

	table := r.client.DatasetInProject(r.projectID, r.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return "", fmt.Errorf("CreateTransaction: inserting row: %w", err)
	}
	return tx.ID, nil
}

// ListTransactions queries the owner's transactions, optionally bounded by
// an inclusive date range, oldest first.
func (r *BigQueryLedgerRepository) ListTransactions(ctx context.Context, ownerID string, start, end *civil.Date) ([]*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT
			transaction_id, owner_id, account_id, amount, kind, category,
			transaction_date, description, method, recurrence_id, created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE owner_id = @owner_id
	`, r.projectID, r.datasetID, transactionsTable)

	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}
	if start != nil {
		query += " AND transaction_date >= @start_date"
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: *start})
	}
	if end != nil {
		query += " AND transaction_date <= @end_date"
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: *end})
	}
	query += " ORDER BY transaction_date, created_ts"

	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		txs = append(txs, transactionFromRow(&row))
	}
	return txs, nil
}

// Interface guards.
var (
	_ LedgerRepository = (*BigQueryLedgerRepository)(nil)
	_ schedule.Ledger  = (*BigQueryLedgerRepository)(nil)
)
