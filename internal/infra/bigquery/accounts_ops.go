package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/fincast/fincast/internal/domain"
)

// BigQueryAccountRepository serves account display metadata from BigQuery.
type BigQueryAccountRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryAccountRepository creates an account repository with a shared
// BigQuery client. Empty projectID/datasetID fall back to the defaults.
func NewBigQueryAccountRepository(ctx context.Context, projectID, datasetID string) (*BigQueryAccountRepository, error) {
	if projectID == "" {
		projectID = defaultProjectID
	}
	if datasetID == "" {
		datasetID = defaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryAccountRepository: creating client: %w", err)
	}
	return &BigQueryAccountRepository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryAccountRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryAccountRepository) table() string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, accountsTable)
}

// GetAccount fetches one account scoped to its owner. Returns nil when no
// matching account exists.
func (r *BigQueryAccountRepository) GetAccount(ctx context.Context, ownerID, accountID string) (*domain.Account, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT account_id, owner_id, account_name, currency, account_type, created_ts
		FROM %s
		WHERE owner_id = @owner_id AND account_id = @account_id
		LIMIT 1
	`, r.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: query read: %w", err)
	}

	var row AccountRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: iter next: %w", err)
	}
	return accountFromRow(&row), nil
}

// ListAccounts returns all accounts for the owner, newest first.
func (r *BigQueryAccountRepository) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT account_id, owner_id, account_name, currency, account_type, created_ts
		FROM %s
		WHERE owner_id = @owner_id
		ORDER BY created_ts DESC
	`, r.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query read: %w", err)
	}

	var accounts []*domain.Account
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: iter next: %w", err)
		}
		accounts = append(accounts, accountFromRow(&row))
	}
	return accounts, nil
}

// UpsertAccount creates the account when it has no ID yet, otherwise
// rewrites its display metadata. Returns the account ID.
func (r *BigQueryAccountRepository) UpsertAccount(ctx context.Context, account *domain.Account) (string, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
		if account.CreatedAt.IsZero() {
			account.CreatedAt = time.Now()
		}
		q := r.client.Query(fmt.Sprintf(`
			INSERT %s (account_id, owner_id, account_name, currency, account_type, created_ts)
			VALUES (@account_id, @owner_id, @account_name, @currency, @account_type, @created_ts)
		`, r.table()))
		q.Parameters = accountParameters(account)
		if err := runDML(ctx, q); err != nil {
			return "", fmt.Errorf("UpsertAccount: insert: %w", err)
		}
		return account.ID, nil
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET account_name = @account_name,
		    currency = @currency,
		    account_type = @account_type
		WHERE owner_id = @owner_id AND account_id = @account_id
	`, r.table()))
	q.Parameters = accountParameters(account)
	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("UpsertAccount: update: %w", err)
	}
	return account.ID, nil
}

func accountParameters(account *domain.Account) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "account_id", Value: account.ID},
		{Name: "owner_id", Value: account.OwnerID},
		{Name: "account_name", Value: account.Name},
		{Name: "currency", Value: account.Currency},
		{Name: "account_type", Value: account.Type},
		{Name: "created_ts", Value: account.CreatedAt},
	}
}

// Interface guard.
var _ AccountRepository = (*BigQueryAccountRepository)(nil)
