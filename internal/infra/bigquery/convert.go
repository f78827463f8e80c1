package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/domain"
)

// NUMERIC columns carry 9 decimal digits of scale.
const numericScale = 9

func ruleToRow(r *domain.RecurrenceRule) *RuleRow {
	return &RuleRow{
		RuleID:          r.ID,
		OwnerID:         r.OwnerID,
		Description:     r.Description,
		Amount:          r.Amount.Rat(),
		Kind:            string(r.Kind),
		Category:        r.Category,
		AccountID:       r.AccountID,
		Frequency:       string(r.Frequency),
		StartDate:       r.StartDate,
		EndDate:         nullDate(r.EndDate),
		IsActive:        r.IsActive,
		PayOnWeekends:   r.PayOnWeekends,
		LastProcessed:   nullDate(r.LastProcessed),
		NextProcessDate: nullDate(r.NextProcessDate),
		CreatedTS:       r.CreatedAt,
		UpdatedTS:       nullTimestamp(r.UpdatedAt),
	}
}

func ruleFromRow(row *RuleRow) *domain.RecurrenceRule {
	return &domain.RecurrenceRule{
		ID:              row.RuleID,
		OwnerID:         row.OwnerID,
		Description:     row.Description,
		Amount:          decimal.NewFromBigRat(row.Amount, numericScale),
		Kind:            domain.Kind(row.Kind),
		Category:        row.Category,
		AccountID:       row.AccountID,
		Frequency:       domain.Frequency(row.Frequency),
		StartDate:       row.StartDate,
		EndDate:         datePtr(row.EndDate),
		IsActive:        row.IsActive,
		PayOnWeekends:   row.PayOnWeekends,
		LastProcessed:   datePtr(row.LastProcessed),
		NextProcessDate: datePtr(row.NextProcessDate),
		CreatedAt:       row.CreatedTS,
		UpdatedAt:       row.UpdatedTS.Timestamp,
	}
}

func transactionToRow(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   tx.ID,
		OwnerID:         tx.OwnerID,
		AccountID:       tx.AccountID,
		Amount:          tx.Amount.Rat(),
		Kind:            string(tx.Kind),
		Category:        tx.Category,
		TransactionDate: tx.Date,
		Description:     tx.Description,
		Method:          tx.Method,
		RecurrenceID:    nullString(tx.RecurrenceID),
		CreatedTS:       tx.CreatedAt,
	}
}

func transactionFromRow(row *TransactionRow) *domain.Transaction {
	return &domain.Transaction{
		ID:           row.TransactionID,
		OwnerID:      row.OwnerID,
		AccountID:    row.AccountID,
		Amount:       decimal.NewFromBigRat(row.Amount, numericScale),
		Kind:         domain.Kind(row.Kind),
		Category:     row.Category,
		Date:         row.TransactionDate,
		Description:  row.Description,
		Method:       row.Method,
		RecurrenceID: row.RecurrenceID.StringVal,
		CreatedAt:    row.CreatedTS,
	}
}

func accountFromRow(row *AccountRow) *domain.Account {
	return &domain.Account{
		ID:        row.AccountID,
		OwnerID:   row.OwnerID,
		Name:      row.AccountName,
		Currency:  row.Currency,
		Type:      row.AccountType,
		CreatedAt: row.CreatedTS,
	}
}

func nullDate(d *civil.Date) bigquery.NullDate {
	if d == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: *d, Valid: true}
}

func datePtr(d bigquery.NullDate) *civil.Date {
	if !d.Valid {
		return nil
	}
	v := d.Date
	return &v
}

func nullTimestamp(t time.Time) bigquery.NullTimestamp {
	if t.IsZero() {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: t, Valid: true}
}

func nullString(s string) bigquery.NullString {
	if s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}
