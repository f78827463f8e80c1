package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/api/middleware"
	"github.com/fincast/fincast/internal/calendar"
	"github.com/fincast/fincast/internal/domain"
	"github.com/fincast/fincast/internal/infra/bigquery"
	"github.com/fincast/fincast/internal/schedule"
)

// ownerID resolves the acting owner from the X-Owner-ID header, falling
// back to the owner_id query parameter. Empty means unauthenticated.
func ownerID(r *http.Request) string {
	if id := r.Header.Get("X-Owner-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("owner_id")
}

// rulePayload is the request body for creating or updating a recurring
// rule. Dates are YYYY-MM-DD strings; amount accepts a JSON number or a
// quoted decimal string.
type rulePayload struct {
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          string          `json:"kind"`
	Category      string          `json:"category"`
	AccountID     string          `json:"account_id"`
	Frequency     string          `json:"frequency"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	PayOnWeekends bool            `json:"pay_on_weekends"`
	IsActive      *bool           `json:"is_active"`
}

// ruleResponse is the wire shape of a rule, cursor included. AccountName
// and AccountCurrency are display decoration resolved from the owner's
// accounts; they play no part in scheduling.
type ruleResponse struct {
	ID              string          `json:"id"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Kind            domain.Kind     `json:"kind"`
	Category        string          `json:"category"`
	AccountID       string          `json:"account_id"`
	AccountName     string          `json:"account_name,omitempty"`
	AccountCurrency string          `json:"account_currency,omitempty"`
	Frequency       string          `json:"frequency"`
	StartDate       civil.Date      `json:"start_date"`
	EndDate         *civil.Date     `json:"end_date,omitempty"`
	IsActive        bool            `json:"is_active"`
	PayOnWeekends   bool            `json:"pay_on_weekends"`
	LastProcessed   *civil.Date     `json:"last_processed,omitempty"`
	NextProcessDate *civil.Date     `json:"next_process_date,omitempty"`
	State           string          `json:"state"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toRuleResponse(rule *domain.RecurrenceRule, today civil.Date) ruleResponse {
	return ruleResponse{
		ID:              rule.ID,
		Description:     rule.Description,
		Amount:          rule.Amount,
		Kind:            rule.Kind,
		Category:        rule.Category,
		AccountID:       rule.AccountID,
		Frequency:       string(rule.Frequency),
		StartDate:       rule.StartDate,
		EndDate:         rule.EndDate,
		IsActive:        rule.IsActive,
		PayOnWeekends:   rule.PayOnWeekends,
		LastProcessed:   rule.LastProcessed,
		NextProcessDate: rule.NextProcessDate,
		State:           string(rule.State(today)),
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}

// RulesHandler serves the recurring-rule CRUD endpoints.
type RulesHandler struct {
	repo      bigquery.RuleRepository
	accounts  bigquery.AccountRepository
	processor *schedule.Processor
	log       zerolog.Logger
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(repo bigquery.RuleRepository, accounts bigquery.AccountRepository, processor *schedule.Processor, log zerolog.Logger) *RulesHandler {
	return &RulesHandler{repo: repo, accounts: accounts, processor: processor, log: log}
}

// CreateRule handles POST /api/recurring
func (h *RulesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}

	var req rulePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, errMsg := ruleFromPayload(&req, owner)
	if errMsg != "" {
		middleware.WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	now := time.Now().UTC()
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	schedule.SeedCursor(rule)

	if err := h.repo.InsertRule(r.Context(), rule); err != nil {
		h.log.Error().Err(err).Str("owner_id", owner).Msg("Failed to create rule")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toRuleResponse(rule, calendar.DateOf(now)))
}

// ListRules handles GET /api/recurring
//
// Due occurrences are materialized before the list is read, so the cursor
// fields in the response always reflect today.
func (h *RulesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerID(r)
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}

	if err := h.processor.EnsureProcessed(ctx, owner); err != nil {
		h.log.Error().Err(err).Str("owner_id", owner).Msg("Failed to process due occurrences")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to process recurring transactions")
		return
	}

	rules, err := h.repo.ListRules(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", owner).Msg("Failed to list rules")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	// Account metadata is decoration only; a lookup failure degrades the
	// response rather than failing the read.
	accountsByID := map[string]*domain.Account{}
	if accounts, err := h.accounts.ListAccounts(ctx, owner); err != nil {
		h.log.Warn().Err(err).Str("owner_id", owner).Msg("Failed to list accounts for decoration")
	} else {
		for _, a := range accounts {
			accountsByID[a.ID] = a
		}
	}

	today := calendar.DateOf(time.Now())
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp := toRuleResponse(rule, today)
		if a, ok := accountsByID[rule.AccountID]; ok {
			resp.AccountName = a.Name
			resp.AccountCurrency = a.Currency
		}
		out = append(out, resp)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rules": out,
		"count": len(out),
	})
}

// UpdateRule handles PUT /api/recurring/{id}
func (h *RulesHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerID(r)
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}
	ruleID := r.PathValue("id")

	existing, err := h.repo.GetRule(ctx, owner, ruleID)
	if err != nil {
		h.log.Error().Err(err).Str("rule_id", ruleID).Msg("Failed to get rule")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to get rule")
		return
	}
	if existing == nil {
		middleware.WriteError(w, http.StatusNotFound, "rule not found")
		return
	}

	var req rulePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, errMsg := ruleFromPayload(&req, owner)
	if errMsg != "" {
		middleware.WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	wasActive := existing.IsActive
	updated.IsActive = wasActive
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}

	updated.ID = existing.ID
	updated.LastProcessed = existing.LastProcessed
	updated.NextProcessDate = existing.NextProcessDate
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	// Reactivation schedules forward from today; a plain edit re-aligns
	// from the existing cursor so history is not replayed.
	today := calendar.DateOf(time.Now())
	if updated.IsActive {
		schedule.RecomputeCursor(updated, today, !wasActive)
	}

	if err := h.repo.UpdateRule(ctx, updated); err != nil {
		h.log.Error().Err(err).Str("rule_id", ruleID).Msg("Failed to update rule")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toRuleResponse(updated, today))
}

// DeleteRule handles DELETE /api/recurring/{id}
//
// Transactions already materialized from the rule are ledger history and
// are never deleted with it.
func (h *RulesHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerID(r)
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}
	ruleID := r.PathValue("id")

	existing, err := h.repo.GetRule(ctx, owner, ruleID)
	if err != nil {
		h.log.Error().Err(err).Str("rule_id", ruleID).Msg("Failed to get rule")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	if existing == nil {
		middleware.WriteError(w, http.StatusNotFound, "rule not found")
		return
	}

	if err := h.repo.DeleteRule(ctx, owner, ruleID); err != nil {
		h.log.Error().Err(err).Str("rule_id", ruleID).Msg("Failed to delete rule")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": ruleID})
}

// ruleFromPayload validates the payload and builds a rule for the owner.
// The returned message is empty on success.
func ruleFromPayload(req *rulePayload, owner string) (*domain.RecurrenceRule, string) {
	if req.AccountID == "" {
		return nil, "account_id is required"
	}
	if !req.Amount.IsPositive() {
		return nil, "amount must be positive"
	}

	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return nil, "kind must be income or expense"
	}

	freq, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, "unknown frequency: " + req.Frequency
	}

	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return nil, "invalid start_date"
	}

	var end *civil.Date
	if req.EndDate != "" {
		d, err := calendar.ParseDate(req.EndDate)
		if err != nil {
			return nil, "invalid end_date"
		}
		if d.Before(start) {
			return nil, "end_date must not precede start_date"
		}
		end = &d
	}

	return &domain.RecurrenceRule{
		OwnerID:       owner,
		Description:   req.Description,
		Amount:        req.Amount,
		Kind:          kind,
		Category:      req.Category,
		AccountID:     req.AccountID,
		Frequency:     freq,
		StartDate:     start,
		EndDate:       end,
		IsActive:      true,
		PayOnWeekends: req.PayOnWeekends,
	}, ""
}

// transactionResponse is the wire shape of a ledger transaction.
type transactionResponse struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Kind         domain.Kind     `json:"kind"`
	Category     string          `json:"category"`
	Date         civil.Date      `json:"date"`
	Description  string          `json:"description"`
	Method       string          `json:"method"`
	RecurrenceID string          `json:"recurrence_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TransactionsHandler serves ledger reads.
type TransactionsHandler struct {
	repo      bigquery.LedgerRepository
	processor *schedule.Processor
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo bigquery.LedgerRepository, processor *schedule.Processor, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{repo: repo, processor: processor, log: log}
}

// ListTransactions handles GET /api/transactions
//
// The processing pass runs first so transactions due today exist before
// the ledger is read.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerID(r)
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}

	var start, end *civil.Date
	if s := r.URL.Query().Get("start_date"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid start_date format")
			return
		}
		start = &d
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid end_date format")
			return
		}
		end = &d
	}

	if err := h.processor.EnsureProcessed(ctx, owner); err != nil {
		h.log.Error().Err(err).Str("owner_id", owner).Msg("Failed to process due occurrences")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to process recurring transactions")
		return
	}

	transactions, err := h.repo.ListTransactions(ctx, owner, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", owner).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		out = append(out, transactionResponse{
			ID:           tx.ID,
			AccountID:    tx.AccountID,
			Amount:       tx.Amount,
			Kind:         tx.Kind,
			Category:     tx.Category,
			Date:         tx.Date,
			Description:  tx.Description,
			Method:       tx.Method,
			RecurrenceID: tx.RecurrenceID,
			CreatedAt:    tx.CreatedAt,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": out,
		"count":        len(out),
	})
}

// accountResponse is the wire shape of an account.
type accountResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
}

// AccountsHandler serves account display metadata.
type AccountsHandler struct {
	repo bigquery.AccountRepository
	log  zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(repo bigquery.AccountRepository, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{repo: repo, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}

	accounts, err := h.repo.ListAccounts(r.Context(), owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", owner).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{ID: a.ID, Name: a.Name, Currency: a.Currency, Type: a.Type})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": out,
		"count":    len(out),
	})
}
