/*
handlers.go - HTTP handlers

PURPOSE:
  Thin translation layer between HTTP and the core services. Handlers
  decode and validate JSON, call one service method, and map domain
  errors to status codes with errors.Is. No business logic lives here;
  the same services are callable from tests or a CLI identically.

ERROR MAPPING:
  ledger.ErrNotFound           → 404
  ledger.ErrInvalidState       → 409
  other client errors          → 400
  everything else              → 500
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/mining"
	"github.com/hashvault/mining-engine/plans"
	"github.com/hashvault/mining-engine/wallet"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger    ledger.Store
	Plans     plans.Registry
	Mining    *mining.Service
	Wallet    *wallet.Service
	Scheduler *mining.Scheduler
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "id and username are required", nil)
		return
	}

	u := ledger.User{
		ID:       ledger.UserID(req.ID),
		Username: req.Username,
		Email:    req.Email,
		IsActive: true,
	}
	if err := h.Ledger.CreateUser(r.Context(), u); err != nil {
		writeDomainError(w, "Failed to create user", err)
		return
	}

	created, err := h.Ledger.User(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, "Failed to load user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(created))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Ledger.User(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	balance, err := h.Ledger.Balance(r.Context(), ledger.UserID(id))
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{UserID: id, Balance: balance.String()})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.Entries(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list transactions", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PLANS
// =============================================================================

// ListPlans returns active plans only; the admin listing includes all.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	h.listPlans(w, r, false)
}

func (h *Handler) ListAllPlans(w http.ResponseWriter, r *http.Request) {
	h.listPlans(w, r, true)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	templates, err := h.Plans.List(r.Context(), includeInactive)
	if err != nil {
		writeDomainError(w, "Failed to list plans", err)
		return
	}
	dtos := make([]PlanDTO, len(templates))
	for i, t := range templates {
		dtos[i] = toPlanDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	unit, err := plans.ParseDurationUnit(req.DurationUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid duration unit", err)
		return
	}

	t := plans.Template{
		ID:            plans.PlanID(req.ID),
		Name:          req.Name,
		Description:   req.Description,
		DurationValue: req.DurationValue,
		DurationUnit:  unit,
		IsActive:      true,
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if t.MinDeposit, err = decimal.NewFromString(req.MinDeposit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid min_deposit", err)
		return
	}
	if t.MaxDeposit, err = decimal.NewFromString(req.MaxDeposit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid max_deposit", err)
		return
	}
	if t.ReturnPercentage, err = decimal.NewFromString(req.ReturnPercentage); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid return_percentage", err)
		return
	}
	if req.HashRate != "" {
		if t.HashRate, err = decimal.NewFromString(req.HashRate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hash_rate", err)
			return
		}
	}

	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan", err)
		return
	}
	if err := h.Plans.Save(r.Context(), t); err != nil {
		writeDomainError(w, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(t))
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.Plans.Plan(r.Context(), plans.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to load plan", err)
		return
	}

	if err := applyPlanUpdate(&t, req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan update", err)
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan", err)
		return
	}
	if err := h.Plans.Save(r.Context(), t); err != nil {
		writeDomainError(w, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(t))
}

func applyPlanUpdate(t *plans.Template, req UpdatePlanRequest) error {
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.MinDeposit != nil {
		d, err := decimal.NewFromString(*req.MinDeposit)
		if err != nil {
			return err
		}
		t.MinDeposit = d
	}
	if req.MaxDeposit != nil {
		d, err := decimal.NewFromString(*req.MaxDeposit)
		if err != nil {
			return err
		}
		t.MaxDeposit = d
	}
	if req.ReturnPercentage != nil {
		d, err := decimal.NewFromString(*req.ReturnPercentage)
		if err != nil {
			return err
		}
		t.ReturnPercentage = d
	}
	if req.DurationValue != nil {
		t.DurationValue = *req.DurationValue
	}
	if req.DurationUnit != nil {
		unit, err := plans.ParseDurationUnit(*req.DurationUnit)
		if err != nil {
			return err
		}
		t.DurationUnit = unit
	}
	if req.HashRate != nil {
		d, err := decimal.NewFromString(*req.HashRate)
		if err != nil {
			return err
		}
		t.HashRate = d
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	return nil
}

// =============================================================================
// PURCHASES / SUBSCRIPTIONS
// =============================================================================

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	sub, err := h.Mining.Purchase(r.Context(),
		ledger.UserID(chi.URLParam(r, "id")), plans.PlanID(req.PlanID), amount)
	if err != nil {
		writeDomainError(w, "Purchase failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionDTO(sub))
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Mining.UserSubscriptions(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list subscriptions", err)
		return
	}
	dtos := make([]SubscriptionDTO, len(subs))
	for i, s := range subs {
		dtos[i] = toSubscriptionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Mining.Cancel(r.Context(), ledger.SubscriptionID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Cancellation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(sub))
}

// =============================================================================
// DEPOSITS
// =============================================================================

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	d, err := h.Wallet.CreateDeposit(r.Context(), ledger.UserID(chi.URLParam(r, "id")), amount)
	if err != nil {
		writeDomainError(w, "Failed to create deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepositDTO(d))
}

func (h *Handler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.Wallet.UserDeposits(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list deposits", err)
		return
	}
	dtos := make([]DepositDTO, len(deposits))
	for i, d := range deposits {
		dtos[i] = toDepositDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := h.Wallet.ConfirmDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to confirm deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositDTO(d))
}

func (h *Handler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	d, err := h.Wallet.RejectDeposit(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reject deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositDTO(d))
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	wd, err := h.Wallet.RequestWithdrawal(r.Context(),
		ledger.UserID(chi.URLParam(r, "id")), amount, req.WalletAddress)
	if err != nil {
		writeDomainError(w, "Withdrawal request failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(wd))
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.Wallet.UserWithdrawals(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list withdrawals", err)
		return
	}
	dtos := make([]WithdrawalDTO, len(withdrawals))
	for i, wd := range withdrawals {
		dtos[i] = toWithdrawalDTO(wd)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	wd, err := h.Wallet.ApproveWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to approve withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(wd))
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	wd, err := h.Wallet.RejectWithdrawal(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reject withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(wd))
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	entry, err := h.Wallet.AdjustBalance(r.Context(),
		ledger.UserID(chi.URLParam(r, "id")), amount,
		wallet.AdjustmentKind(req.Kind), req.Reason, req.Admin)
	if err != nil {
		writeDomainError(w, "Adjustment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// RunAccrual triggers one synchronous accrual pass.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	report, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		writeDomainError(w, "Accrual run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualRunDTO{
		Scanned:   report.Scanned,
		Paid:      report.Paid,
		Completed: report.Completed,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInvalidState), errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
