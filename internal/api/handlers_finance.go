package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coopsuite/membership-service/internal/domain"
)

// RecordPaymentHandler writes one payment ledger row.
func (h *Handlers) RecordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, payment)
}

// ListMemberPaymentsHandler returns a member's payment history.
func (h *Handlers) ListMemberPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	payments, err := h.service.ListMemberPayments(r.Context(), memberID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payments)
}

// DeclareDividendHandler declares a draft dividend run for a year.
func (h *Handlers) DeclareDividendHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DeclareDividendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	run, err := h.service.DeclareDividend(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, run)
}

func dividendYear(r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 3000 {
		return 0, false
	}
	return year, true
}

// GetDividendHandler returns a run with its allocations.
func (h *Handlers) GetDividendHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := dividendYear(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	run, allocations, err := h.service.GetDividendRun(r.Context(), year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":         run,
		"allocations": allocations,
	})
}

// ApproveDividendHandler moves a draft run to approved.
func (h *Handlers) ApproveDividendHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := dividendYear(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	run, _, err := h.service.GetDividendRun(r.Context(), year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.service.ApproveDividend(r.Context(), run.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PayDividendHandler pays out an approved run.
func (h *Handlers) PayDividendHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := dividendYear(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	run, err := h.service.PayDividend(r.Context(), year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// CreateLoanHandler registers a subordinated loan.
func (h *Handlers) CreateLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	loan, err := h.service.CreateSubordinatedLoan(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, loan)
}

// TerminateLoanHandler gives notice on a loan.
func (h *Handlers) TerminateLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loanID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}
	var req domain.TerminateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	loan, err := h.service.TerminateSubordinatedLoan(r.Context(), loanID, req.TerminationDate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

// ListMemberLoansHandler returns a member's loans.
func (h *Handlers) ListMemberLoansHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	loans, err := h.service.ListMemberLoans(r.Context(), memberID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loans)
}
