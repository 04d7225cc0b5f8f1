/**
 * @description
 * This file contains the shared handler plumbing and the share-transfer HTTP
 * handlers. Handlers parse requests, call the application service, and
 * translate domain/store errors into HTTP statuses. They are the bridge
 * between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/webdavclient: For the file-store not-found sentinel.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/app"
	"github.com/coopsuite/membership-service/internal/domain"
	"github.com/coopsuite/membership-service/internal/store"
	"github.com/coopsuite/membership-service/pkg/webdavclient"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service) *Handlers {
	return &Handlers{service: service}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// respondError maps the service error taxonomy onto HTTP statuses. Concurrency
// conflicts answer 409 with a Retry-After hint because the caller may safely
// re-read and retry.
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrMemberNotFound),
		errors.Is(err, store.ErrShareNotFound),
		errors.Is(err, store.ErrTransferNotFound),
		errors.Is(err, store.ErrDividendRunNotFound),
		errors.Is(err, store.ErrLoanNotFound),
		errors.Is(err, store.ErrDocumentNotFound),
		errors.Is(err, webdavclient.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransferState),
		errors.Is(err, domain.ErrDividendRunNotPayable):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConcurrencyConflict):
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrShareNotTransferable),
		errors.Is(err, domain.ErrLoanNoticePeriod):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDividendRate),
		errors.Is(err, app.ErrSelfTransferNotAllowed),
		errors.Is(err, app.ErrMemberNotTransferable),
		errors.Is(err, store.ErrDuplicateMemberNo),
		errors.Is(err, store.ErrDividendRunExists):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUploadRateLimited),
		errors.Is(err, app.ErrTransferRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		log.Printf("level=error component=api msg=\"request failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

// RequestTransferHandler handles share transfer requests from a member.
func (h *Handlers) RequestTransferHandler(w http.ResponseWriter, r *http.Request) {
	fromMemberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}

	var req domain.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transfer, err := h.service.RequestShareTransfer(r.Context(), fromMemberID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, transfer)
}

// GetTransferHandler returns one share transfer.
func (h *Handlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := urlUUID(r, "transferID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}
	transfer, err := h.service.GetShareTransfer(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

// ApproveTransferHandler moves a requested transfer to approved.
func (h *Handlers) ApproveTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := urlUUID(r, "transferID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}
	transfer, err := h.service.ApproveShareTransfer(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

// RejectTransferHandler moves a requested transfer to rejected.
func (h *Handlers) RejectTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := urlUUID(r, "transferID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}
	transfer, err := h.service.RejectShareTransfer(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

// CompleteTransferHandler executes an approved transfer.
func (h *Handlers) CompleteTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := urlUUID(r, "transferID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}

	subject, _ := GetAuthSubject(r.Context())
	log.Printf("level=info component=api endpoint=complete_transfer transfer_id=%s subject=%s", transferID, subject)

	completion, err := h.service.CompleteShareTransfer(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, completion.Transfer)
}
