package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coopsuite/membership-service/internal/domain"
)

type memberResponse struct {
	domain.Member
	Holdings *domain.MemberHoldings `json:"holdings,omitempty"`
}

// CreateMemberHandler onboards a new member.
func (h *Handlers) CreateMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MemberNo == "" || req.FullName == "" {
		h.writeError(w, http.StatusBadRequest, "member_no and full_name are required")
		return
	}

	member, err := h.service.OnboardMember(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, member)
}

// GetMemberHandler returns one member with derived holdings.
func (h *Handlers) GetMemberHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	member, holdings, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, memberResponse{Member: *member, Holdings: holdings})
}

// ListMembersHandler returns a page of members.
func (h *Handlers) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	members, err := h.service.ListMembers(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, members)
}

// UpdateMemberStatusHandler applies an administrative status change.
func (h *Handlers) UpdateMemberStatusHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	var req domain.UpdateMemberStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch req.Status {
	case domain.MemberStatusActive, domain.MemberStatusInactive, domain.MemberStatusLocked,
		domain.MemberStatusSuspended, domain.MemberStatusTerminated:
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown member status")
		return
	}
	if err := h.service.SetMemberStatus(r.Context(), memberID, req.Status); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IssueSharesHandler issues a new certificate to a member.
func (h *Handlers) IssueSharesHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueSharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	share, err := h.service.IssueShares(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, share)
}

// ListMemberSharesHandler returns a member's active certificates.
func (h *Handlers) ListMemberSharesHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	shares, err := h.service.ListMemberShares(r.Context(), memberID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, shares)
}

// ListMemberTransfersHandler returns transfers involving a member.
func (h *Handlers) ListMemberTransfersHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "memberID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	transfers, err := h.service.ListMemberTransfers(r.Context(), memberID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfers)
}
