/**
 * @description
 * This file sets up the HTTP router for the membership-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and applies
 * middleware for logging, recovery, authentication, and permission checks.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Permissions carried in the JWT `permissions` claim.
const (
	PermMembersRead    = "members:read"
	PermMembersWrite   = "members:write"
	PermSharesWrite    = "shares:write"
	PermTransfersWrite = "transfers:write"
	PermFinanceRead    = "finance:read"
	PermFinanceWrite   = "finance:write"
	PermDocumentsRead  = "documents:read"
	PermDocumentsWrite = "documents:write"
)

// MembershipRoutes creates and returns the router for the membership service.
func MembershipRoutes(h *Handlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// Members and their holdings
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermMembersRead))
			r.Get("/members", h.ListMembersHandler)
			r.Get("/members/{memberID}", h.GetMemberHandler)
			r.Get("/members/{memberID}/shares", h.ListMemberSharesHandler)
			r.Get("/members/{memberID}/transfers", h.ListMemberTransfersHandler)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermMembersWrite))
			r.Post("/members", h.CreateMemberHandler)
			r.Put("/members/{memberID}/status", h.UpdateMemberStatusHandler)
		})

		// Share issuance and transfers
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermSharesWrite))
			r.Post("/shares", h.IssueSharesHandler)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermTransfersWrite))
			r.Post("/members/{memberID}/transfers", h.RequestTransferHandler)
			r.Get("/transfers/{transferID}", h.GetTransferHandler)
			r.Post("/transfers/{transferID}/approve", h.ApproveTransferHandler)
			r.Post("/transfers/{transferID}/reject", h.RejectTransferHandler)
			r.Post("/transfers/{transferID}/complete", h.CompleteTransferHandler)
		})

		// Payments, dividends, and subordinated loans
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermFinanceRead))
			r.Get("/members/{memberID}/payments", h.ListMemberPaymentsHandler)
			r.Get("/members/{memberID}/loans", h.ListMemberLoansHandler)
			r.Get("/dividends/{year}", h.GetDividendHandler)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermFinanceWrite))
			r.Post("/payments", h.RecordPaymentHandler)
			r.Post("/dividends", h.DeclareDividendHandler)
			r.Post("/dividends/{year}/approve", h.ApproveDividendHandler)
			r.Post("/dividends/{year}/pay", h.PayDividendHandler)
			r.Post("/loans", h.CreateLoanHandler)
			r.Post("/loans/{loanID}/terminate", h.TerminateLoanHandler)
		})

		// Member documents
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermDocumentsRead))
			r.Get("/members/{memberID}/documents", h.ListDocumentsHandler)
			r.Get("/documents/{documentID}", h.DownloadDocumentHandler)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermDocumentsWrite))
			r.Post("/members/{memberID}/documents", h.UploadDocumentHandler)
			r.Delete("/documents/{documentID}", h.DeleteDocumentHandler)
		})
	})

	return r
}
