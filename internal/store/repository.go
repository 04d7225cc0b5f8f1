/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the membership-service needs. The interface decouples the business
 * logic from PostgreSQL and lets tests substitute in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Member methods
	CreateMember(ctx context.Context, member *domain.Member) error
	FindMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error)
	FindMemberByMemberNo(ctx context.Context, memberNo string) (*domain.Member, error)
	ListMembers(ctx context.Context, limit, offset int) ([]domain.Member, error)
	UpdateMemberStatus(ctx context.Context, memberID uuid.UUID, status domain.MemberStatus) error
	MemberHoldings(ctx context.Context, memberID uuid.UUID) (*domain.MemberHoldings, error)

	// Share methods
	CreateShare(ctx context.Context, share *domain.CooperativeShare) error
	FindShareByID(ctx context.Context, shareID uuid.UUID) (*domain.CooperativeShare, error)
	FindActiveSharesByMemberID(ctx context.Context, memberID uuid.UUID) ([]domain.CooperativeShare, error)

	// Share transfer methods
	CreateShareTransfer(ctx context.Context, transfer *domain.ShareTransfer) error
	FindShareTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.ShareTransfer, error)
	ListShareTransfersByMember(ctx context.Context, memberID uuid.UUID) ([]domain.ShareTransfer, error)
	DecideShareTransfer(ctx context.Context, transferID uuid.UUID, status domain.TransferStatus, decidedAt time.Time) (*domain.ShareTransfer, error)
	// CompleteShareTransferAtomic executes the full completion mutation set in
	// one database transaction with the transfer and source share rows locked.
	// Concurrent completions of the same transfer or the same source share
	// serialize on those locks; losers fail validation and nothing partial is
	// ever committed.
	CompleteShareTransferAtomic(ctx context.Context, transferID uuid.UUID, certs domain.CertificateNumbers, now time.Time) (*domain.TransferCompletion, error)

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	ListPaymentsByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Payment, error)

	// Dividend methods
	CreateDividendRun(ctx context.Context, run *domain.DividendRun, allocations []domain.DividendAllocation) error
	FindDividendRunByYear(ctx context.Context, year int) (*domain.DividendRun, error)
	ListDividendAllocations(ctx context.Context, runID uuid.UUID) ([]domain.DividendAllocation, error)
	ApproveDividendRun(ctx context.Context, runID uuid.UUID) error
	MarkDividendRunPaidAtomic(ctx context.Context, runID uuid.UUID, paidAt time.Time) ([]domain.DividendAllocation, error)
	ListUnpaidApprovedDividendRuns(ctx context.Context) ([]domain.DividendRun, error)

	// Subordinated loan methods
	CreateLoan(ctx context.Context, loan *domain.SubordinatedLoan) error
	FindLoanByID(ctx context.Context, loanID uuid.UUID) (*domain.SubordinatedLoan, error)
	ListLoansByMember(ctx context.Context, memberID uuid.UUID) ([]domain.SubordinatedLoan, error)
	TerminateLoan(ctx context.Context, loanID uuid.UUID, endDate time.Time) error

	// Document metadata methods
	CreateDocumentRecord(ctx context.Context, doc *domain.Document) error
	FindDocumentByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	ListDocumentsByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Document, error)
	DeleteDocumentRecord(ctx context.Context, docID uuid.UUID) error

	// NextCertificateNumber draws from a database sequence; numbers are
	// globally unique across all certificates ever issued.
	NextCertificateNumber(ctx context.Context) (string, error)
}
