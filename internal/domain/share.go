/**
 * @description
 * This file defines cooperative share certificates, share transfers, and the
 * transfer-completion rule set. Completing a transfer is the densest piece of
 * business logic in the service, so the whole mutation is computed by a pure
 * function (`BuildTransferCompletion`) that the persistence layer applies
 * inside a single database transaction.
 *
 * @notes
 * - A transferred certificate is immutable history: its quantity keeps the
 *   original value and a fresh certificate is issued to the recipient.
 * - When fewer units than the certificate holds are transferred, a remainder
 *   certificate is issued back to the source member so that active quantities
 *   are conserved and the superseded certificate stays whole.
 */

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ShareStatus enumerates the lifecycle states of a share certificate.
type ShareStatus string

const (
	ShareStatusActive      ShareStatus = "active"
	ShareStatusTransferred ShareStatus = "transferred"
	ShareStatusCancelled   ShareStatus = "cancelled"
)

// TransferStatus enumerates the lifecycle states of a share transfer.
type TransferStatus string

const (
	TransferStatusRequested TransferStatus = "requested"
	TransferStatusApproved  TransferStatus = "approved"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusRejected  TransferStatus = "rejected"
)

// Business rule violations surfaced by the transfer workflow. The API layer
// maps these to user-facing HTTP statuses.
var (
	ErrInvalidTransferState = errors.New("share transfer is not in an approved state")
	ErrInsufficientShares   = errors.New("source share has insufficient active units")
	ErrShareNotTransferable = errors.New("source share is not active or not owned by the transferring member")
	ErrInvalidQuantity      = errors.New("transfer quantity must be positive")
)

// CooperativeShare represents one share certificate. A certificate belongs to
// exactly one member; once transferred the row is never mutated again.
type CooperativeShare struct {
	ID                uuid.UUID   `json:"id"`
	MemberID          uuid.UUID   `json:"member_id"`
	CertificateNumber string      `json:"certificate_number"`
	Quantity          int64       `json:"quantity"`
	NominalValue      int64       `json:"nominal_value"` // per unit, in cents
	Status            ShareStatus `json:"status"`
	IssueDate         time.Time   `json:"issue_date"`
	TransferredAt     *time.Time  `json:"transferred_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Value returns the total monetary value of the certificate in cents.
func (s *CooperativeShare) Value() int64 {
	return s.Quantity * s.NominalValue
}

// ShareTransfer represents a request to move units of one certificate between
// two members. Immutable after completion except for audit fields.
type ShareTransfer struct {
	ID             uuid.UUID      `json:"id"`
	ShareID        uuid.UUID      `json:"share_id"`
	FromMemberID   uuid.UUID      `json:"from_member_id"`
	ToMemberID     uuid.UUID      `json:"to_member_id"`
	Quantity       int64          `json:"quantity"`
	Status         TransferStatus `json:"status"`
	RequestedAt    time.Time      `json:"requested_at"`
	DecidedAt      *time.Time     `json:"decided_at,omitempty"`
	CompletionDate *time.Time     `json:"completion_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CertificateNumbers carries the pre-generated certificate identifiers a
// completion may consume. Remainder is only used when the transfer moves
// fewer units than the source certificate holds.
type CertificateNumbers struct {
	Recipient string
	Remainder string
}

// TransferCompletion is the full mutation set produced by completing an
// approved transfer. The store applies it atomically; nothing outside a
// database transaction should act on it.
type TransferCompletion struct {
	Transfer         ShareTransfer
	SourceShare      CooperativeShare  // status flipped to transferred
	RecipientShare   CooperativeShare  // fresh certificate for the destination member
	RemainderShare   *CooperativeShare // issued back to the source member on a split, nil otherwise
	FromMemberStatus MemberStatus      // status the source member must end up in
	FromMemberTotal  int64             // source member's active unit total after completion
}

// BuildTransferCompletion validates an approved transfer against the source
// share and computes every mutation completing it entails. activeShareTotal is
// the source member's current active unit total including the source share.
//
// The function is pure: callers supply the clock and certificate numbers, and
// the returned mutation set must be persisted as one unit.
func BuildTransferCompletion(
	transfer ShareTransfer,
	source CooperativeShare,
	fromMember Member,
	activeShareTotal int64,
	certs CertificateNumbers,
	now time.Time,
) (*TransferCompletion, error) {
	if transfer.Status != TransferStatusApproved {
		return nil, ErrInvalidTransferState
	}
	if transfer.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if source.Status != ShareStatusActive || source.MemberID != transfer.FromMemberID {
		return nil, ErrShareNotTransferable
	}
	if source.Quantity < transfer.Quantity {
		return nil, ErrInsufficientShares
	}

	// The source certificate is fully superseded: quantity stays at its
	// original value as the historical record.
	transferredAt := now
	source.Status = ShareStatusTransferred
	source.TransferredAt = &transferredAt

	completion := &TransferCompletion{
		SourceShare: source,
		RecipientShare: CooperativeShare{
			ID:                uuid.New(),
			MemberID:          transfer.ToMemberID,
			CertificateNumber: certs.Recipient,
			Quantity:          transfer.Quantity,
			NominalValue:      source.NominalValue,
			Status:            ShareStatusActive,
			IssueDate:         now,
		},
	}

	remainder := source.Quantity - transfer.Quantity
	if remainder > 0 {
		completion.RemainderShare = &CooperativeShare{
			ID:                uuid.New(),
			MemberID:          transfer.FromMemberID,
			CertificateNumber: certs.Remainder,
			Quantity:          remainder,
			NominalValue:      source.NominalValue,
			Status:            ShareStatusActive,
			IssueDate:         now,
		}
	}

	// Recompute the source member's active total: the superseded certificate
	// leaves the active set, the remainder (if any) re-enters it.
	completion.FromMemberTotal = activeShareTotal - source.Quantity + remainder
	completion.FromMemberStatus = MemberStatusAfterDivestiture(fromMember.Status, completion.FromMemberTotal)

	completionDate := now
	transfer.Status = TransferStatusCompleted
	transfer.CompletionDate = &completionDate
	completion.Transfer = transfer

	return completion, nil
}

// CreateTransferRequest is the DTO for requesting a share transfer.
type CreateTransferRequest struct {
	ShareID    uuid.UUID `json:"share_id"`
	ToMemberID uuid.UUID `json:"to_member_id"`
	Quantity   int64     `json:"quantity"`
}

// IssueSharesRequest is the DTO for issuing a new certificate to a member.
type IssueSharesRequest struct {
	MemberID     uuid.UUID `json:"member_id"`
	Quantity     int64     `json:"quantity"`
	NominalValue int64     `json:"nominal_value"` // per unit, in cents
}
