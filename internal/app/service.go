/**
 * @description
 * This file contains the core business logic for the membership-service. The
 * `Service` struct orchestrates member, share, and transfer operations,
 * coordinating between the database repository, the WebDAV document store,
 * and the message broker.
 *
 * Key features:
 * - Implements the share-transfer lifecycle: request, approve/reject, complete.
 * - Completion mutates the share ledger and member status as one atomic unit
 *   (delegated to the repository's transactional implementation).
 * - Publishes events to RabbitMQ for asynchronous processing by other services;
 *   the workflow itself performs no external I/O.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq, pkg/webdavclient: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
	"github.com/coopsuite/membership-service/internal/store"
	"github.com/coopsuite/membership-service/pkg/rabbitmq"
	"github.com/coopsuite/membership-service/pkg/webdavclient"
)

var (
	ErrSelfTransferNotAllowed = errors.New("source and destination member must differ")
	ErrMemberNotTransferable  = errors.New("member is not in a state that allows transfers")
	ErrTransferRateLimited    = errors.New("transfer request rate limit exceeded")
)

// CertificateNumberService produces globally unique certificate identifiers.
// The Postgres repository satisfies it with a database sequence.
type CertificateNumberService interface {
	NextCertificateNumber(ctx context.Context) (string, error)
}

// Service provides the core business logic for the cooperative membership CRM.
type Service struct {
	repo                store.Repository
	certs               CertificateNumberService
	documents           webdavclient.FileStore
	eventProducer       rabbitmq.Publisher
	limiter             RateLimiter
	uploadLimit         int
	transferLimit       int
	defaultNoticeMonths int
}

// NewService creates a new membership service instance.
func NewService(repo store.Repository, certs CertificateNumberService, documents webdavclient.FileStore, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		certs:         certs,
		documents:     documents,
		eventProducer: producer,
	}
}

// SetRateLimiter wires the optional distributed rate limiter used for document
// uploads and transfer requests. A zero limit disables that check.
func (s *Service) SetRateLimiter(limiter RateLimiter, uploadsPerMinute, transfersPerMinute int) {
	s.limiter = limiter
	s.uploadLimit = uploadsPerMinute
	s.transferLimit = transfersPerMinute
}

// SetDefaultNoticePeriod sets the notice period applied to loans registered
// without an explicit one.
func (s *Service) SetDefaultNoticePeriod(months int) {
	s.defaultNoticeMonths = months
}

// consumeRateLimit returns true when the operation exceeds its budget. A
// limiter outage fails open; rate limiting must never take the service down.
func (s *Service) consumeRateLimit(ctx context.Context, scope, subject string, limit int) bool {
	if s.limiter == nil || limit <= 0 {
		return false
	}
	count, _, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, limit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=app msg=\"rate limiter unavailable; allowing request\" scope=%s err=%v", scope, err)
		return false
	}
	return count > limit
}

// OnboardMember creates a new member in active status.
func (s *Service) OnboardMember(ctx context.Context, req domain.CreateMemberRequest) (*domain.Member, error) {
	member := &domain.Member{
		ID:       uuid.New(),
		MemberNo: req.MemberNo,
		FullName: req.FullName,
		Email:    req.Email,
		Status:   domain.MemberStatusActive,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	return member, nil
}

// GetMember returns a member together with their derived holdings.
func (s *Service) GetMember(ctx context.Context, memberID uuid.UUID) (*domain.Member, *domain.MemberHoldings, error) {
	member, err := s.repo.FindMemberByID(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	holdings, err := s.repo.MemberHoldings(ctx, memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute holdings: %w", err)
	}
	return member, holdings, nil
}

// ListMembers returns a page of members.
func (s *Service) ListMembers(ctx context.Context, limit, offset int) ([]domain.Member, error) {
	return s.repo.ListMembers(ctx, limit, offset)
}

// SetMemberStatus applies an administrative status change.
func (s *Service) SetMemberStatus(ctx context.Context, memberID uuid.UUID, status domain.MemberStatus) error {
	return s.repo.UpdateMemberStatus(ctx, memberID, status)
}

// IssueShares issues a fresh certificate to a member and records the matching
// share-purchase payment.
func (s *Service) IssueShares(ctx context.Context, req domain.IssueSharesRequest) (*domain.CooperativeShare, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	member, err := s.repo.FindMemberByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member.Status != domain.MemberStatusActive {
		return nil, ErrMemberNotTransferable
	}

	certNo, err := s.certs.NextCertificateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate number: %w", err)
	}

	now := time.Now().UTC()
	share := &domain.CooperativeShare{
		ID:                uuid.New(),
		MemberID:          req.MemberID,
		CertificateNumber: certNo,
		Quantity:          req.Quantity,
		NominalValue:      req.NominalValue,
		Status:            domain.ShareStatusActive,
		IssueDate:         now,
	}
	if err := s.repo.CreateShare(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}

	payment := &domain.Payment{
		ID:        uuid.New(),
		MemberID:  req.MemberID,
		Amount:    share.Value(),
		Kind:      domain.PaymentKindSharePurchase,
		Reference: certNo,
		PaidAt:    now,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		log.Printf("level=error component=app msg=\"share issued but purchase payment not recorded\" certificate=%s err=%v", certNo, err)
	}
	return share, nil
}

// ListMemberShares returns a member's active certificates.
func (s *Service) ListMemberShares(ctx context.Context, memberID uuid.UUID) ([]domain.CooperativeShare, error) {
	return s.repo.FindActiveSharesByMemberID(ctx, memberID)
}

// RequestShareTransfer creates a transfer in requested status after checking
// that the source certificate is active, owned by the requesting member, and
// holds enough units.
func (s *Service) RequestShareTransfer(ctx context.Context, fromMemberID uuid.UUID, req domain.CreateTransferRequest) (*domain.ShareTransfer, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if fromMemberID == req.ToMemberID {
		return nil, ErrSelfTransferNotAllowed
	}
	if s.consumeRateLimit(ctx, "transfer_request", fromMemberID.String(), s.transferLimit) {
		return nil, ErrTransferRateLimited
	}

	share, err := s.repo.FindShareByID(ctx, req.ShareID)
	if err != nil {
		return nil, err
	}
	if share.Status != domain.ShareStatusActive || share.MemberID != fromMemberID {
		return nil, domain.ErrShareNotTransferable
	}
	if share.Quantity < req.Quantity {
		return nil, domain.ErrInsufficientShares
	}
	if _, err := s.repo.FindMemberByID(ctx, req.ToMemberID); err != nil {
		return nil, err
	}

	transfer := &domain.ShareTransfer{
		ID:           uuid.New(),
		ShareID:      req.ShareID,
		FromMemberID: fromMemberID,
		ToMemberID:   req.ToMemberID,
		Quantity:     req.Quantity,
		Status:       domain.TransferStatusRequested,
		RequestedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateShareTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create share transfer: %w", err)
	}
	log.Printf("level=info component=app msg=\"share transfer requested\" transfer_id=%s share_id=%s quantity=%d", transfer.ID, transfer.ShareID, transfer.Quantity)
	return transfer, nil
}

// ApproveShareTransfer moves a requested transfer to approved.
func (s *Service) ApproveShareTransfer(ctx context.Context, transferID uuid.UUID) (*domain.ShareTransfer, error) {
	return s.repo.DecideShareTransfer(ctx, transferID, domain.TransferStatusApproved, time.Now().UTC())
}

// RejectShareTransfer moves a requested transfer to rejected.
func (s *Service) RejectShareTransfer(ctx context.Context, transferID uuid.UUID) (*domain.ShareTransfer, error) {
	return s.repo.DecideShareTransfer(ctx, transferID, domain.TransferStatusRejected, time.Now().UTC())
}

// GetShareTransfer retrieves one transfer.
func (s *Service) GetShareTransfer(ctx context.Context, transferID uuid.UUID) (*domain.ShareTransfer, error) {
	return s.repo.FindShareTransferByID(ctx, transferID)
}

// ListMemberTransfers returns transfers where the member is either side.
func (s *Service) ListMemberTransfers(ctx context.Context, memberID uuid.UUID) ([]domain.ShareTransfer, error) {
	return s.repo.ListShareTransfersByMember(ctx, memberID)
}

// CompleteShareTransfer executes an approved transfer: the source certificate
// becomes historical, a fresh certificate is issued to the recipient (plus a
// remainder certificate on a split), the source member's holdings are
// recomputed, and a fully divested active member is locked. All of it commits
// as one unit; on a concurrent conflicting write the repository returns
// store.ErrConcurrencyConflict and the caller may retry from a fresh read.
func (s *Service) CompleteShareTransfer(ctx context.Context, transferID uuid.UUID) (*domain.TransferCompletion, error) {
	transfer, err := s.repo.FindShareTransferByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TransferStatusApproved {
		return nil, domain.ErrInvalidTransferState
	}

	share, err := s.repo.FindShareByID(ctx, transfer.ShareID)
	if err != nil {
		return nil, err
	}
	if share.Status != domain.ShareStatusActive || share.MemberID != transfer.FromMemberID {
		return nil, domain.ErrShareNotTransferable
	}
	if share.Quantity < transfer.Quantity {
		return nil, domain.ErrInsufficientShares
	}

	fromMember, err := s.repo.FindMemberByID(ctx, transfer.FromMemberID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindMemberByID(ctx, transfer.ToMemberID); err != nil {
		return nil, err
	}

	// Certificate numbers are drawn before the transaction; on rollback the
	// numbers are simply skipped, uniqueness is all that matters.
	certs := domain.CertificateNumbers{}
	certs.Recipient, err = s.certs.NextCertificateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate number: %w", err)
	}
	if share.Quantity > transfer.Quantity {
		certs.Remainder, err = s.certs.NextCertificateNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate remainder certificate number: %w", err)
		}
	}

	completion, err := s.repo.CompleteShareTransferAtomic(ctx, transferID, certs, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"share transfer completed\" transfer_id=%s from=%s to=%s quantity=%d member_total=%d",
		transferID, transfer.FromMemberID, transfer.ToMemberID, transfer.Quantity, completion.FromMemberTotal)

	if s.eventProducer != nil {
		s.eventProducer.PublishTransferCompleted(ctx, domain.ShareTransferCompletedEvent{
			TransferID:     completion.Transfer.ID,
			FromMemberID:   completion.Transfer.FromMemberID,
			ToMemberID:     completion.Transfer.ToMemberID,
			Quantity:       completion.Transfer.Quantity,
			CertificateNo:  completion.RecipientShare.CertificateNumber,
			CompletionDate: *completion.Transfer.CompletionDate,
		})
		if completion.FromMemberStatus == domain.MemberStatusLocked && fromMember.Status == domain.MemberStatusActive {
			s.eventProducer.PublishMemberLocked(ctx, domain.MemberLockedEvent{
				MemberID: fromMember.ID,
				Reason:   "full divestiture of cooperative shares",
				LockedAt: *completion.Transfer.CompletionDate,
			})
		}
	}
	return completion, nil
}
