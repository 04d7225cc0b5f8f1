package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
)

// RecordPayment writes one payment ledger row for a member.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	if _, err := s.repo.FindMemberByID(ctx, req.MemberID); err != nil {
		return nil, err
	}
	payment := &domain.Payment{
		ID:        uuid.New(),
		MemberID:  req.MemberID,
		Amount:    req.Amount,
		Kind:      req.Kind,
		Reference: req.Reference,
		PaidAt:    time.Now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return payment, nil
}

// ListMemberPayments returns a member's payment history.
func (s *Service) ListMemberPayments(ctx context.Context, memberID uuid.UUID) ([]domain.Payment, error) {
	return s.repo.ListPaymentsByMember(ctx, memberID)
}

// RecordImportedPayment records a payment arriving from the bank-import
// pipeline, resolving the member by their cooperative member number.
func (s *Service) RecordImportedPayment(ctx context.Context, event domain.PaymentReceivedEvent) error {
	member, err := s.repo.FindMemberByMemberNo(ctx, event.MemberNo)
	if err != nil {
		return fmt.Errorf("failed to resolve member %q: %w", event.MemberNo, err)
	}
	paidAt := event.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	kind := domain.PaymentKind(event.Kind)
	switch kind {
	case domain.PaymentKindSharePurchase, domain.PaymentKindMembershipFee, domain.PaymentKindLoanRepayment, domain.PaymentKindDividendPayout:
	default:
		kind = domain.PaymentKindMembershipFee
	}
	payment := &domain.Payment{
		ID:        uuid.New(),
		MemberID:  member.ID,
		Amount:    event.Amount,
		Kind:      kind,
		Reference: event.Reference,
		PaidAt:    paidAt,
	}
	return s.repo.CreatePayment(ctx, payment)
}
