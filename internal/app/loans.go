package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
)

// CreateSubordinatedLoan registers a member loan to the cooperative.
func (s *Service) CreateSubordinatedLoan(ctx context.Context, req domain.CreateLoanRequest) (*domain.SubordinatedLoan, error) {
	if req.Principal <= 0 {
		return nil, fmt.Errorf("loan principal must be positive")
	}
	if req.NoticePeriodMonths < 0 {
		return nil, fmt.Errorf("notice period must not be negative")
	}
	if _, err := s.repo.FindMemberByID(ctx, req.MemberID); err != nil {
		return nil, err
	}
	if req.NoticePeriodMonths == 0 && s.defaultNoticeMonths > 0 {
		req.NoticePeriodMonths = s.defaultNoticeMonths
	}
	loan := &domain.SubordinatedLoan{
		ID:                  uuid.New(),
		MemberID:            req.MemberID,
		Principal:           req.Principal,
		InterestRatePercent: req.InterestRatePercent,
		NoticePeriodMonths:  req.NoticePeriodMonths,
		StartDate:           time.Now().UTC(),
		Status:              domain.LoanStatusActive,
	}
	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	return loan, nil
}

// TerminateSubordinatedLoan gives notice on a loan. The termination date must
// lie at or beyond the end of the contractual notice period, counted from now.
func (s *Service) TerminateSubordinatedLoan(ctx context.Context, loanID uuid.UUID, terminationDate time.Time) (*domain.SubordinatedLoan, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	earliest := loan.EarliestTermination(time.Now().UTC())
	if terminationDate.Before(earliest) {
		return nil, domain.ErrLoanNoticePeriod
	}
	if err := s.repo.TerminateLoan(ctx, loanID, terminationDate); err != nil {
		return nil, err
	}
	loan.Status = domain.LoanStatusTerminated
	loan.EndDate = &terminationDate
	return loan, nil
}

// ListMemberLoans returns a member's subordinated loans.
func (s *Service) ListMemberLoans(ctx context.Context, memberID uuid.UUID) ([]domain.SubordinatedLoan, error) {
	return s.repo.ListLoansByMember(ctx, memberID)
}
