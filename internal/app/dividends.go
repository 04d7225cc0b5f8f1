/**
 * @description
 * Dividend operations: declaring a yearly run (allocations frozen from each
 * member's active share value at declaration), approving it, and paying it
 * out. Payout records one dividend_payout payment per member and publishes
 * one event per allocation.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
)

// DeclareDividend creates a draft dividend run for a year. Allocations are
// computed from active members' holdings at declaration time; members with
// no active shares get no allocation.
func (s *Service) DeclareDividend(ctx context.Context, req domain.DeclareDividendRequest) (*domain.DividendRun, error) {
	if req.RatePercent < 0 || req.RatePercent > 100 {
		return nil, domain.ErrInvalidDividendRate
	}

	run := &domain.DividendRun{
		ID:          uuid.New(),
		Year:        req.Year,
		RatePercent: req.RatePercent,
		Status:      domain.DividendRunStatusDraft,
		DeclaredAt:  time.Now().UTC(),
	}

	var allocations []domain.DividendAllocation
	offset := 0
	const page = 200
	for {
		members, err := s.repo.ListMembers(ctx, page, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		for _, m := range members {
			holdings, err := s.repo.MemberHoldings(ctx, m.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to compute holdings for %s: %w", m.ID, err)
			}
			if holdings.TotalShareValue == 0 {
				continue
			}
			allocations = append(allocations, domain.DividendAllocation{
				ID:         uuid.New(),
				RunID:      run.ID,
				MemberID:   m.ID,
				ShareValue: holdings.TotalShareValue,
				Amount:     domain.DividendAmount(holdings.TotalShareValue, req.RatePercent),
			})
		}
		if len(members) < page {
			break
		}
		offset += page
	}

	if err := s.repo.CreateDividendRun(ctx, run, allocations); err != nil {
		return nil, err
	}
	log.Printf("level=info component=app msg=\"dividend run declared\" year=%d rate=%.2f allocations=%d", run.Year, run.RatePercent, len(allocations))
	return run, nil
}

// ApproveDividend moves a draft run to approved.
func (s *Service) ApproveDividend(ctx context.Context, runID uuid.UUID) error {
	return s.repo.ApproveDividendRun(ctx, runID)
}

// GetDividendRun returns the run declared for a year with its allocations.
func (s *Service) GetDividendRun(ctx context.Context, year int) (*domain.DividendRun, []domain.DividendAllocation, error) {
	run, err := s.repo.FindDividendRunByYear(ctx, year)
	if err != nil {
		return nil, nil, err
	}
	allocations, err := s.repo.ListDividendAllocations(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, allocations, nil
}

// PayDividend pays out an approved run. The repository flips the run to paid
// and writes the payout ledger rows in one transaction; events go out after
// the commit.
func (s *Service) PayDividend(ctx context.Context, year int) (*domain.DividendRun, error) {
	run, err := s.repo.FindDividendRunByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	paidAt := time.Now().UTC()
	allocations, err := s.repo.MarkDividendRunPaidAtomic(ctx, run.ID, paidAt)
	if err != nil {
		return nil, err
	}
	run.Status = domain.DividendRunStatusPaid
	run.PaidAt = &paidAt

	if s.eventProducer != nil {
		for _, a := range allocations {
			if a.Amount == 0 {
				continue
			}
			s.eventProducer.PublishDividendPaid(ctx, domain.DividendPaidEvent{
				RunID:    run.ID,
				MemberID: a.MemberID,
				Year:     run.Year,
				Amount:   a.Amount,
				PaidAt:   paidAt,
			})
		}
	}
	log.Printf("level=info component=app msg=\"dividend run paid\" year=%d allocations=%d", run.Year, len(allocations))
	return run, nil
}

// RemindUnpaidDividends logs a warning for every approved run still awaiting
// payout. Invoked from the cron schedule in main.
func (s *Service) RemindUnpaidDividends(ctx context.Context) {
	runs, err := s.repo.ListUnpaidApprovedDividendRuns(ctx)
	if err != nil {
		log.Printf("level=error component=app msg=\"unpaid dividend scan failed\" err=%v", err)
		return
	}
	for _, run := range runs {
		log.Printf("level=warn component=app msg=\"approved dividend run awaiting payout\" year=%d declared_at=%s", run.Year, run.DeclaredAt.Format(time.RFC3339))
	}
}
