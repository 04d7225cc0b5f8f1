package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
	"github.com/coopsuite/membership-service/internal/store"
)

// stubRepository embeds the Repository interface so tests only implement the
// methods a scenario touches; anything else panics with a nil method.
type stubRepository struct {
	store.Repository

	members   map[uuid.UUID]*domain.Member
	shares    map[uuid.UUID]*domain.CooperativeShare
	transfers map[uuid.UUID]*domain.ShareTransfer

	activeTotals map[uuid.UUID]int64

	createdTransfers []*domain.ShareTransfer
	createdShares    []*domain.CooperativeShare
	createdPayments  []*domain.Payment
	atomicCalls      int
	atomicErr        error
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		members:      map[uuid.UUID]*domain.Member{},
		shares:       map[uuid.UUID]*domain.CooperativeShare{},
		transfers:    map[uuid.UUID]*domain.ShareTransfer{},
		activeTotals: map[uuid.UUID]int64{},
	}
}

func (r *stubRepository) FindMemberByID(_ context.Context, id uuid.UUID) (*domain.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, store.ErrMemberNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *stubRepository) FindMemberByMemberNo(_ context.Context, memberNo string) (*domain.Member, error) {
	for _, m := range r.members {
		if m.MemberNo == memberNo {
			copied := *m
			return &copied, nil
		}
	}
	return nil, store.ErrMemberNotFound
}

func (r *stubRepository) FindShareByID(_ context.Context, id uuid.UUID) (*domain.CooperativeShare, error) {
	s, ok := r.shares[id]
	if !ok {
		return nil, store.ErrShareNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *stubRepository) FindShareTransferByID(_ context.Context, id uuid.UUID) (*domain.ShareTransfer, error) {
	tr, ok := r.transfers[id]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	copied := *tr
	return &copied, nil
}

func (r *stubRepository) CreateShareTransfer(_ context.Context, transfer *domain.ShareTransfer) error {
	r.createdTransfers = append(r.createdTransfers, transfer)
	r.transfers[transfer.ID] = transfer
	return nil
}

func (r *stubRepository) CreateShare(_ context.Context, share *domain.CooperativeShare) error {
	r.createdShares = append(r.createdShares, share)
	r.shares[share.ID] = share
	return nil
}

func (r *stubRepository) CreatePayment(_ context.Context, payment *domain.Payment) error {
	r.createdPayments = append(r.createdPayments, payment)
	return nil
}

func (r *stubRepository) CompleteShareTransferAtomic(_ context.Context, transferID uuid.UUID, certs domain.CertificateNumbers, now time.Time) (*domain.TransferCompletion, error) {
	r.atomicCalls++
	if r.atomicErr != nil {
		return nil, r.atomicErr
	}
	transfer, ok := r.transfers[transferID]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	share := r.shares[transfer.ShareID]
	member := r.members[transfer.FromMemberID]
	return domain.BuildTransferCompletion(*transfer, *share, *member, r.activeTotals[member.ID], certs, now)
}

// stubCerts hands out deterministic certificate numbers.
type stubCerts struct {
	next  int
	drawn []string
}

func (c *stubCerts) NextCertificateNumber(context.Context) (string, error) {
	c.next++
	number := fmt.Sprintf("CERT-%06d", c.next)
	c.drawn = append(c.drawn, number)
	return number, nil
}

// stubPublisher records every published event.
type stubPublisher struct {
	transferEvents []domain.ShareTransferCompletedEvent
	lockedEvents   []domain.MemberLockedEvent
	dividendEvents []domain.DividendPaidEvent
}

func (p *stubPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

func (p *stubPublisher) PublishTransferCompleted(_ context.Context, event domain.ShareTransferCompletedEvent) error {
	p.transferEvents = append(p.transferEvents, event)
	return nil
}

func (p *stubPublisher) PublishMemberLocked(_ context.Context, event domain.MemberLockedEvent) error {
	p.lockedEvents = append(p.lockedEvents, event)
	return nil
}

func (p *stubPublisher) PublishDividendPaid(_ context.Context, event domain.DividendPaidEvent) error {
	p.dividendEvents = append(p.dividendEvents, event)
	return nil
}

func (p *stubPublisher) Close() {}

func seedTransferScenario(repo *stubRepository, shareQuantity, transferQuantity, activeTotal int64) (*domain.Member, *domain.Member, *domain.CooperativeShare, *domain.ShareTransfer) {
	from := &domain.Member{ID: uuid.New(), MemberNo: "M001", FullName: "Ada Kern", Status: domain.MemberStatusActive}
	to := &domain.Member{ID: uuid.New(), MemberNo: "M002", FullName: "Ben Roth", Status: domain.MemberStatusActive}
	share := &domain.CooperativeShare{
		ID:                uuid.New(),
		MemberID:          from.ID,
		CertificateNumber: "CERT-000001",
		Quantity:          shareQuantity,
		NominalValue:      10000,
		Status:            domain.ShareStatusActive,
		IssueDate:         time.Now().UTC().AddDate(-2, 0, 0),
	}
	transfer := &domain.ShareTransfer{
		ID:           uuid.New(),
		ShareID:      share.ID,
		FromMemberID: from.ID,
		ToMemberID:   to.ID,
		Quantity:     transferQuantity,
		Status:       domain.TransferStatusApproved,
		RequestedAt:  time.Now().UTC(),
	}
	repo.members[from.ID] = from
	repo.members[to.ID] = to
	repo.shares[share.ID] = share
	repo.transfers[transfer.ID] = transfer
	repo.activeTotals[from.ID] = activeTotal
	return from, to, share, transfer
}

func TestCompleteShareTransferFullDivestiturePublishesEvents(t *testing.T) {
	repo := newStubRepository()
	from, to, _, transfer := seedTransferScenario(repo, 5, 5, 5)
	certs := &stubCerts{}
	publisher := &stubPublisher{}
	service := NewService(repo, certs, nil, publisher)

	completion, err := service.CompleteShareTransfer(context.Background(), transfer.ID)
	if err != nil {
		t.Fatalf("expected completion, got error: %v", err)
	}

	if repo.atomicCalls != 1 {
		t.Errorf("expected one atomic completion, got %d", repo.atomicCalls)
	}
	if len(certs.drawn) != 1 {
		t.Errorf("full transfer must draw exactly one certificate number, drew %v", certs.drawn)
	}
	if completion.FromMemberStatus != domain.MemberStatusLocked {
		t.Errorf("expected locked source member, got %s", completion.FromMemberStatus)
	}

	if len(publisher.transferEvents) != 1 {
		t.Fatalf("expected one transfer completed event, got %d", len(publisher.transferEvents))
	}
	event := publisher.transferEvents[0]
	if event.FromMemberID != from.ID || event.ToMemberID != to.ID || event.Quantity != 5 {
		t.Errorf("unexpected transfer event: %+v", event)
	}
	if len(publisher.lockedEvents) != 1 {
		t.Fatalf("expected one member locked event, got %d", len(publisher.lockedEvents))
	}
	if publisher.lockedEvents[0].MemberID != from.ID {
		t.Errorf("locked event for %s, want %s", publisher.lockedEvents[0].MemberID, from.ID)
	}
}

func TestCompleteShareTransferPartialDrawsRemainderCertificate(t *testing.T) {
	repo := newStubRepository()
	_, _, _, transfer := seedTransferScenario(repo, 8, 5, 8)
	certs := &stubCerts{}
	publisher := &stubPublisher{}
	service := NewService(repo, certs, nil, publisher)

	completion, err := service.CompleteShareTransfer(context.Background(), transfer.ID)
	if err != nil {
		t.Fatalf("expected completion, got error: %v", err)
	}

	if len(certs.drawn) != 2 {
		t.Errorf("split must draw two certificate numbers, drew %v", certs.drawn)
	}
	if completion.RemainderShare == nil || completion.RemainderShare.Quantity != 3 {
		t.Errorf("expected remainder certificate of 3 units, got %+v", completion.RemainderShare)
	}
	if completion.FromMemberStatus != domain.MemberStatusActive {
		t.Errorf("member retaining units must stay active, got %s", completion.FromMemberStatus)
	}
	if len(publisher.lockedEvents) != 0 {
		t.Errorf("no lock event expected on a partial transfer, got %d", len(publisher.lockedEvents))
	}
}

func TestCompleteShareTransferRejectsUnapprovedTransfer(t *testing.T) {
	repo := newStubRepository()
	_, _, _, transfer := seedTransferScenario(repo, 5, 5, 5)
	transfer.Status = domain.TransferStatusRequested
	service := NewService(repo, &stubCerts{}, nil, &stubPublisher{})

	if _, err := service.CompleteShareTransfer(context.Background(), transfer.ID); !errors.Is(err, domain.ErrInvalidTransferState) {
		t.Errorf("expected ErrInvalidTransferState, got %v", err)
	}
	if repo.atomicCalls != 0 {
		t.Errorf("no atomic call expected for an unapproved transfer")
	}
}

func TestCompleteShareTransferSurfacesConcurrencyConflict(t *testing.T) {
	repo := newStubRepository()
	_, _, _, transfer := seedTransferScenario(repo, 5, 5, 5)
	repo.atomicErr = store.ErrConcurrencyConflict
	publisher := &stubPublisher{}
	service := NewService(repo, &stubCerts{}, nil, publisher)

	if _, err := service.CompleteShareTransfer(context.Background(), transfer.ID); !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Errorf("expected ErrConcurrencyConflict, got %v", err)
	}
	if len(publisher.transferEvents) != 0 {
		t.Errorf("no event must go out when the transaction fails")
	}
}

func TestRequestShareTransferValidation(t *testing.T) {
	repo := newStubRepository()
	from, to, share, _ := seedTransferScenario(repo, 5, 5, 5)
	service := NewService(repo, &stubCerts{}, nil, &stubPublisher{})
	ctx := context.Background()

	t.Run("self transfer rejected", func(t *testing.T) {
		req := domain.CreateTransferRequest{ShareID: share.ID, ToMemberID: from.ID, Quantity: 2}
		if _, err := service.RequestShareTransfer(ctx, from.ID, req); !errors.Is(err, ErrSelfTransferNotAllowed) {
			t.Errorf("expected ErrSelfTransferNotAllowed, got %v", err)
		}
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		req := domain.CreateTransferRequest{ShareID: share.ID, ToMemberID: to.ID, Quantity: 0}
		if _, err := service.RequestShareTransfer(ctx, from.ID, req); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("insufficient units rejected", func(t *testing.T) {
		req := domain.CreateTransferRequest{ShareID: share.ID, ToMemberID: to.ID, Quantity: 9}
		if _, err := service.RequestShareTransfer(ctx, from.ID, req); !errors.Is(err, domain.ErrInsufficientShares) {
			t.Errorf("expected ErrInsufficientShares, got %v", err)
		}
	})

	t.Run("foreign share rejected", func(t *testing.T) {
		req := domain.CreateTransferRequest{ShareID: share.ID, ToMemberID: from.ID, Quantity: 2}
		if _, err := service.RequestShareTransfer(ctx, to.ID, req); !errors.Is(err, domain.ErrShareNotTransferable) {
			t.Errorf("expected ErrShareNotTransferable, got %v", err)
		}
	})

	t.Run("valid request persists", func(t *testing.T) {
		req := domain.CreateTransferRequest{ShareID: share.ID, ToMemberID: to.ID, Quantity: 2}
		transfer, err := service.RequestShareTransfer(ctx, from.ID, req)
		if err != nil {
			t.Fatalf("expected transfer, got error: %v", err)
		}
		if transfer.Status != domain.TransferStatusRequested {
			t.Errorf("new transfer status %s, want requested", transfer.Status)
		}
		if len(repo.createdTransfers) != 1 {
			t.Errorf("expected one persisted transfer, got %d", len(repo.createdTransfers))
		}
	})
}

func TestRequestShareTransferRateLimited(t *testing.T) {
	repo := newStubRepository()
	from, to, share, _ := seedTransferScenario(repo, 5, 5, 5)
	service := NewService(repo, &stubCerts{}, nil, &stubPublisher{})
	service.SetRateLimiter(&fixedLimiter{count: 31}, 0, 30)

	req := domain.CreateTransferRequest{ShareID: share.ID, ToMemberID: to.ID, Quantity: 2}
	if _, err := service.RequestShareTransfer(context.Background(), from.ID, req); !errors.Is(err, ErrTransferRateLimited) {
		t.Errorf("expected ErrTransferRateLimited, got %v", err)
	}
}

func TestIssueSharesRecordsPurchasePayment(t *testing.T) {
	repo := newStubRepository()
	member := &domain.Member{ID: uuid.New(), MemberNo: "M010", Status: domain.MemberStatusActive}
	repo.members[member.ID] = member
	service := NewService(repo, &stubCerts{}, nil, &stubPublisher{})

	share, err := service.IssueShares(context.Background(), domain.IssueSharesRequest{
		MemberID:     member.ID,
		Quantity:     4,
		NominalValue: 25000,
	})
	if err != nil {
		t.Fatalf("expected share, got error: %v", err)
	}
	if share.CertificateNumber != "CERT-000001" {
		t.Errorf("certificate number %q", share.CertificateNumber)
	}
	if len(repo.createdPayments) != 1 {
		t.Fatalf("expected one purchase payment, got %d", len(repo.createdPayments))
	}
	payment := repo.createdPayments[0]
	if payment.Kind != domain.PaymentKindSharePurchase || payment.Amount != 100000 {
		t.Errorf("unexpected purchase payment: kind=%s amount=%d", payment.Kind, payment.Amount)
	}
}
