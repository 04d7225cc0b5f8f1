package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coopsuite/membership-service/internal/domain"
)

type flakyPaymentRepo struct {
	*stubRepository
	createErr error
}

func (r *flakyPaymentRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.stubRepository.CreatePayment(ctx, payment)
}

func paymentEventBody(t *testing.T, event domain.PaymentReceivedEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func TestPaymentConsumerRecordsKnownMember(t *testing.T) {
	repo := newStubRepository()
	member := &domain.Member{ID: uuid.New(), MemberNo: "M100", Status: domain.MemberStatusActive}
	repo.members[member.ID] = member
	consumer := NewPaymentEventConsumer(NewService(repo, &stubCerts{}, nil, nil))

	body := paymentEventBody(t, domain.PaymentReceivedEvent{
		MemberNo:  "M100",
		Amount:    7500,
		Kind:      "membership_fee",
		Reference: "BANK-42",
		PaidAt:    time.Now().UTC(),
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected ack for a valid payment event")
	}
	if len(repo.createdPayments) != 1 {
		t.Fatalf("expected one recorded payment, got %d", len(repo.createdPayments))
	}
	if repo.createdPayments[0].MemberID != member.ID {
		t.Errorf("payment recorded for %s, want %s", repo.createdPayments[0].MemberID, member.ID)
	}
}

func TestPaymentConsumerDropsMalformedAndInvalidEvents(t *testing.T) {
	repo := newStubRepository()
	consumer := NewPaymentEventConsumer(NewService(repo, &stubCerts{}, nil, nil))

	if !consumer.HandleMessage([]byte("{not json")) {
		t.Error("malformed events must be acked, not requeued")
	}
	if !consumer.HandleMessage(paymentEventBody(t, domain.PaymentReceivedEvent{MemberNo: "", Amount: 100})) {
		t.Error("events without a member number must be dropped")
	}
	if !consumer.HandleMessage(paymentEventBody(t, domain.PaymentReceivedEvent{MemberNo: "M1", Amount: 0})) {
		t.Error("events with a non-positive amount must be dropped")
	}
	if len(repo.createdPayments) != 0 {
		t.Errorf("no payment should be recorded, got %d", len(repo.createdPayments))
	}
}

func TestPaymentConsumerDropsUnknownMember(t *testing.T) {
	repo := newStubRepository()
	consumer := NewPaymentEventConsumer(NewService(repo, &stubCerts{}, nil, nil))

	body := paymentEventBody(t, domain.PaymentReceivedEvent{MemberNo: "NOPE", Amount: 500})
	if !consumer.HandleMessage(body) {
		t.Error("an unknown member number never resolves; the event must be dropped")
	}
}

func TestPaymentConsumerRequeuesTransientFailure(t *testing.T) {
	repo := &flakyPaymentRepo{stubRepository: newStubRepository(), createErr: errors.New("connection reset")}
	member := &domain.Member{ID: uuid.New(), MemberNo: "M100", Status: domain.MemberStatusActive}
	repo.members[member.ID] = member
	consumer := NewPaymentEventConsumer(NewService(repo, &stubCerts{}, nil, nil))

	body := paymentEventBody(t, domain.PaymentReceivedEvent{MemberNo: "M100", Amount: 500})
	if consumer.HandleMessage(body) {
		t.Error("transient persistence failures must requeue the event")
	}
}
