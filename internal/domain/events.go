package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShareTransferCompletedEvent is published after a transfer completion has
// committed. Downstream consumers (messaging, document generation) react to
// it; the workflow itself performs no external I/O.
type ShareTransferCompletedEvent struct {
	TransferID     uuid.UUID `json:"transfer_id"`
	FromMemberID   uuid.UUID `json:"from_member_id"`
	ToMemberID     uuid.UUID `json:"to_member_id"`
	Quantity       int64     `json:"quantity"`
	CertificateNo  string    `json:"certificate_no"`
	CompletionDate time.Time `json:"completion_date"`
}

// MemberLockedEvent is published when a member is auto-locked after full
// divestiture.
type MemberLockedEvent struct {
	MemberID uuid.UUID `json:"member_id"`
	Reason   string    `json:"reason"`
	LockedAt time.Time `json:"locked_at"`
}

// DividendPaidEvent is published per member when a dividend run pays out.
type DividendPaidEvent struct {
	RunID    uuid.UUID `json:"run_id"`
	MemberID uuid.UUID `json:"member_id"`
	Year     int       `json:"year"`
	Amount   int64     `json:"amount"`
	PaidAt   time.Time `json:"paid_at"`
}

// PaymentReceivedEvent is consumed from the bank-import pipeline; each event
// becomes one payment ledger row.
type PaymentReceivedEvent struct {
	MemberNo  string    `json:"member_no"`
	Amount    int64     `json:"amount"`
	Kind      string    `json:"kind"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paid_at"`
}
