/**
 * @description
 * This file defines the financial side entities of the membership-service:
 * member payments, dividend runs and their per-member allocations, and
 * subordinated loans. All amounts are `int64` cents.
 */

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentKind enumerates what a member payment was for.
type PaymentKind string

const (
	PaymentKindSharePurchase  PaymentKind = "share_purchase"
	PaymentKindMembershipFee  PaymentKind = "membership_fee"
	PaymentKindLoanRepayment  PaymentKind = "loan_repayment"
	PaymentKindDividendPayout PaymentKind = "dividend_payout"
)

// Payment is one ledger row in a member's payment history.
type Payment struct {
	ID        uuid.UUID   `json:"id"`
	MemberID  uuid.UUID   `json:"member_id"`
	Amount    int64       `json:"amount"` // in cents
	Kind      PaymentKind `json:"kind"`
	Reference string      `json:"reference"`
	PaidAt    time.Time   `json:"paid_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// DividendRunStatus enumerates the lifecycle of a yearly dividend run.
type DividendRunStatus string

const (
	DividendRunStatusDraft    DividendRunStatus = "draft"
	DividendRunStatusApproved DividendRunStatus = "approved"
	DividendRunStatusPaid     DividendRunStatus = "paid"
)

var (
	ErrDividendRunNotPayable = errors.New("dividend run is not approved for payout")
	ErrInvalidDividendRate   = errors.New("dividend rate must be between 0 and 100 percent")
)

// DividendRun is a declared dividend for one fiscal year.
type DividendRun struct {
	ID          uuid.UUID         `json:"id"`
	Year        int               `json:"year"`
	RatePercent float64           `json:"rate_percent"`
	Status      DividendRunStatus `json:"status"`
	DeclaredAt  time.Time         `json:"declared_at"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
}

// DividendAllocation is one member's slice of a dividend run, frozen at
// declaration time from their active share value.
type DividendAllocation struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	MemberID   uuid.UUID `json:"member_id"`
	ShareValue int64     `json:"share_value"` // basis, in cents
	Amount     int64     `json:"amount"`      // payout, in cents
}

// DividendAmount computes a member's payout for a given active share value and
// rate, rounding down to whole cents. Cooperatives never pay fractional cents.
func DividendAmount(shareValue int64, ratePercent float64) int64 {
	if shareValue <= 0 || ratePercent <= 0 {
		return 0
	}
	return int64(float64(shareValue) * ratePercent / 100.0)
}

// LoanStatus enumerates the lifecycle states of a subordinated loan.
type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "active"
	LoanStatusTerminated LoanStatus = "terminated"
	LoanStatusRepaid     LoanStatus = "repaid"
)

var ErrLoanNoticePeriod = errors.New("termination date falls inside the notice period")

// SubordinatedLoan is a member loan to the cooperative, terminable only after
// the contractual notice period.
type SubordinatedLoan struct {
	ID                  uuid.UUID  `json:"id"`
	MemberID            uuid.UUID  `json:"member_id"`
	Principal           int64      `json:"principal"` // in cents
	InterestRatePercent float64    `json:"interest_rate_percent"`
	NoticePeriodMonths  int        `json:"notice_period_months"`
	StartDate           time.Time  `json:"start_date"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	Status              LoanStatus `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// EarliestTermination returns the first date the loan may legally end,
// counted from the moment notice is given.
func (l *SubordinatedLoan) EarliestTermination(noticeGivenAt time.Time) time.Time {
	return noticeGivenAt.AddDate(0, l.NoticePeriodMonths, 0)
}

// Document is the metadata record for a file held in the external WebDAV
// store; the service never keeps file bytes in the database.
type Document struct {
	ID          uuid.UUID `json:"id"`
	MemberID    uuid.UUID `json:"member_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// RecordPaymentRequest is the DTO for recording a member payment.
type RecordPaymentRequest struct {
	MemberID  uuid.UUID   `json:"member_id"`
	Amount    int64       `json:"amount"`
	Kind      PaymentKind `json:"kind"`
	Reference string      `json:"reference"`
}

// DeclareDividendRequest is the DTO for declaring a yearly dividend.
type DeclareDividendRequest struct {
	Year        int     `json:"year"`
	RatePercent float64 `json:"rate_percent"`
}

// CreateLoanRequest is the DTO for registering a subordinated loan.
type CreateLoanRequest struct {
	MemberID            uuid.UUID `json:"member_id"`
	Principal           int64     `json:"principal"`
	InterestRatePercent float64   `json:"interest_rate_percent"`
	NoticePeriodMonths  int       `json:"notice_period_months"`
}

// TerminateLoanRequest is the DTO for giving notice on a loan.
type TerminateLoanRequest struct {
	TerminationDate time.Time `json:"termination_date"`
}
