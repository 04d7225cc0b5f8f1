/**
 * @description
 * This file defines the member entity and the member status lifecycle for the
 * membership-service. Member status is never deleted, only transitioned between
 * soft states; the divestiture policy below is the only place in the codebase
 * that decides an automatic status transition.
 *
 * @notes
 * - Monetary values are stored as `int64` in cents to avoid floating-point
 *   inaccuracies with financial data.
 * - Aggregate share holdings (count/value) are always derived from active
 *   shares, never stored on the member row.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MemberStatus enumerates the lifecycle states of a cooperative member.
type MemberStatus string

const (
	MemberStatusActive     MemberStatus = "active"
	MemberStatusInactive   MemberStatus = "inactive"
	MemberStatusLocked     MemberStatus = "locked"
	MemberStatusSuspended  MemberStatus = "suspended"
	MemberStatusTerminated MemberStatus = "terminated"
)

// Member represents a cooperative member. This struct maps directly to the
// `members` table in the database.
type Member struct {
	ID        uuid.UUID    `json:"id"`
	MemberNo  string       `json:"member_no"`
	FullName  string       `json:"full_name"`
	Email     string       `json:"email"`
	Status    MemberStatus `json:"status"`
	JoinedAt  time.Time    `json:"joined_at"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// MemberHoldings is the derived aggregate over a member's active shares.
type MemberHoldings struct {
	TotalShareCount int64 `json:"total_share_count"`
	TotalShareValue int64 `json:"total_share_value"` // in cents
}

// MemberStatusAfterDivestiture decides the member status that results from a
// change in active share holdings. A member in good standing who has just
// divested their entire holding is administratively locked pending review;
// members already in any non-active state keep their current status, and a
// member retaining at least one active share stays untouched.
func MemberStatusAfterDivestiture(current MemberStatus, activeShareTotal int64) MemberStatus {
	if activeShareTotal == 0 && current == MemberStatusActive {
		return MemberStatusLocked
	}
	return current
}

// CreateMemberRequest is the DTO for member onboarding API requests.
type CreateMemberRequest struct {
	MemberNo string `json:"member_no"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// UpdateMemberStatusRequest is the DTO for administrative status changes.
type UpdateMemberStatusRequest struct {
	Status MemberStatus `json:"status"`
}
