/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface for members, shares, and share transfers, including the atomic
 * transfer-completion transaction that is the heart of the service.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coopsuite/membership-service/internal/domain"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrShareNotFound       = errors.New("share not found")
	ErrTransferNotFound    = errors.New("share transfer not found")
	ErrDividendRunNotFound = errors.New("dividend run not found")
	ErrDividendRunExists   = errors.New("dividend run already declared for year")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDuplicateMemberNo   = errors.New("member number already in use")
	ErrConcurrencyConflict = errors.New("concurrent write detected, retry the operation")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// isSerializationFailure reports whether err is a PostgreSQL serialization or
// deadlock failure, both of which are safe for the caller to retry.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// CreateMember inserts a new member row.
func (r *PostgresRepository) CreateMember(ctx context.Context, member *domain.Member) error {
	query := `
		INSERT INTO members (id, member_no, full_name, email, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		member.ID, member.MemberNo, member.FullName, member.Email, member.Status, member.JoinedAt,
	).Scan(&member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateMemberNo
		}
		return err
	}
	return nil
}

// FindMemberByID retrieves a member by their internal UUID.
func (r *PostgresRepository) FindMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	query := `SELECT id, member_no, full_name, email, status, joined_at, created_at, updated_at FROM members WHERE id = $1`
	err := r.db.QueryRow(ctx, query, memberID).Scan(
		&m.ID, &m.MemberNo, &m.FullName, &m.Email, &m.Status, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindMemberByMemberNo retrieves a member by their cooperative member number.
func (r *PostgresRepository) FindMemberByMemberNo(ctx context.Context, memberNo string) (*domain.Member, error) {
	var m domain.Member
	query := `SELECT id, member_no, full_name, email, status, joined_at, created_at, updated_at FROM members WHERE member_no = $1`
	err := r.db.QueryRow(ctx, query, memberNo).Scan(
		&m.ID, &m.MemberNo, &m.FullName, &m.Email, &m.Status, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListMembers returns members ordered by member number.
func (r *PostgresRepository) ListMembers(ctx context.Context, limit, offset int) ([]domain.Member, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, member_no, full_name, email, status, joined_at, created_at, updated_at
		FROM members
		ORDER BY member_no
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.MemberNo, &m.FullName, &m.Email, &m.Status, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMemberStatus sets a member's status.
func (r *PostgresRepository) UpdateMemberStatus(ctx context.Context, memberID uuid.UUID, status domain.MemberStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE members SET status = $1, updated_at = NOW() WHERE id = $2`, status, memberID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// MemberHoldings computes the derived aggregate over a member's active shares.
func (r *PostgresRepository) MemberHoldings(ctx context.Context, memberID uuid.UUID) (*domain.MemberHoldings, error) {
	var h domain.MemberHoldings
	query := `
		SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(quantity * nominal_value), 0)
		FROM cooperative_shares
		WHERE member_id = $1 AND status = 'active'
	`
	if err := r.db.QueryRow(ctx, query, memberID).Scan(&h.TotalShareCount, &h.TotalShareValue); err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateShare inserts a new share certificate row.
func (r *PostgresRepository) CreateShare(ctx context.Context, share *domain.CooperativeShare) error {
	query := `
		INSERT INTO cooperative_shares (id, member_id, certificate_number, quantity, nominal_value, status, issue_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		share.ID, share.MemberID, share.CertificateNumber, share.Quantity,
		share.NominalValue, share.Status, share.IssueDate,
	).Scan(&share.CreatedAt, &share.UpdatedAt)
}

// FindShareByID retrieves a share certificate by its ID.
func (r *PostgresRepository) FindShareByID(ctx context.Context, shareID uuid.UUID) (*domain.CooperativeShare, error) {
	var s domain.CooperativeShare
	query := `
		SELECT id, member_id, certificate_number, quantity, nominal_value, status, issue_date, transferred_at, created_at, updated_at
		FROM cooperative_shares
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, shareID).Scan(
		&s.ID, &s.MemberID, &s.CertificateNumber, &s.Quantity, &s.NominalValue,
		&s.Status, &s.IssueDate, &s.TransferredAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindActiveSharesByMemberID returns all active certificates owned by a member.
func (r *PostgresRepository) FindActiveSharesByMemberID(ctx context.Context, memberID uuid.UUID) ([]domain.CooperativeShare, error) {
	query := `
		SELECT id, member_id, certificate_number, quantity, nominal_value, status, issue_date, transferred_at, created_at, updated_at
		FROM cooperative_shares
		WHERE member_id = $1 AND status = 'active'
		ORDER BY issue_date
	`
	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []domain.CooperativeShare
	for rows.Next() {
		var s domain.CooperativeShare
		if err := rows.Scan(&s.ID, &s.MemberID, &s.CertificateNumber, &s.Quantity, &s.NominalValue,
			&s.Status, &s.IssueDate, &s.TransferredAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// CreateShareTransfer inserts a new transfer request row.
func (r *PostgresRepository) CreateShareTransfer(ctx context.Context, transfer *domain.ShareTransfer) error {
	query := `
		INSERT INTO share_transfers (id, share_id, from_member_id, to_member_id, quantity, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		transfer.ID, transfer.ShareID, transfer.FromMemberID, transfer.ToMemberID,
		transfer.Quantity, transfer.Status, transfer.RequestedAt,
	).Scan(&transfer.CreatedAt, &transfer.UpdatedAt)
}

// FindShareTransferByID retrieves a share transfer by its ID.
func (r *PostgresRepository) FindShareTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.ShareTransfer, error) {
	var t domain.ShareTransfer
	query := `
		SELECT id, share_id, from_member_id, to_member_id, quantity, status,
		       requested_at, decided_at, completion_date, created_at, updated_at
		FROM share_transfers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, transferID).Scan(
		&t.ID, &t.ShareID, &t.FromMemberID, &t.ToMemberID, &t.Quantity, &t.Status,
		&t.RequestedAt, &t.DecidedAt, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListShareTransfersByMember returns transfers where the member is either side.
func (r *PostgresRepository) ListShareTransfersByMember(ctx context.Context, memberID uuid.UUID) ([]domain.ShareTransfer, error) {
	query := `
		SELECT id, share_id, from_member_id, to_member_id, quantity, status,
		       requested_at, decided_at, completion_date, created_at, updated_at
		FROM share_transfers
		WHERE from_member_id = $1 OR to_member_id = $1
		ORDER BY requested_at DESC
	`
	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.ShareTransfer
	for rows.Next() {
		var t domain.ShareTransfer
		if err := rows.Scan(&t.ID, &t.ShareID, &t.FromMemberID, &t.ToMemberID, &t.Quantity, &t.Status,
			&t.RequestedAt, &t.DecidedAt, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// DecideShareTransfer moves a requested transfer to approved or rejected. The
// WHERE clause only matches requested transfers, so a decision never
// overwrites a completed or already-decided one.
func (r *PostgresRepository) DecideShareTransfer(ctx context.Context, transferID uuid.UUID, status domain.TransferStatus, decidedAt time.Time) (*domain.ShareTransfer, error) {
	var t domain.ShareTransfer
	query := `
		UPDATE share_transfers
		SET status = $2, decided_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'requested'
		RETURNING id, share_id, from_member_id, to_member_id, quantity, status,
		          requested_at, decided_at, completion_date, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, transferID, status, decidedAt).Scan(
		&t.ID, &t.ShareID, &t.FromMemberID, &t.ToMemberID, &t.Quantity, &t.Status,
		&t.RequestedAt, &t.DecidedAt, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Distinguish unknown transfer from one in the wrong state.
			if _, findErr := r.FindShareTransferByID(ctx, transferID); findErr != nil {
				return nil, findErr
			}
			return nil, domain.ErrInvalidTransferState
		}
		return nil, err
	}
	return &t, nil
}

// CompleteShareTransferAtomic performs the transfer completion as one database
// transaction. The transfer row and the source share row are locked with
// SELECT ... FOR UPDATE so two completions against the same transfer or the
// same certificate serialize; the loser re-reads already-mutated state and
// fails validation instead of double-spending quantity.
func (r *PostgresRepository) CompleteShareTransferAtomic(ctx context.Context, transferID uuid.UUID, certs domain.CertificateNumbers, now time.Time) (*domain.TransferCompletion, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the transfer row.
	var transfer domain.ShareTransfer
	err = tx.QueryRow(ctx, `
		SELECT id, share_id, from_member_id, to_member_id, quantity, status,
		       requested_at, decided_at, completion_date, created_at, updated_at
		FROM share_transfers
		WHERE id = $1
		FOR UPDATE
	`, transferID).Scan(
		&transfer.ID, &transfer.ShareID, &transfer.FromMemberID, &transfer.ToMemberID,
		&transfer.Quantity, &transfer.Status, &transfer.RequestedAt, &transfer.DecidedAt,
		&transfer.CompletionDate, &transfer.CreatedAt, &transfer.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		if isSerializationFailure(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to lock share transfer: %w", err)
	}

	// 2. Lock the source share row.
	var source domain.CooperativeShare
	err = tx.QueryRow(ctx, `
		SELECT id, member_id, certificate_number, quantity, nominal_value, status, issue_date, transferred_at, created_at, updated_at
		FROM cooperative_shares
		WHERE id = $1
		FOR UPDATE
	`, transfer.ShareID).Scan(
		&source.ID, &source.MemberID, &source.CertificateNumber, &source.Quantity, &source.NominalValue,
		&source.Status, &source.IssueDate, &source.TransferredAt, &source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrShareNotFound
		}
		if isSerializationFailure(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to lock source share: %w", err)
	}

	// 3. Load both members; the destination member must exist even though the
	// mutation only touches the source member's status.
	var fromMember domain.Member
	err = tx.QueryRow(ctx, `
		SELECT id, member_no, full_name, email, status, joined_at, created_at, updated_at
		FROM members WHERE id = $1
	`, transfer.FromMemberID).Scan(
		&fromMember.ID, &fromMember.MemberNo, &fromMember.FullName, &fromMember.Email,
		&fromMember.Status, &fromMember.JoinedAt, &fromMember.CreatedAt, &fromMember.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to load source member: %w", err)
	}
	var toMemberExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, transfer.ToMemberID).Scan(&toMemberExists); err != nil {
		return nil, fmt.Errorf("failed to check destination member: %w", err)
	}
	if !toMemberExists {
		return nil, ErrMemberNotFound
	}

	// 4. Current active total for the source member, computed under the lock.
	var activeTotal int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM cooperative_shares
		WHERE member_id = $1 AND status = 'active'
	`, transfer.FromMemberID).Scan(&activeTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to compute active share total: %w", err)
	}

	// 5. Compute the mutation set.
	completion, err := domain.BuildTransferCompletion(transfer, source, fromMember, activeTotal, certs, now)
	if err != nil {
		return nil, err
	}

	// 6. Apply it.
	_, err = tx.Exec(ctx, `
		UPDATE cooperative_shares
		SET status = 'transferred', transferred_at = $2, updated_at = NOW()
		WHERE id = $1
	`, completion.SourceShare.ID, completion.SourceShare.TransferredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark source share transferred: %w", err)
	}

	insertShare := `
		INSERT INTO cooperative_shares (id, member_id, certificate_number, quantity, nominal_value, status, issue_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	newShares := []*domain.CooperativeShare{&completion.RecipientShare}
	if completion.RemainderShare != nil {
		newShares = append(newShares, completion.RemainderShare)
	}
	for _, ns := range newShares {
		if _, err := tx.Exec(ctx, insertShare,
			ns.ID, ns.MemberID, ns.CertificateNumber, ns.Quantity, ns.NominalValue, ns.Status, ns.IssueDate,
		); err != nil {
			return nil, fmt.Errorf("failed to insert certificate %s: %w", ns.CertificateNumber, err)
		}
	}

	if completion.FromMemberStatus != fromMember.Status {
		if _, err := tx.Exec(ctx, `
			UPDATE members SET status = $2, updated_at = NOW() WHERE id = $1
		`, fromMember.ID, completion.FromMemberStatus); err != nil {
			return nil, fmt.Errorf("failed to update source member status: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE share_transfers
		SET status = 'completed', completion_date = $2, updated_at = NOW()
		WHERE id = $1
	`, transfer.ID, completion.Transfer.CompletionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transfer completed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to commit transfer completion: %w", err)
	}
	return completion, nil
}

// NextCertificateNumber draws the next value from the certificate sequence.
func (r *PostgresRepository) NextCertificateNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('certificate_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("failed to draw certificate number: %w", err)
	}
	return fmt.Sprintf("CERT-%06d", n), nil
}
