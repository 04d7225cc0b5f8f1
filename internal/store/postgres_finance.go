/**
 * @description
 * PostgreSQL implementation of the finance-side repository methods: member
 * payments, dividend runs with their allocations, subordinated loans, and
 * document metadata.
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

	"github.com/coopsuite/membership-service/internal/domain"
)

// CreatePayment inserts one payment ledger row.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, member_id, amount, kind, reference, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		payment.ID, payment.MemberID, payment.Amount, payment.Kind, payment.Reference, payment.PaidAt,
	).Scan(&payment.CreatedAt)
}

// ListPaymentsByMember returns a member's payment history, newest first.
func (r *PostgresRepository) ListPaymentsByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Payment, error) {
	query := `
		SELECT id, member_id, amount, kind, reference, paid_at, created_at
		FROM payments
		WHERE member_id = $1
		ORDER BY paid_at DESC
	`
	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.MemberID, &p.Amount, &p.Kind, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreateDividendRun inserts a dividend run and its allocations in one transaction.
func (r *PostgresRepository) CreateDividendRun(ctx context.Context, run *domain.DividendRun, allocations []domain.DividendAllocation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO dividend_runs (id, year, rate_percent, status, declared_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Year, run.RatePercent, run.Status, run.DeclaredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDividendRunExists
		}
		return fmt.Errorf("failed to insert dividend run: %w", err)
	}

	for _, a := range allocations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO dividend_allocations (id, run_id, member_id, share_value, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, a.ID, a.RunID, a.MemberID, a.ShareValue, a.Amount); err != nil {
			return fmt.Errorf("failed to insert dividend allocation: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// FindDividendRunByYear retrieves the dividend run declared for a year.
func (r *PostgresRepository) FindDividendRunByYear(ctx context.Context, year int) (*domain.DividendRun, error) {
	var run domain.DividendRun
	query := `SELECT id, year, rate_percent, status, declared_at, paid_at FROM dividend_runs WHERE year = $1`
	err := r.db.QueryRow(ctx, query, year).Scan(&run.ID, &run.Year, &run.RatePercent, &run.Status, &run.DeclaredAt, &run.PaidAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDividendRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListDividendAllocations returns all allocations of a run.
func (r *PostgresRepository) ListDividendAllocations(ctx context.Context, runID uuid.UUID) ([]domain.DividendAllocation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, member_id, share_value, amount
		FROM dividend_allocations
		WHERE run_id = $1
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []domain.DividendAllocation
	for rows.Next() {
		var a domain.DividendAllocation
		if err := rows.Scan(&a.ID, &a.RunID, &a.MemberID, &a.ShareValue, &a.Amount); err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// ApproveDividendRun moves a draft run to approved.
func (r *PostgresRepository) ApproveDividendRun(ctx context.Context, runID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE dividend_runs SET status = 'approved' WHERE id = $1 AND status = 'draft'
	`, runID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.findDividendRunByID(ctx, runID); findErr != nil {
			return findErr
		}
		return domain.ErrDividendRunNotPayable
	}
	return nil
}

func (r *PostgresRepository) findDividendRunByID(ctx context.Context, runID uuid.UUID) (*domain.DividendRun, error) {
	var run domain.DividendRun
	err := r.db.QueryRow(ctx,
		`SELECT id, year, rate_percent, status, declared_at, paid_at FROM dividend_runs WHERE id = $1`, runID,
	).Scan(&run.ID, &run.Year, &run.RatePercent, &run.Status, &run.DeclaredAt, &run.PaidAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDividendRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// MarkDividendRunPaidAtomic flips an approved run to paid and records one
// dividend_payout payment per allocation, all in one transaction. The run row
// is locked so concurrent payouts of the same run cannot both succeed.
func (r *PostgresRepository) MarkDividendRunPaidAtomic(ctx context.Context, runID uuid.UUID, paidAt time.Time) ([]domain.DividendAllocation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.DividendRunStatus
	var year int
	err = tx.QueryRow(ctx, `SELECT status, year FROM dividend_runs WHERE id = $1 FOR UPDATE`, runID).Scan(&status, &year)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDividendRunNotFound
		}
		return nil, fmt.Errorf("failed to lock dividend run: %w", err)
	}
	if status != domain.DividendRunStatusApproved {
		return nil, domain.ErrDividendRunNotPayable
	}

	rows, err := tx.Query(ctx, `
		SELECT id, run_id, member_id, share_value, amount
		FROM dividend_allocations
		WHERE run_id = $1
	`, runID)
	if err != nil {
		return nil, err
	}
	var allocations []domain.DividendAllocation
	for rows.Next() {
		var a domain.DividendAllocation
		if err := rows.Scan(&a.ID, &a.RunID, &a.MemberID, &a.ShareValue, &a.Amount); err != nil {
			rows.Close()
			return nil, err
		}
		allocations = append(allocations, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range allocations {
		if a.Amount == 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO payments (id, member_id, amount, kind, reference, paid_at)
			VALUES ($1, $2, $3, 'dividend_payout', $4, $5)
		`, uuid.New(), a.MemberID, a.Amount, fmt.Sprintf("dividend %d", year), paidAt); err != nil {
			return nil, fmt.Errorf("failed to record dividend payout: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE dividend_runs SET status = 'paid', paid_at = $2 WHERE id = $1
	`, runID, paidAt); err != nil {
		return nil, fmt.Errorf("failed to mark dividend run paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}
	return allocations, nil
}

// ListUnpaidApprovedDividendRuns returns approved runs awaiting payout.
func (r *PostgresRepository) ListUnpaidApprovedDividendRuns(ctx context.Context) ([]domain.DividendRun, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, year, rate_percent, status, declared_at, paid_at
		FROM dividend_runs
		WHERE status = 'approved'
		ORDER BY year
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.DividendRun
	for rows.Next() {
		var run domain.DividendRun
		if err := rows.Scan(&run.ID, &run.Year, &run.RatePercent, &run.Status, &run.DeclaredAt, &run.PaidAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateLoan inserts a subordinated loan row.
func (r *PostgresRepository) CreateLoan(ctx context.Context, loan *domain.SubordinatedLoan) error {
	query := `
		INSERT INTO subordinated_loans (id, member_id, principal, interest_rate_percent, notice_period_months, start_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		loan.ID, loan.MemberID, loan.Principal, loan.InterestRatePercent,
		loan.NoticePeriodMonths, loan.StartDate, loan.Status,
	).Scan(&loan.CreatedAt, &loan.UpdatedAt)
}

// FindLoanByID retrieves a subordinated loan by its ID.
func (r *PostgresRepository) FindLoanByID(ctx context.Context, loanID uuid.UUID) (*domain.SubordinatedLoan, error) {
	var l domain.SubordinatedLoan
	query := `
		SELECT id, member_id, principal, interest_rate_percent, notice_period_months, start_date, end_date, status, created_at, updated_at
		FROM subordinated_loans
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.MemberID, &l.Principal, &l.InterestRatePercent, &l.NoticePeriodMonths,
		&l.StartDate, &l.EndDate, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListLoansByMember returns a member's subordinated loans.
func (r *PostgresRepository) ListLoansByMember(ctx context.Context, memberID uuid.UUID) ([]domain.SubordinatedLoan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, member_id, principal, interest_rate_percent, notice_period_months, start_date, end_date, status, created_at, updated_at
		FROM subordinated_loans
		WHERE member_id = $1
		ORDER BY start_date DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.SubordinatedLoan
	for rows.Next() {
		var l domain.SubordinatedLoan
		if err := rows.Scan(&l.ID, &l.MemberID, &l.Principal, &l.InterestRatePercent, &l.NoticePeriodMonths,
			&l.StartDate, &l.EndDate, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// TerminateLoan sets the end date on an active loan and flips its status.
func (r *PostgresRepository) TerminateLoan(ctx context.Context, loanID uuid.UUID, endDate time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE subordinated_loans
		SET status = 'terminated', end_date = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, loanID, endDate)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindLoanByID(ctx, loanID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("loan %s is not active", loanID)
	}
	return nil
}

// CreateDocumentRecord inserts document metadata; the bytes live in WebDAV.
func (r *PostgresRepository) CreateDocumentRecord(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, member_id, name, content_type, size, storage_path, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.MemberID, doc.Name, doc.ContentType, doc.Size, doc.StoragePath, doc.UploadedAt,
	)
	return err
}

// FindDocumentByID retrieves document metadata by ID.
func (r *PostgresRepository) FindDocumentByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	var d domain.Document
	query := `
		SELECT id, member_id, name, content_type, size, storage_path, uploaded_at
		FROM documents
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, docID).Scan(
		&d.ID, &d.MemberID, &d.Name, &d.ContentType, &d.Size, &d.StoragePath, &d.UploadedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDocumentsByMember returns a member's document metadata, newest first.
func (r *PostgresRepository) ListDocumentsByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, member_id, name, content_type, size, storage_path, uploaded_at
		FROM documents
		WHERE member_id = $1
		ORDER BY uploaded_at DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.MemberID, &d.Name, &d.ContentType, &d.Size, &d.StoragePath, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocumentRecord removes document metadata.
func (r *PostgresRepository) DeleteDocumentRecord(ctx context.Context, docID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
