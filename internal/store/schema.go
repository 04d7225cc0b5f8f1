/**
 * @description
 * Idempotent schema bootstrap. The service ensures its tables and the
 * certificate sequence exist at startup so a fresh database works without a
 * separate migration step.
 */

package store

import "context"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS members (
    id UUID PRIMARY KEY,
    member_no TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    joined_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS cooperative_shares (
    id UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members(id),
    certificate_number TEXT NOT NULL UNIQUE,
    quantity BIGINT NOT NULL CHECK (quantity > 0),
    nominal_value BIGINT NOT NULL CHECK (nominal_value >= 0),
    status TEXT NOT NULL,
    issue_date TIMESTAMPTZ NOT NULL,
    transferred_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_cooperative_shares_member_status ON cooperative_shares (member_id, status);
CREATE TABLE IF NOT EXISTS share_transfers (
    id UUID PRIMARY KEY,
    share_id UUID NOT NULL REFERENCES cooperative_shares(id),
    from_member_id UUID NOT NULL REFERENCES members(id),
    to_member_id UUID NOT NULL REFERENCES members(id),
    quantity BIGINT NOT NULL CHECK (quantity > 0),
    status TEXT NOT NULL,
    requested_at TIMESTAMPTZ NOT NULL,
    decided_at TIMESTAMPTZ,
    completion_date TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_share_transfers_members ON share_transfers (from_member_id, to_member_id);
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members(id),
    amount BIGINT NOT NULL,
    kind TEXT NOT NULL,
    reference TEXT NOT NULL DEFAULT '',
    paid_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_member ON payments (member_id, paid_at DESC);
CREATE TABLE IF NOT EXISTS dividend_runs (
    id UUID PRIMARY KEY,
    year INT NOT NULL UNIQUE,
    rate_percent DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL,
    declared_at TIMESTAMPTZ NOT NULL,
    paid_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS dividend_allocations (
    id UUID PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES dividend_runs(id),
    member_id UUID NOT NULL REFERENCES members(id),
    share_value BIGINT NOT NULL,
    amount BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dividend_allocations_run ON dividend_allocations (run_id);
CREATE TABLE IF NOT EXISTS subordinated_loans (
    id UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members(id),
    principal BIGINT NOT NULL CHECK (principal > 0),
    interest_rate_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
    notice_period_months INT NOT NULL DEFAULT 0,
    start_date TIMESTAMPTZ NOT NULL,
    end_date TIMESTAMPTZ,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members(id),
    name TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT '',
    size BIGINT NOT NULL DEFAULT 0,
    storage_path TEXT NOT NULL,
    uploaded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_member ON documents (member_id, uploaded_at DESC);
CREATE SEQUENCE IF NOT EXISTS certificate_number_seq;
`

// EnsureSchema creates the service's tables, indexes, and the certificate
// sequence if they do not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaDDL)
	return err
}
