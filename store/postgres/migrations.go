package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the receivables store.
var Migrations = migrate.NewGroup("receivables")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_ar_customers",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ar_customers (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    currency    TEXT NOT NULL DEFAULT '',
    terms_count INT NOT NULL DEFAULT 0,
    terms_unit  TEXT NOT NULL DEFAULT '',
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ar_customers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ar_transactions",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ar_transactions (
    id               TEXT PRIMARY KEY,
    customer_id      TEXT NOT NULL DEFAULT '',
    kind             TEXT NOT NULL,
    direction        SMALLINT NOT NULL,
    reference        TEXT NOT NULL DEFAULT '',
    total            BIGINT NOT NULL DEFAULT 0 CHECK (total >= 0),
    allocated_amount BIGINT NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT '',
    state            TEXT NOT NULL DEFAULT 'draft',
    effective_date   TIMESTAMPTZ NOT NULL,
    open_item        BOOLEAN NOT NULL DEFAULT FALSE,
    version          BIGINT NOT NULL DEFAULT 0,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (allocated_amount BETWEEN 0 AND total)
);

CREATE INDEX IF NOT EXISTS idx_ar_txn_customer ON ar_transactions (customer_id, state, kind, effective_date DESC);
CREATE INDEX IF NOT EXISTS idx_ar_txn_open_items ON ar_transactions (customer_id, effective_date DESC, id DESC) WHERE open_item;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ar_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ar_allocation_links",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ar_allocation_links (
    id          TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    credit_id   TEXT NOT NULL REFERENCES ar_transactions (id),
    debit_id    TEXT NOT NULL REFERENCES ar_transactions (id),
    amount      BIGINT NOT NULL CHECK (amount > 0),
    currency    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ar_links_credit ON ar_allocation_links (credit_id);
CREATE INDEX IF NOT EXISTS idx_ar_links_debit ON ar_allocation_links (debit_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ar_allocation_links`)
				return err
			},
		},
	)
}
