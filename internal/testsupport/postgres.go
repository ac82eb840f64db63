package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"pricewise/internal/adapters/postgres"
)

// PostgresTestHelper wraps a transaction that is always rolled back, so
// integration tests never leave rows behind.
type PostgresTestHelper struct {
	client     *postgres.Client
	tx         *sqlx.Tx
	rolledBack bool
}

// NewTestPostgres connects to the integration database or skips the test.
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()

	client, err := postgres.NewClient(context.Background(), PostgresConfig(t))
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("failed to start transaction: %v", err)
	}

	h := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(func() {
		h.Rollback()
		_ = client.Close()
	})
	return h
}

// Tx returns the test transaction.
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// DB returns the pool, for code that opens its own transactions.
// Rows written through it are not rolled back.
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

func (h *PostgresTestHelper) Rollback() {
	if h.rolledBack {
		return
	}
	_ = h.tx.Rollback()
	h.rolledBack = true
}
