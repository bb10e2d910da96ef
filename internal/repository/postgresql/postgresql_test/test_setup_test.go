package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// tablesUnderTest are truncated between tests, children first.
var tablesUnderTest = []string{
	"salary_generation_details",
	"salary_generations",
	"salary_structure_components",
	"salary_structures",
	"salary_components",
	"payroll_settings",
	"employees",
	"companies",
}

// newTestDatabase connects to TEST_DATABASE_URL and skips the test when it is not set.
func newTestDatabase(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}

	db, err := database.NewPostgreSQLDB(context.Background(), dsn, database.PoolConfig{MaxConns: 10})
	require.NoError(t, err, "failed to connect to test database")

	truncateTables(t, db)
	t.Cleanup(func() {
		truncateTables(t, db)
		db.Close()
	})

	return db
}

func truncateTables(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	for _, table := range tablesUnderTest {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "failed to truncate table %s", table)
	}

	require.NoError(t, tx.Commit(ctx))
}

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

// createTestCompany inserts a company and returns its id.
func createTestCompany(t *testing.T, db *database.DB) string {
	t.Helper()
	id := newID(t)
	_, err := db.Exec(context.Background(), `
		INSERT INTO companies (id, name, username, created_at, updated_at)
		VALUES ($1, 'Test Company', $2, NOW(), NOW())
	`, id, "test-"+id[:8])
	require.NoError(t, err)
	return id
}

// createTestEmployee inserts an active permanent employee hired on 2024-01-01.
func createTestEmployee(t *testing.T, db *database.DB, companyID, code, name string) string {
	t.Helper()
	id := newID(t)
	_, err := db.Exec(context.Background(), `
		INSERT INTO employees (id, company_id, employee_code, full_name, hire_date, employment_type, employment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '2024-01-01', 'permanent', 'active', NOW(), NOW())
	`, id, companyID, code, name)
	require.NoError(t, err)
	return id
}
