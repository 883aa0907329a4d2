package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mediscan/mediscan-backend/pkg/database"
	"github.com/mediscan/mediscan-backend/pkg/logger"
)

var (
	// shared across all integration tests in a package
	globalContainer *PostgresContainer
	globalSuite     *IntegrationSuite
	suiteOnce       sync.Once
	suiteErr        error
)

// IntegrationSuite is a migrated database in a throwaway container
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (once per process) a PostgreSQL container and
// applies the service migrations to it.
//
// Usage:
//
//	func TestVerificationRepository_Integration(t *testing.T) {
//	    suite := testutil.RequireIntegrationSuite(t)
//	    suite.Truncate(t, "verifications")
//	    repo := repository.NewVerificationRepository(suite.DB)
//	    ...
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	suiteOnce.Do(func() {
		globalContainer, suiteErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if suiteErr != nil {
			return
		}

		log := logger.New("test", "test")
		var db *database.DB
		db, suiteErr = database.NewWithDSN(globalContainer.DSN, log)
		if suiteErr != nil {
			return
		}
		if suiteErr = db.Migrate(ctx); suiteErr != nil {
			return
		}

		globalSuite = &IntegrationSuite{
			Container: globalContainer,
			DB:        db,
			Logger:    log,
		}
	})

	return globalSuite, suiteErr
}

// RequireIntegrationSuite skips under -short and fails the test when the
// container cannot be started.
func RequireIntegrationSuite(t *testing.T) *IntegrationSuite {
	t.Helper()
	SkipIfShort(t)

	suite, err := NewIntegrationSuite(DefaultTestContext(t))
	if err != nil {
		t.Fatalf("failed to create integration suite: %v", err)
	}
	return suite
}

// Truncate empties the given tables
func (s *IntegrationSuite) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}
	query := fmt.Sprintf("TRUNCATE %s", strings.Join(tables, ", "))
	if _, err := s.DB.ExecContext(context.Background(), query); err != nil {
		t.Fatalf("failed to truncate %v: %v", tables, err)
	}
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalSuite != nil {
		_ = globalSuite.DB.Close()
	}
	if globalContainer != nil {
		_ = globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite provides a base for unit tests with mocked dependencies
type UnitTestSuite struct {
	MockDB   *MockDB
	Fixtures *FixtureFactory
	t        *testing.T
}

// NewUnitTestSuite creates a new unit test suite
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{
		MockDB:   NewMockDB(t),
		Fixtures: NewFixtureFactory(),
		t:        t,
	}
}

// Cleanup verifies expectations and closes the mock
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	_ = s.MockDB.Close()
}

