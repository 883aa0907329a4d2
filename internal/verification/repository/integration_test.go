package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/lookup"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/testutil"
)

// TestMain stops the shared container, if an integration test started one
func TestMain(m *testing.M) {
	code := m.Run()
	testutil.TerminateContainer(context.Background())
	os.Exit(code)
}

func TestVerificationRepository_Integration(t *testing.T) {
	suite := testutil.RequireIntegrationSuite(t)
	suite.Truncate(t, "verifications")

	ctx := context.Background()
	repo := repository.NewVerificationRepository(suite.DB)
	fixtures := testutil.NewFixtureFactory()

	first := fixtures.Verification()
	second := fixtures.Verification(func(v *domain.Verification) {
		v.Status = domain.StatusCounterfeit
		v.RiskLevel = domain.SeverityCritical
		v.RiskFactors = []domain.RiskFactor{
			{Type: domain.FactorRegulatoryWarning, Severity: domain.SeverityCritical, Message: "alert"},
		}
	})
	require.NoError(t, repo.Create(ctx, first, "client-a"))
	require.NoError(t, repo.Create(ctx, second, ""))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.BatchNumber, got.BatchNumber)
	assert.Equal(t, "2026-06-30", got.ExpiryDate.String())

	items, total, err := repo.ListByGTIN(ctx, testutil.SampleGTIN, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{items[0].ID, items[1].ID})

	counts, err := repo.CountByStatus(ctx, testutil.SampleGTIN)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusCounterfeit])

	bad := fixtures.Verification(func(v *domain.Verification) { v.GTIN = "12AB" })
	err = repo.Create(ctx, bad, "")
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestAlertRepository_Integration(t *testing.T) {
	suite := testutil.RequireIntegrationSuite(t)
	suite.Truncate(t, "regulatory_alerts")

	ctx := context.Background()
	repo := repository.NewAlertRepository(suite.DB)

	alert := &repository.RegulatoryAlert{
		ID:           "cdsco-2025-114",
		GTIN:         testutil.PtrString(testutil.SampleGTIN),
		Manufacturer: testutil.PtrString("Micro Labs Ltd"),
		BatchNumber:  testutil.PtrString("B2201"),
		AlertType:    "COUNTERFEIT_ALERT",
		Description:  "Spurious batch seized",
		Severity:     "CRITICAL",
		Source:       "cdsco",
	}
	require.NoError(t, repo.Upsert(ctx, alert))

	q := lookup.RegulatoryQuery{GTIN: testutil.SampleGTIN, BatchNumber: "B2201"}
	rec, err := repo.LookupProduct(ctx, q)
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, "Micro Labs Ltd", rec.Manufacturer)

	// other batches are not affected by a batch-specific alert
	rec, err = repo.LookupProduct(ctx, lookup.RegulatoryQuery{GTIN: testutil.SampleGTIN, BatchNumber: "B9999"})
	require.NoError(t, err)
	assert.False(t, rec.Found)

	require.NoError(t, repo.Withdraw(ctx, alert.ID))
	rec, err = repo.LookupProduct(ctx, q)
	require.NoError(t, err)
	assert.False(t, rec.Found)

	// a re-published alert is active again
	require.NoError(t, repo.Upsert(ctx, alert))
	rec, err = repo.LookupProduct(ctx, q)
	require.NoError(t, err)
	assert.True(t, rec.Found)
}
