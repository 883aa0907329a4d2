package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan-backend/internal/verification/lookup"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/testutil"
)

var alertColumns = []string{
	"id", "gtin", "product_name", "manufacturer", "batch_number", "alert_type",
	"description", "severity", "source", "withdrawn_at", "created_at", "updated_at",
}

func TestAlertRepository_Upsert(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	repo := repository.NewAlertRepository(s.MockDB.Wrapped())
	alert := &repository.RegulatoryAlert{
		ID:          "cdsco-2025-114",
		GTIN:        testutil.PtrString(testutil.SampleGTIN),
		AlertType:   "COUNTERFEIT_ALERT",
		Description: "Spurious batch seized",
		Source:      "cdsco",
	}

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.MockDB.ExpectQuery("ON CONFLICT (id) DO UPDATE").
		WithArgs("cdsco-2025-114", testutil.SampleGTIN, nil, nil, nil,
			"COUNTERFEIT_ALERT", "Spurious batch seized", "HIGH", "cdsco").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	require.NoError(t, repo.Upsert(context.Background(), alert))
	assert.Equal(t, "HIGH", alert.Severity)
	assert.Equal(t, now, alert.CreatedAt)
}

func TestAlertRepository_Withdraw(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	repo := repository.NewAlertRepository(s.MockDB.Wrapped())

	s.MockDB.ExpectExec("SET withdrawn_at = NOW()").
		WithArgs("cdsco-2025-114").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Withdraw(context.Background(), "cdsco-2025-114"))

	s.MockDB.ExpectExec("SET withdrawn_at = NOW()").
		WithArgs("unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Withdraw(context.Background(), "unknown")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAlertRepository_LookupProduct(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	repo := repository.NewAlertRepository(s.MockDB.Wrapped())
	now := time.Now()
	q := lookup.RegulatoryQuery{GTIN: testutil.SampleGTIN, ProductName: " Dolo 650 ", BatchNumber: "B2201"}

	s.MockDB.ExpectQuery("FROM regulatory_alerts").
		WithArgs(testutil.SampleGTIN, "Dolo 650", "B2201").
		WillReturnRows(testutil.MockRows(alertColumns...).
			AddRow("a1", nil, "DOLO 650", "Fake Pharma", "B2201", "COUNTERFEIT_ALERT", "Seized", "CRITICAL", "cdsco", nil, now, now).
			AddRow("a2", testutil.SampleGTIN, nil, "Micro Labs Ltd", nil, "RECALL", "Recalled", "HIGH", "cdsco", nil, now, now))

	rec, err := repo.LookupProduct(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, "alert-cache", rec.Source)
	require.Len(t, rec.Warnings, 2)
	assert.Equal(t, "COUNTERFEIT_ALERT", rec.Warnings[0].Type)
	// a name-only match does not say who made the product
	assert.Equal(t, "Micro Labs Ltd", rec.Manufacturer)
}

func TestAlertRepository_LookupProduct_EmptyQuery(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	repo := repository.NewAlertRepository(s.MockDB.Wrapped())
	rec, err := repo.LookupProduct(context.Background(), lookup.RegulatoryQuery{Manufacturer: "x"})
	require.NoError(t, err)
	assert.False(t, rec.Found)
}
