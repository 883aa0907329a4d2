package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/lookup"
	"github.com/mediscan/mediscan-backend/pkg/database"
	"github.com/mediscan/mediscan-backend/pkg/errors"
)

// RegulatoryAlert is a regulator notice cached from the alert feed
type RegulatoryAlert struct {
	ID           string     `db:"id" json:"id"`
	GTIN         *string    `db:"gtin" json:"gtin,omitempty"`
	ProductName  *string    `db:"product_name" json:"product_name,omitempty"`
	Manufacturer *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	BatchNumber  *string    `db:"batch_number" json:"batch_number,omitempty"`
	AlertType    string     `db:"alert_type" json:"alert_type"`
	Description  string     `db:"description" json:"description"`
	Severity     string     `db:"severity" json:"severity"`
	Source       string     `db:"source" json:"source"`
	WithdrawnAt  *time.Time `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AlertRepository caches regulator alerts and serves them as a regulatory source
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

var _ lookup.RegulatoryLookup = (*AlertRepository)(nil)

func (r *AlertRepository) Name() string { return "alert-cache" }

// Upsert stores an alert, reactivating it if it had been withdrawn
func (r *AlertRepository) Upsert(ctx context.Context, alert *RegulatoryAlert) error {
	if alert.Severity == "" {
		alert.Severity = string(domain.SeverityHigh)
	}

	query := `
		INSERT INTO regulatory_alerts (
			id, gtin, product_name, manufacturer, batch_number, alert_type, description, severity, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			gtin = EXCLUDED.gtin,
			product_name = EXCLUDED.product_name,
			manufacturer = EXCLUDED.manufacturer,
			batch_number = EXCLUDED.batch_number,
			alert_type = EXCLUDED.alert_type,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			source = EXCLUDED.source,
			withdrawn_at = NULL,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.GTIN, alert.ProductName, alert.Manufacturer, alert.BatchNumber,
		alert.AlertType, alert.Description, alert.Severity, alert.Source,
	).Scan(&alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("upsert regulatory alert: %w", err)
	}
	return nil
}

// Withdraw marks an alert as no longer in force
func (r *AlertRepository) Withdraw(ctx context.Context, id string) error {
	query := `
		UPDATE regulatory_alerts
		SET withdrawn_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND withdrawn_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundWithKey("alert")
	}

	return nil
}

// ListActive returns alerts in force, matched by GTIN or product name.
// Batch-specific alerts only match the same batch.
func (r *AlertRepository) ListActive(ctx context.Context, q lookup.RegulatoryQuery) ([]*RegulatoryAlert, error) {
	query := `
		SELECT * FROM regulatory_alerts
		WHERE withdrawn_at IS NULL
			AND (
				($1 <> '' AND gtin = $1)
				OR ($2 <> '' AND LOWER(product_name) = LOWER($2))
			)
			AND (batch_number IS NULL OR $3 = '' OR batch_number = $3)
		ORDER BY CASE severity WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 ELSE 2 END, created_at DESC
	`

	alerts := []*RegulatoryAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query,
		q.GTIN, strings.TrimSpace(q.ProductName), q.BatchNumber,
	); err != nil {
		return nil, err
	}
	return alerts, nil
}

// LookupProduct reports cached alerts as a regulatory record. The manufacturer
// is only taken from alerts that matched on GTIN.
func (r *AlertRepository) LookupProduct(ctx context.Context, q lookup.RegulatoryQuery) (*domain.RegulatoryRecord, error) {
	if q.GTIN == "" && strings.TrimSpace(q.ProductName) == "" {
		return &domain.RegulatoryRecord{Found: false, Source: r.Name()}, nil
	}

	alerts, err := r.ListActive(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list regulatory alerts: %w", err)
	}

	record := &domain.RegulatoryRecord{Found: len(alerts) > 0, Source: r.Name()}
	for _, a := range alerts {
		record.Warnings = append(record.Warnings, domain.RegulatoryWarning{
			Type:        a.AlertType,
			Description: a.Description,
			Severity:    a.Severity,
		})
		if record.Manufacturer == "" && a.Manufacturer != nil && a.GTIN != nil && *a.GTIN == q.GTIN {
			record.Manufacturer = *a.Manufacturer
		}
	}
	return record, nil
}
