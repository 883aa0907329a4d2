package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/pkg/database"
	"github.com/mediscan/mediscan-backend/pkg/errors"
)

// VerificationSummary is one row of a GTIN's verification history
type VerificationSummary struct {
	ID           string         `db:"id" json:"id"`
	Status       string         `db:"status" json:"status"`
	RiskLevel    string         `db:"risk_level" json:"risk_level"`
	GTIN         *string        `db:"gtin" json:"gtin,omitempty"`
	GTINVerified bool           `db:"gtin_verified" json:"gtin_verified"`
	BatchNumber  *string        `db:"batch_number" json:"batch_number,omitempty"`
	ExpiryDate   *time.Time     `db:"expiry_date" json:"-"`
	ProductName  *string        `db:"product_name" json:"product_name,omitempty"`
	FactorTypes  pq.StringArray `db:"factor_types" json:"factor_types"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`

	Expiry *domain.Date `db:"-" json:"expiry_date,omitempty"`
}

// VerificationRepository stores verdicts for audit and history
type VerificationRepository struct {
	db *database.DB
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *database.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create stores a verification. The full record goes into the verdict
// column; the indexed columns are copies for filtering.
func (r *VerificationRepository) Create(ctx context.Context, v *domain.Verification, clientID string) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}

	verdict, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	factorTypes := make(pq.StringArray, 0, len(v.RiskFactors))
	for _, f := range v.RiskFactors {
		factorTypes = append(factorTypes, string(f.Type))
	}
	digests := pq.StringArray(v.ImageDigests)
	if digests == nil {
		digests = pq.StringArray{}
	}

	var expiry *time.Time
	if v.ExpiryDate != nil {
		expiry = &v.ExpiryDate.Time
	}

	query := `
		INSERT INTO verifications (
			id, status, risk_level, gtin, gtin_verified, batch_number, expiry_date,
			product_name, factor_types, image_digests, client_id, verdict
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err = r.db.QueryRowxContext(ctx, query,
		v.ID, string(v.Status), string(v.RiskLevel), nullString(v.GTIN), v.GTINVerified,
		nullString(v.BatchNumber), expiry, nullString(v.ProductName),
		factorTypes, digests, nullString(clientID), verdict,
	).Scan(&v.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

// GetByID loads a stored verification
func (r *VerificationRepository) GetByID(ctx context.Context, id string) (*domain.Verification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFoundWithKey("verification")
	}

	var row struct {
		Verdict   []byte    `db:"verdict"`
		CreatedAt time.Time `db:"created_at"`
	}
	query := `SELECT verdict, created_at FROM verifications WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundWithKey("verification")
		}
		return nil, err
	}

	var v domain.Verification
	if err := json.Unmarshal(row.Verdict, &v); err != nil {
		return nil, fmt.Errorf("unmarshal verdict %s: %w", id, err)
	}
	v.ID = id
	v.CreatedAt = row.CreatedAt
	return &v, nil
}

// ListByGTIN returns a page of verifications for a GTIN, newest first
func (r *VerificationRepository) ListByGTIN(ctx context.Context, gtin string, limit, offset int) ([]*VerificationSummary, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM verifications WHERE gtin = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, gtin); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, status, risk_level, gtin, gtin_verified, batch_number, expiry_date,
			product_name, factor_types, created_at
		FROM verifications
		WHERE gtin = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	summaries := []*VerificationSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, gtin, limit, offset); err != nil {
		return nil, 0, err
	}
	for _, s := range summaries {
		if s.ExpiryDate != nil {
			s.Expiry = domain.DateOf(*s.ExpiryDate).Ptr()
		}
	}

	return summaries, total, nil
}

// CountByStatus tallies verdicts for a GTIN, used to flag repeatedly suspicious products
func (r *VerificationRepository) CountByStatus(ctx context.Context, gtin string) (map[domain.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM verifications WHERE gtin = $1 GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query, gtin); err != nil {
		return nil, err
	}

	counts := make(map[domain.Status]int, len(rows))
	for _, row := range rows {
		counts[domain.Status(row.Status)] = row.Count
	}
	return counts, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
