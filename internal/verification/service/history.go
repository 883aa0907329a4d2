package service

import (
	"context"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/gs1"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/pkg/errors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// BarcodeCheck is the result of checking a bare GTIN
type BarcodeCheck struct {
	GTIN          string                 `json:"gtin"`
	ChecksumValid bool                   `json:"checksum_valid"`
	Registry      *domain.RegistryRecord `json:"registry"`
}

// History is a page of verifications for one GTIN
type History struct {
	GTIN         string                            `json:"gtin"`
	Items        []*repository.VerificationSummary `json:"items"`
	Total        int64                             `json:"total"`
	Limit        int                               `json:"limit"`
	Offset       int                               `json:"offset"`
	StatusCounts map[domain.Status]int             `json:"status_counts"`
}

// VerifyBarcode validates a GTIN's check digit and, when it is valid,
// looks it up in the registry
func (s *Service) VerifyBarcode(ctx context.Context, gtin string) (*BarcodeCheck, error) {
	switch len(gtin) {
	case 8, 12, 13, 14:
	default:
		return nil, errors.Validation(map[string]string{"gtin": "must be 8, 12, 13 or 14 digits"})
	}
	for _, r := range gtin {
		if r < '0' || r > '9' {
			return nil, errors.Validation(map[string]string{"gtin": "must be 8, 12, 13 or 14 digits"})
		}
	}

	f := resolved{gtin: gs1.NormalizeGTIN(gtin), gtinValid: gs1.ValidateChecksum(gtin)}
	return &BarcodeCheck{
		GTIN:          f.gtin,
		ChecksumValid: f.gtinValid,
		Registry:      s.lookupRegistry(ctx, f),
	}, nil
}

// GetVerification returns a stored verification
func (s *Service) GetVerification(ctx context.Context, id string) (*domain.Verification, error) {
	if s.store == nil {
		return nil, errors.ServiceUnavailable("verification history is not enabled")
	}
	return s.store.GetByID(ctx, id)
}

// ListByGTIN returns a page of a GTIN's verification history with a tally
// of verdicts across all of it
func (s *Service) ListByGTIN(ctx context.Context, gtin string, limit, offset int) (*History, error) {
	if s.store == nil {
		return nil, errors.ServiceUnavailable("verification history is not enabled")
	}
	if gtin == "" {
		return nil, errors.Validation(map[string]string{"gtin": "is required"})
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	gtin = gs1.NormalizeGTIN(gtin)
	items, total, err := s.store.ListByGTIN(ctx, gtin, limit, offset)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountByStatus(ctx, gtin)
	if err != nil {
		return nil, err
	}

	return &History{
		GTIN:         gtin,
		Items:        items,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
		StatusCounts: counts,
	}, nil
}
