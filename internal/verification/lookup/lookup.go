package lookup

import (
	"context"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// RegistryLookup resolves a GTIN against a product registry.
// A GTIN the registry does not know is a record with Found false, not an error.
type RegistryLookup interface {
	LookupGTIN(ctx context.Context, gtin string) (*domain.RegistryRecord, error)
	Name() string
}

// RegulatoryQuery identifies a product for a regulatory lookup
type RegulatoryQuery struct {
	GTIN         string
	ProductName  string
	Manufacturer string
	BatchNumber  string
}

// Empty reports whether the query carries nothing to search by
func (q RegulatoryQuery) Empty() bool {
	return q.GTIN == "" && q.ProductName == "" && q.Manufacturer == ""
}

// RegulatoryLookup searches drug approvals and counterfeit alerts
type RegulatoryLookup interface {
	LookupProduct(ctx context.Context, q RegulatoryQuery) (*domain.RegulatoryRecord, error)
	Name() string
}
