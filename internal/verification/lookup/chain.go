package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/pkg/logger"
)

// RegistryChain asks each source in turn and returns the first record that
// was found. A failing source is logged and skipped.
type RegistryChain struct {
	sources []RegistryLookup
	logger  *logger.Logger
}

// NewRegistryChain creates a chain over the given sources, tried in order
func NewRegistryChain(log *logger.Logger, sources ...RegistryLookup) *RegistryChain {
	return &RegistryChain{sources: sources, logger: log}
}

func (c *RegistryChain) Name() string { return "chain" }

// Len returns the number of sources in the chain
func (c *RegistryChain) Len() int { return len(c.sources) }

// LookupGTIN returns the first found record. If no source found the GTIN,
// the last not-found record is returned. It fails only when every source
// failed.
func (c *RegistryChain) LookupGTIN(ctx context.Context, gtin string) (*domain.RegistryRecord, error) {
	var (
		notFound *domain.RegistryRecord
		errs     []error
	)
	for _, src := range c.sources {
		record, err := src.LookupGTIN(ctx, gtin)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("gtin", gtin).
				Str("source", src.Name()).
				Msg("registry source failed, trying next")
			errs = append(errs, err)
			continue
		}
		if record != nil && record.Found {
			return record, nil
		}
		if record != nil {
			notFound = record
		}
	}
	if notFound != nil || len(errs) == 0 {
		if notFound == nil {
			notFound = &domain.RegistryRecord{Found: false, GTIN: gtin}
		}
		return notFound, nil
	}
	return nil, fmt.Errorf("all registry sources failed: %w", errors.Join(errs...))
}

// RegulatoryMerge asks every source and unions their warnings. The first
// manufacturer reported wins. A failing source is logged and skipped.
type RegulatoryMerge struct {
	sources []RegulatoryLookup
	logger  *logger.Logger
}

// NewRegulatoryMerge creates a merge over the given sources; order decides
// which manufacturer is kept
func NewRegulatoryMerge(log *logger.Logger, sources ...RegulatoryLookup) *RegulatoryMerge {
	return &RegulatoryMerge{sources: sources, logger: log}
}

func (m *RegulatoryMerge) Name() string { return "merge" }

// LookupProduct fails only when every source failed
func (m *RegulatoryMerge) LookupProduct(ctx context.Context, q RegulatoryQuery) (*domain.RegulatoryRecord, error) {
	merged := &domain.RegulatoryRecord{}
	var (
		sources []string
		errs    []error
		seen    = make(map[string]bool)
	)
	for _, src := range m.sources {
		record, err := src.LookupProduct(ctx, q)
		if err != nil {
			m.logger.Warn().Err(err).
				Str("gtin", q.GTIN).
				Str("source", src.Name()).
				Msg("regulatory source failed, skipping")
			errs = append(errs, err)
			continue
		}
		if record == nil || !record.Found {
			continue
		}
		merged.Found = true
		sources = append(sources, record.Source)
		if merged.Manufacturer == "" {
			merged.Manufacturer = record.Manufacturer
		}
		for _, w := range record.Warnings {
			key := w.Type + "\x00" + w.Description
			if seen[key] {
				continue
			}
			seen[key] = true
			merged.Warnings = append(merged.Warnings, w)
		}
	}
	if len(errs) > 0 && len(errs) == len(m.sources) {
		return nil, fmt.Errorf("all regulatory sources failed: %w", errors.Join(errs...))
	}
	merged.Source = strings.Join(sources, ",")
	return merged, nil
}
