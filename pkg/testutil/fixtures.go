package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// Known-good product used across tests. The GTIN has a valid check digit.
const (
	SampleGTIN         = "8901117277403"
	SampleBatch        = "B2201"
	SampleProduct      = "DOLO 650"
	SampleManufacturer = "MICRO LABS LIMITED"
)

// SampleAsOf is the fixed evaluation date tests are written against
var SampleAsOf = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// GS1Payload builds a parenthesised GS1 element string. Shorter GTINs are
// zero padded to the 14 digits AI 01 carries.
func GS1Payload(gtin, expiryYYMMDD, batch string) string {
	for len(gtin) < 14 {
		gtin = "0" + gtin
	}
	s := "(01)" + gtin
	if expiryYYMMDD != "" {
		s += "(17)" + expiryYYMMDD
	}
	if batch != "" {
		s += "(10)" + batch
	}
	return s
}

// LabelText is a legible pack label for the sample product
func LabelText(product, batch, expiry string) string {
	return fmt.Sprintf("%s\nParacetamol Tablets IP 650 mg\nBatch No: %s\nMFG: 01/2024\nEXP: %s\n", product, batch, expiry)
}

// Evidence creates one image's worth of evidence for the sample product
func (f *FixtureFactory) Evidence(opts ...func(*domain.ImageEvidence)) domain.ImageEvidence {
	f.nextSeq()
	ev := domain.ImageEvidence{
		Kind:    domain.ImageKindLabel,
		Text:    LabelText(SampleProduct, SampleBatch, "06/2026"),
		Quality: 82,
	}
	for _, opt := range opts {
		opt(&ev)
	}
	return ev
}

// WithBarcode adds a decoded symbol to the evidence
func WithBarcode(symbology domain.Symbology, payload string) func(*domain.ImageEvidence) {
	return func(ev *domain.ImageEvidence) {
		ev.Barcodes = append(ev.Barcodes, domain.BarcodeReading{Symbology: symbology, Payload: payload})
	}
}

// WithText replaces the primary OCR text
func WithText(text string) func(*domain.ImageEvidence) {
	return func(ev *domain.ImageEvidence) {
		ev.Text = text
	}
}

// WithQuality sets the image quality score
func WithQuality(q float64) func(*domain.ImageEvidence) {
	return func(ev *domain.ImageEvidence) {
		ev.Quality = q
	}
}

// RegistryHit is a registry record confirming the sample product
func RegistryHit() *domain.RegistryRecord {
	return &domain.RegistryRecord{
		Found:       true,
		GTIN:        SampleGTIN,
		ProductName: SampleProduct,
		CompanyName: SampleManufacturer,
		Country:     "India",
		Source:      "gs1",
	}
}

// Verification creates a stored verification with defaults
func (f *FixtureFactory) Verification(opts ...func(*domain.Verification)) *domain.Verification {
	seq := f.nextSeq()
	v := &domain.Verification{
		Verdict: domain.Verdict{
			Status:          domain.StatusAuthentic,
			RiskLevel:       domain.SeverityLow,
			ExpiryDate:      domain.NewDate(2026, time.June, 30).Ptr(),
			GTIN:            SampleGTIN,
			GTINVerified:    true,
			RiskFactors:     []domain.RiskFactor{},
			Recommendations: []string{"Medicine appears authentic"},
		},
		ID:           uuid.New().String(),
		ProductName:  SampleProduct,
		BatchNumber:  fmt.Sprintf("%s-%d", SampleBatch, seq),
		Manufacturer: SampleManufacturer,
		Country:      "India",
		ImageDigests: []string{fmt.Sprintf("%064x", seq)},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}
