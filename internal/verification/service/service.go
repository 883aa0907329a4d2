// Package service turns package evidence into a stored, published verdict:
// barcodes and OCR text are resolved into one set of fields, checked
// against the registry and regulator, and scored by the risk engine.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/extractor"
	"github.com/mediscan/mediscan-backend/internal/verification/gs1"
	"github.com/mediscan/mediscan-backend/internal/verification/lookup"
	"github.com/mediscan/mediscan-backend/internal/verification/processor"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/internal/verification/risk"
	"github.com/mediscan/mediscan-backend/internal/verification/storage"
	"github.com/mediscan/mediscan-backend/pkg/config"
	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/httputil"
	"github.com/mediscan/mediscan-backend/pkg/i18n"
	"github.com/mediscan/mediscan-backend/pkg/logger"
)

// previewLength is how many characters of each image's text are kept in raw data
const previewLength = 200

// VerificationStore persists verdicts. It is optional; without it verdicts
// are returned but not kept.
type VerificationStore interface {
	Create(ctx context.Context, v *domain.Verification, clientID string) error
	GetByID(ctx context.Context, id string) (*domain.Verification, error)
	ListByGTIN(ctx context.Context, gtin string, limit, offset int) ([]*repository.VerificationSummary, int64, error)
	CountByStatus(ctx context.Context, gtin string) (map[domain.Status]int, error)
}

// VerificationPublisher announces verdicts
type VerificationPublisher interface {
	PublishVerification(ctx context.Context, v *domain.Verification)
}

// Options are the collaborators of a Service. Registry, Regulatory, Store
// and Publisher may be nil.
type Options struct {
	Processors *processor.Registry
	Jobs       *storage.JobStore
	Extractor  *extractor.Extractor
	Engine     *risk.Engine
	Registry   lookup.RegistryLookup
	Regulatory lookup.RegulatoryLookup
	Store      VerificationStore
	Publisher  VerificationPublisher
	Config     config.VerificationConfig
	Logger     *logger.Logger

	// Now is the clock used for expiry checks, time.Now when nil
	Now func() time.Time
}

// Service orchestrates verification: evidence -> fields -> lookups -> verdict
type Service struct {
	processors *processor.Registry
	jobs       *storage.JobStore
	extractor  *extractor.Extractor
	engine     *risk.Engine
	registry   lookup.RegistryLookup
	regulatory lookup.RegulatoryLookup
	store      VerificationStore
	publisher  VerificationPublisher
	cfg        config.VerificationConfig
	now        func() time.Time
	log        *logger.Logger
	metrics    *serviceMetrics
}

// New creates a verification service
func New(opts Options) *Service {
	s := &Service{
		processors: opts.Processors,
		jobs:       opts.Jobs,
		extractor:  opts.Extractor,
		engine:     opts.Engine,
		registry:   opts.Registry,
		regulatory: opts.Regulatory,
		store:      opts.Store,
		publisher:  opts.Publisher,
		cfg:        opts.Config,
		now:        opts.Now,
		log:        opts.Logger,
		metrics:    newServiceMetrics(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.extractor == nil {
		s.extractor = extractor.New(extractor.Config{MinPlausibleYear: opts.Config.MinPlausibleYear})
	}
	if s.engine == nil {
		s.engine = risk.NewEngine(risk.Thresholds{
			NearExpiryDays:   opts.Config.NearExpiryDays,
			MaxShelfLifeDays: opts.Config.MaxShelfLifeDays,
			PoorQualityScore: opts.Config.PoorQualityScore,
			FuzzyMatch:       opts.Config.FuzzyMatchThreshold,
		})
	}
	if s.processors == nil {
		s.processors = processor.NewRegistry()
	}
	return s
}

// Verify scores evidence the client already extracted on-device
func (s *Service) Verify(ctx context.Context, req domain.EvidenceRequest) (*domain.Verification, error) {
	if err := s.checkImageCount(len(req.Images)); err != nil {
		return nil, err
	}
	return s.verify(ctx, req.Images, nil)
}

func (s *Service) checkImageCount(n int) error {
	if n == 0 {
		return errors.NoEvidence()
	}
	if s.cfg.MaxImages > 0 && n > s.cfg.MaxImages {
		return errors.TooManyImages(s.cfg.MaxImages)
	}
	return nil
}

// resolved holds one value per field after barcode and OCR evidence are merged
type resolved struct {
	gtin          string
	gtinValid     bool
	expiry        *domain.Date
	manufacturing *domain.Date
	batch         string
}

// verify runs the whole pipeline for one request. images[i] is image i.
func (s *Service) verify(ctx context.Context, images []domain.ImageEvidence, digests []string) (*domain.Verification, error) {
	started := time.Now()
	asOf := domain.DateOf(s.now().UTC())

	barcodes := decodeBarcodes(images)

	texts := make([]domain.ImageText, len(images))
	for i, img := range images {
		texts[i] = domain.ImageText{
			ImageIndex: i,
			Text:       img.Text,
			Rotations:  img.Rotations,
			Quality:    img.Quality,
		}
	}
	extraction := s.extractor.Extract(texts, asOf)

	fields := resolveFields(barcodes, extraction)
	registry := s.lookupRegistry(ctx, fields)

	query := lookup.RegulatoryQuery{
		GTIN:        fields.gtin,
		ProductName: extraction.ProductName,
		BatchNumber: fields.batch,
	}
	if registry != nil && registry.Found {
		query.Manufacturer = registry.CompanyName
	}
	regulatory := s.lookupRegulatory(ctx, query)

	verdict := s.engine.Evaluate(risk.Input{
		GTIN:              fields.gtin,
		ExpiryDate:        fields.expiry,
		ManufacturingDate: fields.manufacturing,
		BatchNumber:       fields.batch,
		ProductName:       extraction.ProductName,
		Registry:          registry,
		Regulatory:        regulatory,
		Extraction:        extraction,
		AsOf:              asOf,
		Locale:            i18n.GetLocaleFromContext(ctx),
	})

	v := &domain.Verification{
		Verdict:           verdict,
		ID:                uuid.New().String(),
		ProductName:       extraction.ProductName,
		BatchNumber:       fields.batch,
		ManufacturingDate: fields.manufacturing,
		ImageDigests:      digests,
		RawData: &domain.RawData{
			Barcodes:   barcodes,
			OCRTexts:   previews(extraction.Blocks),
			Registry:   registry,
			Regulatory: regulatory,
		},
		CreatedAt: s.now().UTC(),
	}
	if registry != nil && registry.Found {
		if v.ProductName == "" {
			v.ProductName = registry.ProductName
		}
		v.Manufacturer = registry.CompanyName
		v.Country = registry.Country
	}
	if v.Manufacturer == "" && regulatory != nil {
		v.Manufacturer = regulatory.Manufacturer
	}

	log := s.log.WithVerificationID(v.ID)
	if s.store != nil {
		// a verdict is still useful to the caller when the audit write fails
		if err := s.store.Create(ctx, v, httputil.GetClientID(ctx)); err != nil {
			log.Error().Err(err).Msg("failed to store verification")
		}
	}
	if s.publisher != nil {
		s.publisher.PublishVerification(ctx, v)
	}

	s.metrics.verifications.WithLabelValues(string(v.Status), string(v.RiskLevel)).Inc()
	s.metrics.duration.Observe(time.Since(started).Seconds())

	log.Info().
		Str("status", string(v.Status)).
		Str("risk_level", string(v.RiskLevel)).
		Int("images", len(images)).
		Int("barcodes", len(barcodes)).
		Int("risk_factors", len(v.RiskFactors)).
		Msg("verification completed")

	return v, nil
}

// decodeBarcodes collects every image's readings, drops repeats and parses
// the rest in parallel. Results keep reading order.
func decodeBarcodes(images []domain.ImageEvidence) []domain.DecodedBarcode {
	var readings []domain.BarcodeReading
	for i, img := range images {
		for _, r := range img.Barcodes {
			r.ImageIndex = i
			readings = append(readings, r)
		}
	}
	readings = gs1.Dedupe(readings)

	decoded := make([]domain.DecodedBarcode, len(readings))
	var wg sync.WaitGroup
	for i, r := range readings {
		i, r := i, r
		wg.Add(1)
		go func() {
			defer wg.Done()
			decoded[i] = domain.DecodedBarcode{BarcodeReading: r, Fields: gs1.Parse(r.Payload, r.Symbology)}
		}()
	}
	wg.Wait()
	return decoded
}

// resolveFields applies field precedence. Barcode values win over OCR and
// the first barcode carrying a field wins. A GTIN with a valid check digit
// is preferred over an earlier one without.
func resolveFields(barcodes []domain.DecodedBarcode, extraction domain.ExtractionResult) resolved {
	var f resolved
	var firstGTIN string
	var bestBefore *domain.Date

	for _, b := range barcodes {
		p := b.Fields
		if p.GTIN != "" {
			if firstGTIN == "" {
				firstGTIN = p.GTIN
			}
			if !f.gtinValid && gs1.ValidateChecksum(p.GTIN) {
				f.gtin = gs1.NormalizeGTIN(p.GTIN)
				f.gtinValid = true
			}
		}
		if f.expiry == nil && p.ExpiryDate != nil {
			f.expiry = p.ExpiryDate
		}
		if bestBefore == nil && p.BestBeforeDate != nil {
			bestBefore = p.BestBeforeDate
		}
		if f.manufacturing == nil && p.ProductionDate != nil {
			f.manufacturing = p.ProductionDate
		}
		if f.batch == "" && p.Batch != "" {
			f.batch = p.Batch
		}
	}

	if !f.gtinValid && firstGTIN != "" {
		f.gtin = gs1.NormalizeGTIN(firstGTIN)
	}
	if f.expiry == nil {
		f.expiry = bestBefore
	}
	if f.expiry == nil && extraction.Expiry != nil {
		f.expiry = extraction.Expiry.Date.Ptr()
	}
	if f.manufacturing == nil && extraction.Manufacturing != nil {
		f.manufacturing = extraction.Manufacturing.Date.Ptr()
	}
	if f.batch == "" {
		f.batch = extraction.Batch
	}
	return f
}

// lookupRegistry resolves the GTIN. A GTIN with a bad check digit is never
// looked up and counts as not found.
func (s *Service) lookupRegistry(ctx context.Context, f resolved) *domain.RegistryRecord {
	if f.gtin == "" {
		return nil
	}
	notFound := &domain.RegistryRecord{Found: false, GTIN: f.gtin}
	if !f.gtinValid || s.registry == nil {
		return notFound
	}

	record, err := s.registry.LookupGTIN(ctx, f.gtin)
	if err != nil {
		s.metrics.lookupFailures.WithLabelValues(s.registry.Name()).Inc()
		s.log.Warn().Err(err).Str("gtin", f.gtin).Msg("registry lookup failed, treating as not found")
		return notFound
	}
	if record == nil {
		return notFound
	}
	return record
}

func (s *Service) lookupRegulatory(ctx context.Context, q lookup.RegulatoryQuery) *domain.RegulatoryRecord {
	if s.regulatory == nil || q.Empty() {
		return nil
	}

	record, err := s.regulatory.LookupProduct(ctx, q)
	if err != nil {
		s.metrics.lookupFailures.WithLabelValues(s.regulatory.Name()).Inc()
		s.log.Warn().Err(err).
			Str("gtin", q.GTIN).
			Str("product", q.ProductName).
			Msg("regulatory lookup failed, treating as not found")
		return &domain.RegulatoryRecord{Found: false}
	}
	return record
}

func previews(blocks []domain.TextBlock) []domain.OCRPreview {
	out := make([]domain.OCRPreview, 0, len(blocks))
	for _, b := range blocks {
		text := b.Text
		if r := []rune(text); len(r) > previewLength {
			text = string(r[:previewLength]) + "..."
		}
		out = append(out, domain.OCRPreview{ImageIndex: b.ImageIndex, Text: text, Quality: b.Quality})
	}
	return out
}
