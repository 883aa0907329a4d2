package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/events"
	"github.com/mediscan/mediscan-backend/internal/verification/lookup"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/internal/verification/service"
	"github.com/mediscan/mediscan-backend/pkg/config"
	apperrors "github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/i18n"
	"github.com/mediscan/mediscan-backend/pkg/logger"
	"github.com/mediscan/mediscan-backend/pkg/messaging"
	"github.com/mediscan/mediscan-backend/pkg/testutil"
)

// stubRegistry answers every GTIN with the same record
type stubRegistry struct {
	mu     sync.Mutex
	record *domain.RegistryRecord
	err    error
	gtins  []string
}

func (s *stubRegistry) Name() string { return "stub-registry" }

func (s *stubRegistry) LookupGTIN(_ context.Context, gtin string) (*domain.RegistryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gtins = append(s.gtins, gtin)
	return s.record, s.err
}

func (s *stubRegistry) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.gtins...)
}

type stubRegulatory struct {
	mu      sync.Mutex
	record  *domain.RegulatoryRecord
	err     error
	queries []lookup.RegulatoryQuery
}

func (s *stubRegulatory) Name() string { return "stub-regulatory" }

func (s *stubRegulatory) LookupProduct(_ context.Context, q lookup.RegulatoryQuery) (*domain.RegulatoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	return s.record, s.err
}

// stubStore keeps verifications in memory
type stubStore struct {
	mu        sync.Mutex
	created   []*domain.Verification
	clientIDs []string
	createErr error
	summaries []*repository.VerificationSummary
	total     int64
	counts    map[domain.Status]int
	listArgs  []int
}

func (s *stubStore) Create(_ context.Context, v *domain.Verification, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, v)
	s.clientIDs = append(s.clientIDs, clientID)
	return nil
}

func (s *stubStore) GetByID(_ context.Context, id string) (*domain.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.created {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, apperrors.NotFoundWithKey("verification")
}

func (s *stubStore) ListByGTIN(_ context.Context, _ string, limit, offset int) ([]*repository.VerificationSummary, int64, error) {
	s.listArgs = []int{limit, offset}
	return s.summaries, s.total, nil
}

func (s *stubStore) CountByStatus(_ context.Context, _ string) (map[domain.Status]int, error) {
	return s.counts, nil
}

type harness struct {
	svc        *service.Service
	registry   *stubRegistry
	regulatory *stubRegulatory
	store      *stubStore
	events     *testutil.MockPublisher
	fixtures   *testutil.FixtureFactory
}

func newHarness(t *testing.T, opts ...func(*service.Options)) *harness {
	t.Helper()
	h := &harness{
		registry:   &stubRegistry{record: testutil.RegistryHit()},
		regulatory: &stubRegulatory{record: &domain.RegulatoryRecord{Found: false}},
		store:      &stubStore{},
		events:     testutil.NewMockPublisher(),
		fixtures:   testutil.NewFixtureFactory(),
	}
	o := service.Options{
		Registry:   h.registry,
		Regulatory: h.regulatory,
		Store:      h.store,
		Publisher:  events.NewWithPublisher(h.events, logger.Nop()),
		Config:     config.VerificationConfig{MaxImages: 5},
		Logger:     logger.Nop(),
		Now:        func() time.Time { return testutil.SampleAsOf },
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.svc = service.New(o)
	return h
}

// sampleEvidence is a label photo plus a GS1 DataMatrix for the sample product
func (h *harness) sampleEvidence(opts ...func(*domain.ImageEvidence)) domain.ImageEvidence {
	base := []func(*domain.ImageEvidence){
		testutil.WithBarcode(domain.SymbologyDataMatrix, testutil.GS1Payload(testutil.SampleGTIN, "260630", testutil.SampleBatch)),
	}
	return h.fixtures.Evidence(append(base, opts...)...)
}

func factorTypes(v *domain.Verification) []domain.RiskFactorType {
	out := []domain.RiskFactorType{}
	for _, f := range v.RiskFactors {
		out = append(out, f.Type)
	}
	return out
}

func TestVerify_AuthenticWhenRegistryConfirms(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.DefaultTestContext(t)

	v, err := h.svc.Verify(ctx, domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAuthentic, v.Status)
	assert.Equal(t, domain.SeverityLow, v.RiskLevel)
	assert.Empty(t, v.RiskFactors)
	assert.Equal(t, testutil.SampleGTIN, v.GTIN)
	assert.True(t, v.GTINVerified)
	require.NotNil(t, v.ExpiryDate)
	assert.Equal(t, "2026-06-30", v.ExpiryDate.String())
	assert.Equal(t, testutil.SampleBatch, v.BatchNumber)
	assert.Equal(t, testutil.SampleProduct, v.ProductName)
	assert.Equal(t, testutil.SampleManufacturer, v.Manufacturer)
	assert.Equal(t, "India", v.Country)
	assert.NotEmpty(t, v.ID)
	assert.NotEmpty(t, v.Recommendations)

	require.NotNil(t, v.RawData)
	require.Len(t, v.RawData.Barcodes, 1)
	assert.Equal(t, "08901117277403", v.RawData.Barcodes[0].Fields.GTIN)
	require.Len(t, v.RawData.OCRTexts, 1)
	assert.Equal(t, 82.0, v.RawData.OCRTexts[0].Quality)

	assert.Equal(t, []string{testutil.SampleGTIN}, h.registry.calls())
	require.Len(t, h.store.created, 1)
	assert.Equal(t, v.ID, h.store.created[0].ID)
	assert.Equal(t, []string{messaging.EventVerificationCompleted}, h.events.EventTypes())
}

func TestVerify_CombinesEvidenceAcrossImages(t *testing.T) {
	fixtures := testutil.NewFixtureFactory()
	front := fixtures.Evidence(testutil.WithText(testutil.SampleProduct+" TABLET\nParacetamol Tablets IP"), testutil.WithQuality(74))
	side := fixtures.Evidence(
		testutil.WithText("Keep out of reach of children"),
		testutil.WithBarcode(domain.SymbologyCode128, testutil.GS1Payload(testutil.SampleGTIN, "260630", testutil.SampleBatch)),
	)
	back := fixtures.Evidence(testutil.WithText("Store in a cool dry place\nProtect from light"), testutil.WithQuality(61))

	orders := map[string][]domain.ImageEvidence{
		"barcode on second image": {front, side, back},
		"barcode on first image":  {side, back, front},
		"barcode on last image":   {back, front, side},
	}

	tests := []struct {
		name     string
		registry *domain.RegistryRecord
		status   domain.Status
		level    domain.Severity
		verified bool
	}{
		{"registry confirms", testutil.RegistryHit(), domain.StatusAuthentic, domain.SeverityLow, true},
		{"registry misses", &domain.RegistryRecord{Found: false, GTIN: testutil.SampleGTIN}, domain.StatusSuspicious, domain.SeverityHigh, false},
	}

	for _, tt := range tests {
		for order, images := range orders {
			t.Run(tt.name+"/"+order, func(t *testing.T) {
				h := newHarness(t)
				h.registry.record = tt.registry

				v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: images})
				require.NoError(t, err)

				assert.Equal(t, testutil.SampleGTIN, v.GTIN)
				require.NotNil(t, v.ExpiryDate)
				assert.Equal(t, "2026-06-30", v.ExpiryDate.String())
				assert.Equal(t, testutil.SampleBatch, v.BatchNumber)
				assert.Equal(t, tt.status, v.Status)
				assert.Equal(t, tt.level, v.RiskLevel)
				assert.Equal(t, tt.verified, v.GTINVerified)
				assert.Equal(t, []string{testutil.SampleGTIN}, h.registry.calls())

				assert.Equal(t, testutil.SampleProduct, v.ProductName)
				require.Len(t, v.RawData.Barcodes, 1)
				assert.Len(t, v.RawData.OCRTexts, 3)
			})
		}
	}
}

func TestVerify_SuspiciousWhenRegistryMissesGTIN(t *testing.T) {
	h := newHarness(t)
	h.registry.record = &domain.RegistryRecord{Found: false, GTIN: testutil.SampleGTIN}

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuspicious, v.Status)
	assert.Equal(t, []domain.RiskFactorType{domain.FactorGTINNotVerified}, factorTypes(v))
	assert.False(t, v.GTINVerified)
	assert.Empty(t, v.Manufacturer)
	assert.Empty(t, v.Country)
}

func TestVerify_RegistryFailureIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.registry.record = nil
	h.registry.err = errors.New("registry down")

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuspicious, v.Status)
	require.NotNil(t, v.RawData.Registry)
	assert.False(t, v.RawData.Registry.Found)
}

func TestVerify_BadCheckDigitSkipsRegistry(t *testing.T) {
	h := newHarness(t)
	ev := h.fixtures.Evidence(testutil.WithBarcode(domain.SymbologyEAN13, "8901117277404"))

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}})
	require.NoError(t, err)

	assert.Empty(t, h.registry.calls())
	assert.Equal(t, "8901117277404", v.GTIN)
	assert.Equal(t, domain.StatusSuspicious, v.Status)
	assert.Contains(t, factorTypes(v), domain.FactorGTINNotVerified)
}

func TestVerify_ValidGTINPreferredOverEarlierInvalidOne(t *testing.T) {
	h := newHarness(t)
	ev := h.fixtures.Evidence(
		testutil.WithBarcode(domain.SymbologyEAN13, "8901117277404"),
		testutil.WithBarcode(domain.SymbologyEAN13, testutil.SampleGTIN),
	)

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}})
	require.NoError(t, err)

	assert.Equal(t, testutil.SampleGTIN, v.GTIN)
	assert.Equal(t, []string{testutil.SampleGTIN}, h.registry.calls())
	assert.True(t, v.GTINVerified)
}

func TestVerify_BarcodeFieldsWinOverOCR(t *testing.T) {
	h := newHarness(t)
	ev := h.fixtures.Evidence(
		testutil.WithText(testutil.LabelText(testutil.SampleProduct, "OCRLOT", "01/2025")),
		testutil.WithBarcode(domain.SymbologyDataMatrix, testutil.GS1Payload(testutil.SampleGTIN, "260630", "LOT77")),
	)

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}})
	require.NoError(t, err)

	require.NotNil(t, v.ExpiryDate)
	assert.Equal(t, "2026-06-30", v.ExpiryDate.String())
	assert.False(t, v.IsExpired)
	assert.Equal(t, "LOT77", v.BatchNumber)
}

func TestVerify_OCROnlyIsUnverified(t *testing.T) {
	h := newHarness(t)
	ev := h.fixtures.Evidence()

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnverified, v.Status)
	assert.Empty(t, v.GTIN)
	assert.NotNil(t, v.ExpiryDate)
	assert.Equal(t, testutil.SampleBatch, v.BatchNumber)
	assert.Empty(t, h.registry.calls())

	// the regulator is still asked by product name
	require.Len(t, h.regulatory.queries, 1)
	assert.Equal(t, testutil.SampleProduct, h.regulatory.queries[0].ProductName)
}

func TestVerify_ExpiredPublishesExpiredEvent(t *testing.T) {
	h := newHarness(t)
	ev := h.fixtures.Evidence(
		testutil.WithBarcode(domain.SymbologyDataMatrix, testutil.GS1Payload(testutil.SampleGTIN, "240101", testutil.SampleBatch)),
	)

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusExpired, v.Status)
	assert.True(t, v.IsExpired)
	assert.Equal(t, []string{messaging.EventVerificationCompleted, messaging.EventExpiredDetected}, h.events.EventTypes())
}

func TestVerify_RegulatoryWarningIsCounterfeit(t *testing.T) {
	h := newHarness(t)
	h.regulatory.record = &domain.RegulatoryRecord{
		Found:        true,
		Manufacturer: testutil.SampleManufacturer,
		Warnings:     []domain.RegulatoryWarning{{Type: "SPURIOUS", Description: "spurious batch in circulation"}},
	}

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCounterfeit, v.Status)
	assert.Equal(t, domain.SeverityCritical, v.RiskLevel)
	h.events.AssertEventPublished(t, messaging.EventCounterfeitDetected)

	require.Len(t, h.regulatory.queries, 1)
	q := h.regulatory.queries[0]
	assert.Equal(t, testutil.SampleGTIN, q.GTIN)
	assert.Equal(t, testutil.SampleProduct, q.ProductName)
	assert.Equal(t, testutil.SampleManufacturer, q.Manufacturer)
	assert.Equal(t, testutil.SampleBatch, q.BatchNumber)
}

func TestVerify_RegulatoryFailureIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.regulatory.record = nil
	h.regulatory.err = errors.New("timeout")

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthentic, v.Status)
}

func TestVerify_WithoutOptionalCollaborators(t *testing.T) {
	h := newHarness(t, func(o *service.Options) {
		o.Registry = nil
		o.Regulatory = nil
		o.Store = nil
		o.Publisher = nil
	})

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspicious, v.Status)
	assert.Nil(t, v.RawData.Regulatory)
}

func TestVerify_StoreFailureStillReturnsVerdict(t *testing.T) {
	h := newHarness(t)
	h.store.createErr = errors.New("connection refused")

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthentic, v.Status)
	h.events.AssertEventPublished(t, messaging.EventVerificationCompleted)
}

func TestVerify_ImageCountLimits(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrNoEvidence))

	images := make([]domain.ImageEvidence, 6)
	for i := range images {
		images[i] = h.fixtures.Evidence()
	}
	_, err = h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: images})
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.StatusCode(err))

	h.events.AssertNoEventsPublished(t)
}

func TestVerify_DuplicateReadingsAcrossImagesCollapse(t *testing.T) {
	h := newHarness(t)
	payload := testutil.GS1Payload(testutil.SampleGTIN, "260630", testutil.SampleBatch)
	images := []domain.ImageEvidence{
		h.fixtures.Evidence(testutil.WithBarcode(domain.SymbologyDataMatrix, payload)),
		h.fixtures.Evidence(testutil.WithBarcode(domain.SymbologyDataMatrix, payload), testutil.WithQuality(60)),
	}

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: images})
	require.NoError(t, err)

	require.Len(t, v.RawData.Barcodes, 1)
	assert.Equal(t, 0, v.RawData.Barcodes[0].ImageIndex)
	assert.Len(t, v.RawData.OCRTexts, 2)
}

func TestVerify_OCRPreviewIsTruncated(t *testing.T) {
	h := newHarness(t)
	long := testutil.LabelText(testutil.SampleProduct, testutil.SampleBatch, "06/2026") + strings.Repeat("ä", 300)
	ev := h.fixtures.Evidence(testutil.WithText(long))

	v, err := h.svc.Verify(context.Background(), domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}})
	require.NoError(t, err)

	require.Len(t, v.RawData.OCRTexts, 1)
	preview := v.RawData.OCRTexts[0].Text
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Len(t, []rune(preview), 203)
}

func TestVerify_RecommendationsFollowLocale(t *testing.T) {
	h := newHarness(t)
	req := domain.EvidenceRequest{Images: []domain.ImageEvidence{h.sampleEvidence()}}

	en, err := h.svc.Verify(context.Background(), req)
	require.NoError(t, err)
	de, err := h.svc.Verify(i18n.WithLocale(context.Background(), "de"), req)
	require.NoError(t, err)

	assert.Equal(t, en.Status, de.Status)
	assert.Len(t, de.Recommendations, len(en.Recommendations))
	assert.NotEqual(t, en.Recommendations, de.Recommendations)
}
