package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/handler"
	"github.com/mediscan/mediscan-backend/internal/verification/processor"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/internal/verification/service"
	"github.com/mediscan/mediscan-backend/internal/verification/storage"
	"github.com/mediscan/mediscan-backend/pkg/auth"
	"github.com/mediscan/mediscan-backend/pkg/config"
	apperrors "github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/i18n"
	"github.com/mediscan/mediscan-backend/pkg/logger"
	"github.com/mediscan/mediscan-backend/pkg/testutil"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *httpMeta `json:"meta"`
}

type httpMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

type registryHit struct{}

func (registryHit) Name() string { return "stub" }

func (registryHit) LookupGTIN(_ context.Context, gtin string) (*domain.RegistryRecord, error) {
	if gtin != testutil.SampleGTIN {
		return &domain.RegistryRecord{Found: false, GTIN: gtin}, nil
	}
	return testutil.RegistryHit(), nil
}

type historyStore struct {
	saved []*domain.Verification
}

func (s *historyStore) Create(_ context.Context, v *domain.Verification, _ string) error {
	s.saved = append(s.saved, v)
	return nil
}

func (s *historyStore) GetByID(_ context.Context, id string) (*domain.Verification, error) {
	for _, v := range s.saved {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, apperrors.NotFoundWithKey("verification")
}

func (s *historyStore) ListByGTIN(_ context.Context, gtin string, _, _ int) ([]*repository.VerificationSummary, int64, error) {
	return []*repository.VerificationSummary{{ID: "a1", Status: "AUTHENTIC", GTIN: &gtin}}, 1, nil
}

func (s *historyStore) CountByStatus(context.Context, string) (map[domain.Status]int, error) {
	return map[domain.Status]int{domain.StatusAuthentic: 1}, nil
}

func newRouter(t *testing.T, middlewares ...func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	jobs := storage.NewJobStore(time.Minute)
	t.Cleanup(jobs.Close)

	svc := service.New(service.Options{
		Processors: processor.NewRegistry(processor.NewTextProcessor()),
		Jobs:       jobs,
		Registry:   registryHit{},
		Store:      &historyStore{},
		Config:     config.VerificationConfig{MaxImages: 5, ProcessTimeout: 5 * time.Second},
		Logger:     logger.Nop(),
		Now:        func() time.Time { return testutil.SampleAsOf },
	})
	h := handler.NewHandler(svc, 1<<20, logger.Nop())

	r := chi.NewRouter()
	r.Use(i18n.Middleware)
	for _, m := range middlewares {
		r.Use(m)
	}
	r.Route("/api/v1", h.Routes)
	return r
}

func decode(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func sampleRequest() domain.EvidenceRequest {
	ev := testutil.NewFixtureFactory().Evidence(testutil.WithBarcode(domain.SymbologyDataMatrix,
		testutil.GS1Payload(testutil.SampleGTIN, "260630", testutil.SampleBatch)))
	return domain.EvidenceRequest{Images: []domain.ImageEvidence{ev}}
}

func TestVerify(t *testing.T) {
	router := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify", sampleRequest()))
	testutil.AssertStatus(t, rr, http.StatusOK)

	env := decode(t, rr.Body.Bytes())
	require.True(t, env.Success)

	var v domain.Verification
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, domain.StatusAuthentic, v.Status)
	assert.Equal(t, testutil.SampleGTIN, v.GTIN)
	require.NotNil(t, v.ExpiryDate)
	assert.Equal(t, "2026-06-30", v.ExpiryDate.String())
	assert.Contains(t, rr.Body.String(), `"expiry_check"`)
}

func TestVerify_Errors(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name     string
		body     interface{}
		wantCode string
	}{
		{"no images", domain.EvidenceRequest{}, "NO_IMAGES"},
		{"unknown symbology", domain.EvidenceRequest{Images: []domain.ImageEvidence{{
			Barcodes: []domain.BarcodeReading{{Symbology: "AZTEC", Payload: "x"}},
			Quality:  50,
		}}}, "VALIDATION_ERROR"},
		{"quality out of range", domain.EvidenceRequest{Images: []domain.ImageEvidence{{Text: "x", Quality: 140}}}, "VALIDATION_ERROR"},
		{"unknown field", map[string]interface{}{"pictures": []string{}}, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify", tt.body))
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			env := decode(t, rr.Body.Bytes())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestVerify_LocalisedError(t *testing.T) {
	router := newRouter(t)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify", domain.EvidenceRequest{})
	rr := testutil.ExecuteRequest(router, testutil.WithAcceptLanguage(req, "de-DE,de;q=0.9"))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	env := decode(t, rr.Body.Bytes())
	assert.Equal(t, "Mindestens ein Bild oder Nachweis ist erforderlich", env.Error.Message)
}

func TestVerifyImages_TextUploadCompletes(t *testing.T) {
	router := newRouter(t)

	label := testutil.LabelText(testutil.SampleProduct, testutil.SampleBatch, "06/2026")
	req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/v1/verify/images",
		[]testutil.MultipartFile{{Field: "images", Filename: "label.txt", Data: []byte(label)}},
		map[string][]string{"kinds": {"label"}})

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	var job domain.VerificationJob
	require.NoError(t, json.Unmarshal(decode(t, rr.Body.Bytes()).Data, &job))
	require.NotEmpty(t, job.JobID)

	testutil.RequireEventually(t, func() bool {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/verify/jobs/"+job.JobID, nil))
		if rr.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(decode(t, rr.Body.Bytes()).Data, &job))
		return job.Status == domain.JobCompleted
	}, 5*time.Second, 10*time.Millisecond, "job did not complete")

	require.NotNil(t, job.Result)
	assert.Equal(t, testutil.SampleBatch, job.Result.BatchNumber)
	assert.Len(t, job.Result.ImageDigests, 1)
}

func TestVerifyImages_Rejected(t *testing.T) {
	router := newRouter(t)

	t.Run("no files", func(t *testing.T) {
		req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/v1/verify/images", nil, map[string][]string{"kinds": {"label"}})
		rr := testutil.ExecuteRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("unsupported type", func(t *testing.T) {
		req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/v1/verify/images",
			[]testutil.MultipartFile{{Field: "images", Filename: "archive.zip", Data: []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")}}, nil)
		rr := testutil.ExecuteRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnsupportedMediaType)
	})

	t.Run("not multipart", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify/images", sampleRequest()))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestGetJob_NotFound(t *testing.T) {
	router := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/verify/jobs/nope", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestVerifyBarcode(t *testing.T) {
	router := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify-barcode",
		handler.VerifyBarcodeRequest{GTIN: testutil.SampleGTIN}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var check service.BarcodeCheck
	require.NoError(t, json.Unmarshal(decode(t, rr.Body.Bytes()).Data, &check))
	assert.True(t, check.ChecksumValid)
	require.NotNil(t, check.Registry)
	assert.True(t, check.Registry.Found)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify-barcode",
		handler.VerifyBarcodeRequest{GTIN: "89O1"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestListVerifications(t *testing.T) {
	router := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet,
		"/api/v1/verifications?gtin="+testutil.SampleGTIN+"&limit=5", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	env := decode(t, rr.Body.Bytes())
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.Total)
	assert.Equal(t, 5, env.Meta.Limit)

	var history service.History
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Equal(t, 1, history.StatusCounts[domain.StatusAuthentic])
}

func TestRoutes_RequireScopes(t *testing.T) {
	manager := auth.NewManager(&config.JWTConfig{
		Secret:       "handler-test-secret-with-enough-length",
		AccessExpiry: time.Hour,
		Issuer:       "mediscan",
	})
	router := newRouter(t, auth.Middleware(manager, true, logger.Nop()))

	historyOnly, err := manager.GenerateToken("client-1", []string{auth.ScopeHistory})
	require.NoError(t, err)
	verifier, err := manager.GenerateToken("client-2", []string{auth.ScopeVerify})
	require.NoError(t, err)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify", sampleRequest()))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify", sampleRequest())
	rr = testutil.ExecuteRequest(router, testutil.WithBearerToken(req, historyOnly.AccessToken))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	req = testutil.NewHTTPRequest(http.MethodPost, "/api/v1/verify", sampleRequest())
	rr = testutil.ExecuteRequest(router, testutil.WithBearerToken(req, verifier.AccessToken))
	testutil.AssertStatus(t, rr, http.StatusOK)

	req = testutil.NewHTTPRequest(http.MethodGet, "/api/v1/verifications?gtin="+testutil.SampleGTIN, nil)
	rr = testutil.ExecuteRequest(router, testutil.WithBearerToken(req, verifier.AccessToken))
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}
