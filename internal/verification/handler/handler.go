package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/service"
	"github.com/mediscan/mediscan-backend/internal/verification/storage"
	"github.com/mediscan/mediscan-backend/pkg/auth"
	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/httputil"
	"github.com/mediscan/mediscan-backend/pkg/logger"
)

const (
	defaultMaxUploadSize = 20 << 20 // 20MB across all images
	maxEvidenceBodySize  = 2 << 20
)

// uploadMIMEs are the detected content types accepted as package images.
// Plain text carries OCR output recognised on the client.
var uploadMIMEs = []string{"image/jpeg", "image/png", "image/webp", "text/plain"}

func init() {
	_ = httputil.RegisterCustomValidation("symbology", func(fl validator.FieldLevel) bool {
		return domain.Symbology(fl.Field().String()).Valid()
	})
}

// Handler handles HTTP requests for medicine verification
type Handler struct {
	service       *service.Service
	maxUploadSize int64
	log           *logger.Logger
}

// NewHandler creates a new verification handler
func NewHandler(svc *service.Service, maxUploadSize int64, log *logger.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		service:       svc,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Routes mounts the verification API. Verifying needs the verify scope,
// reading stored verdicts the history scope.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(auth.ScopeVerify))
		r.Post("/verify", h.Verify)
		r.Post("/verify/images", h.VerifyImages)
		r.Get("/verify/jobs/{jobId}", h.GetJob)
		r.Post("/verify-barcode", h.VerifyBarcode)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(auth.ScopeHistory))
		r.Get("/verifications", h.ListVerifications)
		r.Get("/verifications/{id}", h.GetVerification)
	})
}

// Verify handles POST /verify
// Accepts barcode readings and OCR text per image and returns the verdict.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEvidenceBodySize)

	var req domain.EvidenceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if len(req.Images) == 0 {
		httputil.ErrorLocalized(w, r, errors.NoEvidence())
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	v, err := h.service.Verify(r.Context(), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, v)
}

// VerifyImages handles POST /verify/images
// Accepts a multipart form with one or more "images" files and an optional
// "kinds" value per file (branding, label, barcode, general). Returns a job
// to poll; photos are held in memory only.
func (h *Handler) VerifyImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.ErrorLocalized(w, r, errors.PayloadTooLarge())
			return
		}
		httputil.ErrorLocalized(w, r, errors.BadRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		httputil.ErrorLocalized(w, r, errors.NoEvidence())
		return
	}
	kinds := r.MultipartForm.Value["kinds"]

	uploads := make([]domain.ImageUpload, 0, len(files))
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			h.log.Warn().Err(err).Str("filename", fh.Filename).Msg("failed to read uploaded image")
			continue
		}

		mtype := mimetype.Detect(data)
		if !allowedUpload(mtype) {
			h.log.Warn().
				Str("filename", fh.Filename).
				Str("mime", mtype.String()).
				Msg("upload type not accepted, skipping")
			storage.ZeroBytes(data)
			continue
		}

		kind := domain.ImageKindGeneral
		if i < len(kinds) {
			switch k := domain.ImageKind(kinds[i]); k {
			case domain.ImageKindBranding, domain.ImageKindLabel, domain.ImageKindBarcode:
				kind = k
			}
		}
		uploads = append(uploads, domain.ImageUpload{
			Index:       i,
			Kind:        kind,
			Filename:    fh.Filename,
			ContentType: mtype.String(),
			Data:        data,
		})
	}
	if len(uploads) == 0 {
		httputil.ErrorLocalized(w, r, errors.UnsupportedMedia())
		return
	}

	// upload bytes are zeroed by the service
	job, err := h.service.StartImageVerification(r.Context(), uploads)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Accepted(w, job)
}

// GetJob handles GET /verify/jobs/{jobId}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(chi.URLParam(r, "jobId"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, job)
}

// VerifyBarcodeRequest is the body of POST /verify-barcode
type VerifyBarcodeRequest struct {
	GTIN string `json:"gtin" validate:"required,numeric,min=8,max=14"`
}

// VerifyBarcode handles POST /verify-barcode
func (h *Handler) VerifyBarcode(w http.ResponseWriter, r *http.Request) {
	var req VerifyBarcodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	check, err := h.service.VerifyBarcode(r.Context(), req.GTIN)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, check)
}

// GetVerification handles GET /verifications/{id}
func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetVerification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, v)
}

// ListVerifications handles GET /verifications?gtin=&limit=&offset=
func (h *Handler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	history, err := h.service.ListByGTIN(r.Context(), q.Get("gtin"), limit, offset)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, history, &httputil.Meta{
		Limit:  history.Limit,
		Offset: history.Offset,
		Total:  history.Total,
	})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func allowedUpload(mtype *mimetype.MIME) bool {
	for _, m := range uploadMIMEs {
		if mtype.Is(m) {
			return true
		}
	}
	return false
}
