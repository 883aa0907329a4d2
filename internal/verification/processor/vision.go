package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// VisionProcessor sends package photos to the scanner sidecar, which decodes
// barcodes and runs OCR at each rotation.
type VisionProcessor struct {
	visionURL  string
	httpClient *http.Client
}

// NewVisionProcessor creates a processor that calls the scanner at visionURL.
func NewVisionProcessor(visionURL string, timeout time.Duration) *VisionProcessor {
	if timeout <= 0 {
		timeout = 30 * time.Second // four OCR passes per image
	}
	return &VisionProcessor{
		visionURL:  visionURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *VisionProcessor) Name() string { return "vision" }

func (p *VisionProcessor) CanProcess(upload domain.ImageUpload) bool {
	return p.visionURL != "" && isImage(upload)
}

func (p *VisionProcessor) Process(ctx context.Context, upload domain.ImageUpload) (*domain.ImageEvidence, error) {
	if !isImage(upload) {
		return nil, fmt.Errorf("vision: %s is not a JPEG, PNG or WebP image, skipping", contentType(upload))
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := upload.Filename
	if filename == "" {
		filename = "package.bin"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("vision: create form file: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("vision: write image data: %w", err)
	}
	kind := upload.Kind
	if kind == "" {
		kind = domain.ImageKindGeneral
	}
	if err := writer.WriteField("image_kind", string(kind)); err != nil {
		return nil, fmt.Errorf("vision: write image_kind field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("vision: close multipart writer: %w", err)
	}

	url := p.visionURL + "/api/v1/scan"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: scanner request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: scanner returned %d: %s", resp.StatusCode, string(respBody))
	}

	var scan scanResponse
	if err := json.Unmarshal(respBody, &scan); err != nil {
		return nil, fmt.Errorf("vision: parse response: %w", err)
	}

	ev := &domain.ImageEvidence{
		Kind:             kind,
		Text:             scan.Text,
		Quality:          clampQuality(scan.QualityScore),
		ProcessingTimeMs: scan.ProcessingTimeMs,
		Processor:        p.Name(),
	}
	if scan.EnhancedText != "" {
		ev.Text += "\n" + scan.EnhancedText
	}
	for _, b := range scan.Barcodes {
		sym := domain.Symbology(b.Type)
		if !sym.Valid() || b.Data == "" {
			continue
		}
		ev.Barcodes = append(ev.Barcodes, domain.BarcodeReading{
			Symbology:  sym,
			Payload:    b.Data,
			ImageIndex: upload.Index,
		})
	}
	for _, r := range scan.Rotations {
		ev.Rotations = append(ev.Rotations, domain.Rotation{Degrees: r.Angle, Text: r.Text})
	}
	return ev, nil
}

func clampQuality(q float64) float64 {
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return q
}

// scanResponse mirrors the scanner sidecar's ScanResponse model.
type scanResponse struct {
	Barcodes         []scanBarcode  `json:"barcodes"`
	Text             string         `json:"text"`
	EnhancedText     string         `json:"enhanced_text"`
	Rotations        []scanRotation `json:"rotations"`
	QualityScore     float64        `json:"quality_score"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

type scanBarcode struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type scanRotation struct {
	Angle int    `json:"angle"`
	Text  string `json:"text"`
}
