package processor

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// uploadedTextQuality is assigned to text recognised on the client, which
// has no pixel quality the server could measure.
const uploadedTextQuality = 100

// TextProcessor accepts OCR text a client already recognised on-device and
// uploaded in place of the photo.
type TextProcessor struct{}

// NewTextProcessor creates a new text processor
func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

func (p *TextProcessor) Name() string { return "text" }

func (p *TextProcessor) CanProcess(upload domain.ImageUpload) bool {
	return isText(upload) && utf8.Valid(upload.Data)
}

func (p *TextProcessor) Process(_ context.Context, upload domain.ImageUpload) (*domain.ImageEvidence, error) {
	if !utf8.Valid(upload.Data) {
		return nil, fmt.Errorf("text: upload is not valid UTF-8")
	}
	kind := upload.Kind
	if kind == "" {
		kind = domain.ImageKindGeneral
	}
	return &domain.ImageEvidence{
		Kind:      kind,
		Text:      string(upload.Data),
		Quality:   uploadedTextQuality,
		Processor: p.Name(),
	}, nil
}
