package processor

import (
	"context"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// Processor turns one uploaded package photo into evidence. Implementations
// can be swapped in to add scanner backends without changing the service or
// handler layer.
type Processor interface {
	// CanProcess returns true if this processor handles the upload
	CanProcess(upload domain.ImageUpload) bool

	// Process recovers barcodes and OCR text from the upload.
	// The image data should NOT be retained after processing.
	Process(ctx context.Context, upload domain.ImageUpload) (*domain.ImageEvidence, error)

	// Name returns the processor name for logging
	Name() string
}

var imageMIMEs = []string{"image/jpeg", "image/png", "image/webp"}

// contentType returns the MIME type the handler recorded for the upload,
// sniffing the data when none was recorded.
func contentType(upload domain.ImageUpload) string {
	if upload.ContentType != "" {
		return upload.ContentType
	}
	return mimetype.Detect(upload.Data).String()
}

func isImage(upload domain.ImageUpload) bool {
	return len(upload.Data) > 0 && mimetype.EqualsAny(contentType(upload), imageMIMEs...)
}

func isText(upload domain.ImageUpload) bool {
	return len(upload.Data) > 0 && mimetype.EqualsAny(contentType(upload), "text/plain")
}

// Registry holds all registered processors and dispatches to the right one
type Registry struct {
	processors []Processor
}

// NewRegistry creates a new processor registry
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// FindProcessors returns all processors that can handle the upload, in
// registration order. If the first one fails the next one can try.
func (r *Registry) FindProcessors(upload domain.ImageUpload) []Processor {
	var result []Processor
	for _, p := range r.processors {
		if p.CanProcess(upload) {
			result = append(result, p)
		}
	}
	return result
}

// Names lists the registered processors
func (r *Registry) Names() []string {
	names := make([]string, len(r.processors))
	for i, p := range r.processors {
		names[i] = p.Name()
	}
	return names
}
