package domain

import "time"

// Symbology identifies the barcode symbology a payload was decoded from
type Symbology string

const (
	SymbologyQR         Symbology = "QR"
	SymbologyEAN13      Symbology = "EAN13"
	SymbologyEAN8       Symbology = "EAN8"
	SymbologyCode128    Symbology = "CODE128"
	SymbologyCode39     Symbology = "CODE39"
	SymbologyUPCA       Symbology = "UPCA"
	SymbologyUPCE       Symbology = "UPCE"
	SymbologyPDF417     Symbology = "PDF417"
	SymbologyDataMatrix Symbology = "DATAMATRIX"
)

// Valid reports whether s is a known symbology
func (s Symbology) Valid() bool {
	switch s {
	case SymbologyQR, SymbologyEAN13, SymbologyEAN8, SymbologyCode128, SymbologyCode39,
		SymbologyUPCA, SymbologyUPCE, SymbologyPDF417, SymbologyDataMatrix:
		return true
	}
	return false
}

// ImageKind is the client-declared role of an uploaded package photo
type ImageKind string

const (
	ImageKindBranding ImageKind = "branding"
	ImageKindLabel    ImageKind = "label"
	ImageKindBarcode  ImageKind = "barcode"
	ImageKindGeneral  ImageKind = "general"
)

// BarcodeReading is a single decoded symbol
type BarcodeReading struct {
	Symbology  Symbology `json:"symbology" validate:"required,symbology"`
	Payload    string    `json:"payload" validate:"required"`
	ImageIndex int       `json:"image_index"`
}

// ParsedGS1Fields holds the fields recovered from one barcode payload.
// Empty strings and nil dates mean the field was not present.
type ParsedGS1Fields struct {
	GTIN           string `json:"gtin,omitempty"`
	ExpiryDate     *Date  `json:"expiry_date,omitempty"`
	ProductionDate *Date  `json:"production_date,omitempty"`
	BestBeforeDate *Date  `json:"best_before_date,omitempty"`
	Batch          string `json:"batch,omitempty"`
	Serial         string `json:"serial,omitempty"`
	IsGS1          bool   `json:"is_gs1"`
	DigitalLink    string `json:"digital_link,omitempty"`
}

// DecodedBarcode pairs a reading with its parsed fields
type DecodedBarcode struct {
	BarcodeReading
	Fields ParsedGS1Fields `json:"fields"`
}

// Confidence ranks how directly a date was tied to a keyword
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Rank orders confidences, higher is stronger
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// DateCandidate is a date recognised in OCR text
type DateCandidate struct {
	Date       Date       `json:"date"`
	Confidence Confidence `json:"confidence"`
	Snippet    string     `json:"snippet"`
	ImageIndex int        `json:"image_index"`
}

// Rotation is the OCR text of an image rotated by Degrees
type Rotation struct {
	Degrees int    `json:"degrees" validate:"oneof=0 90 180 270"`
	Text    string `json:"text"`
}

// ImageText is the OCR output for one source image
type ImageText struct {
	ImageIndex int        `json:"image_index"`
	Text       string     `json:"text"`
	Rotations  []Rotation `json:"rotations,omitempty" validate:"dive"`
	Quality    float64    `json:"quality" validate:"gte=0,lte=100"`
}

// TextBlock is the pooled legible text of one image
type TextBlock struct {
	ImageIndex int     `json:"image_index"`
	Text       string  `json:"text"`
	Quality    float64 `json:"quality"`
}

// ExtractionResult is everything recovered from the OCR text of one request
type ExtractionResult struct {
	Blocks        []TextBlock    `json:"blocks"`
	Expiry        *DateCandidate `json:"expiry,omitempty"`
	Manufacturing *DateCandidate `json:"manufacturing,omitempty"`
	Batch         string         `json:"batch,omitempty"`
	ProductName   string         `json:"product_name,omitempty"`
}

// MeanQuality returns the average block quality and false when there are no blocks
func (r ExtractionResult) MeanQuality() (float64, bool) {
	if len(r.Blocks) == 0 {
		return 0, false
	}
	var sum float64
	for _, b := range r.Blocks {
		sum += b.Quality
	}
	return sum / float64(len(r.Blocks)), true
}

// RegistryRecord is the GS1 registry answer for a GTIN
type RegistryRecord struct {
	Found       bool   `json:"found"`
	GTIN        string `json:"gtin,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Country     string `json:"country,omitempty"`
	Source      string `json:"source,omitempty"`
}

// RegulatoryWarning is a counterfeit or recall alert
type RegulatoryWarning struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// RegulatoryRecord is the drug regulator's answer for a product
type RegulatoryRecord struct {
	Found        bool                `json:"found"`
	Manufacturer string              `json:"manufacturer,omitempty"`
	Warnings     []RegulatoryWarning `json:"warnings,omitempty"`
	Source       string              `json:"source,omitempty"`
}

// JobStatus represents the processing state of an async verification
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// VerificationJob tracks an image upload being verified in the background
type VerificationJob struct {
	JobID     string        `json:"job_id"`
	Status    JobStatus     `json:"status"`
	Result    *Verification `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// ImageUpload is one uploaded photo awaiting processing
type ImageUpload struct {
	Index       int
	Kind        ImageKind
	Filename    string
	ContentType string
	Data        []byte
}

// ImageEvidence is what was recovered from one package photo: decoded
// symbols and OCR text. Clients that scan on-device send it directly.
type ImageEvidence struct {
	Kind      ImageKind        `json:"kind,omitempty" validate:"omitempty,oneof=branding label barcode general"`
	Barcodes  []BarcodeReading `json:"barcodes,omitempty" validate:"dive"`
	Text      string           `json:"text"`
	Rotations []Rotation       `json:"rotations,omitempty" validate:"dive"`
	Quality   float64          `json:"quality" validate:"gte=0,lte=100"`

	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	Processor        string `json:"processor,omitempty"`
}

// EvidenceRequest is the body of a synchronous verification
type EvidenceRequest struct {
	Images []ImageEvidence `json:"images" validate:"required,min=1,dive"`
}
