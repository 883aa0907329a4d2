package domain

import "time"

// Severity of a single risk factor. RiskLevel uses the same scale.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RiskLevel is the overall risk of a verification
type RiskLevel = Severity

// Status is the final authenticity verdict
type Status string

const (
	StatusAuthentic   Status = "AUTHENTIC"
	StatusSuspicious  Status = "SUSPICIOUS"
	StatusCounterfeit Status = "COUNTERFEIT"
	StatusExpired     Status = "EXPIRED"
	StatusUnverified  Status = "UNVERIFIED"
)

// Valid reports whether s is one of the five verdict statuses
func (s Status) Valid() bool {
	switch s {
	case StatusAuthentic, StatusSuspicious, StatusCounterfeit, StatusExpired, StatusUnverified:
		return true
	}
	return false
}

// RiskFactorType tags the check that raised a risk factor
type RiskFactorType string

const (
	FactorExpired              RiskFactorType = "EXPIRED"
	FactorNearExpiry           RiskFactorType = "NEAR_EXPIRY"
	FactorGTINNotVerified      RiskFactorType = "GTIN_NOT_VERIFIED"
	FactorNameMismatch         RiskFactorType = "NAME_MISMATCH"
	FactorManufacturerMismatch RiskFactorType = "MANUFACTURER_MISMATCH"
	FactorInvalidDates         RiskFactorType = "INVALID_DATES"
	FactorSuspiciousShelfLife  RiskFactorType = "SUSPICIOUS_SHELF_LIFE"
	FactorRegulatoryWarning    RiskFactorType = "REGULATORY_WARNING"
	FactorPoorPackaging        RiskFactorType = "POOR_PACKAGING_QUALITY"
	FactorMissingInfo          RiskFactorType = "MISSING_INFO"
)

// RiskFactor is one problem found during evaluation
type RiskFactor struct {
	Type     RiskFactorType `json:"type"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
}

// ExpiryDetail reports the expiry check
type ExpiryDetail struct {
	IsExpired       bool   `json:"is_expired"`
	Status          string `json:"status"`
	ExpiryDate      *Date  `json:"expiry_date,omitempty"`
	DaysUntilExpiry *int   `json:"days_until_expiry,omitempty"`
}

// GTINState distinguishes an absent GTIN from one the registry did not confirm
type GTINState int

const (
	GTINAbsent GTINState = iota
	GTINUnverified
	GTINVerified
)

// GTINDetail reports the registry check
type GTINDetail struct {
	State    GTINState `json:"-"`
	Verified bool      `json:"verified"`
	Reason   string    `json:"reason,omitempty"`
	GTIN     string    `json:"gtin,omitempty"`
	Company  string    `json:"company,omitempty"`
	Country  string    `json:"country,omitempty"`
}

// ConsistencyDetail reports cross-source name and manufacturer agreement
type ConsistencyDetail struct {
	Consistent bool     `json:"consistent"`
	Issues     []string `json:"issues"`
}

// BatchDetail reports the manufacturing and expiry date relationship
type BatchDetail struct {
	Valid         bool     `json:"valid"`
	BatchNumber   string   `json:"batch_number,omitempty"`
	ShelfLifeDays *int     `json:"shelf_life_days,omitempty"`
	Issues        []string `json:"issues"`
}

// RegulatoryDetail reports regulator alerts
type RegulatoryDetail struct {
	HasWarnings bool                `json:"has_warnings"`
	Warnings    []RegulatoryWarning `json:"warnings"`
	Count       int                 `json:"count"`
}

// PackagingDetail reports print quality and missing label information
type PackagingDetail struct {
	HasIssues   bool     `json:"has_issues"`
	MeanQuality *float64 `json:"mean_quality,omitempty"`
	Issues      []string `json:"issues"`
}

// Details holds one record per check
type Details struct {
	Expiry      ExpiryDetail      `json:"expiry_check"`
	GTIN        GTINDetail        `json:"gtin_check"`
	Consistency ConsistencyDetail `json:"product_consistency"`
	Batch       BatchDetail       `json:"batch_validity"`
	Regulatory  RegulatoryDetail  `json:"regulatory_warnings"`
	Packaging   PackagingDetail   `json:"packaging_issues"`
}

// Verdict is the outcome of a risk evaluation
type Verdict struct {
	Status          Status       `json:"status"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	IsExpired       bool         `json:"is_expired"`
	ExpiryDate      *Date        `json:"expiry_date,omitempty"`
	GTIN            string       `json:"gtin,omitempty"`
	GTINVerified    bool         `json:"gtin_verified"`
	RiskFactors     []RiskFactor `json:"risk_factors"`
	Recommendations []string     `json:"recommendations"`
	Details         Details      `json:"details"`
}

// RawData is the evidence a verification was built from
type RawData struct {
	Barcodes   []DecodedBarcode  `json:"barcodes"`
	OCRTexts   []OCRPreview      `json:"ocr_texts"`
	Registry   *RegistryRecord   `json:"registry,omitempty"`
	Regulatory *RegulatoryRecord `json:"regulatory,omitempty"`
}

// OCRPreview is a truncated view of one image's text
type OCRPreview struct {
	ImageIndex int     `json:"image_index"`
	Text       string  `json:"text"`
	Quality    float64 `json:"quality"`
}

// Verification is a stored, fully resolved verification
type Verification struct {
	Verdict

	ID                string    `json:"id"`
	ProductName       string    `json:"product_name,omitempty"`
	BatchNumber       string    `json:"batch_number,omitempty"`
	ManufacturingDate *Date     `json:"manufacturing_date,omitempty"`
	Manufacturer      string    `json:"manufacturer,omitempty"`
	Country           string    `json:"country,omitempty"`
	ImageDigests      []string  `json:"image_digests,omitempty"`
	RawData           *RawData  `json:"raw_data,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
