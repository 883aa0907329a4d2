package risk

import (
	"fmt"
	"strings"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// Input is everything the engine evaluates. Field precedence (barcode over
// OCR) is resolved by the caller.
type Input struct {
	GTIN              string
	ExpiryDate        *domain.Date
	ManufacturingDate *domain.Date
	BatchNumber       string
	ProductName       string
	Registry          *domain.RegistryRecord
	Regulatory        *domain.RegulatoryRecord
	Extraction        domain.ExtractionResult
	AsOf              domain.Date
	Locale            string
}

func factor(t domain.RiskFactorType, s domain.Severity, msg string) domain.RiskFactor {
	return domain.RiskFactor{Type: t, Severity: s, Message: msg}
}

// CheckExpiry flags expired and nearly expired products. A missing expiry
// date is not penalised here.
func CheckExpiry(in Input, th Thresholds) (domain.ExpiryDetail, []domain.RiskFactor) {
	if in.ExpiryDate == nil {
		return domain.ExpiryDetail{Status: "unknown"}, nil
	}

	days := in.AsOf.DaysUntil(*in.ExpiryDate)
	detail := domain.ExpiryDetail{
		ExpiryDate:      in.ExpiryDate,
		DaysUntilExpiry: &days,
		Status:          "valid",
	}

	switch {
	case days < 0:
		detail.IsExpired = true
		detail.Status = "expired"
		return detail, []domain.RiskFactor{factor(domain.FactorExpired, domain.SeverityCritical,
			"Medicine expired on "+in.ExpiryDate.String())}
	case days < th.NearExpiryDays:
		detail.Status = "near_expiry"
		return detail, []domain.RiskFactor{factor(domain.FactorNearExpiry, domain.SeverityMedium,
			fmt.Sprintf("Medicine expires in %d days", days))}
	}
	return detail, nil
}

// CheckGTIN flags a GTIN the registry did not confirm. No GTIN at all is
// recorded as absent without a factor.
func CheckGTIN(in Input, _ Thresholds) (domain.GTINDetail, []domain.RiskFactor) {
	if in.GTIN == "" {
		return domain.GTINDetail{State: domain.GTINAbsent, Reason: "No GTIN found"}, nil
	}

	if in.Registry == nil || !in.Registry.Found {
		detail := domain.GTINDetail{
			State:  domain.GTINUnverified,
			Reason: "GTIN not found in registry",
			GTIN:   in.GTIN,
		}
		return detail, []domain.RiskFactor{factor(domain.FactorGTINNotVerified, domain.SeverityHigh,
			"GTIN not found in GS1 registry")}
	}

	return domain.GTINDetail{
		State:    domain.GTINVerified,
		Verified: true,
		GTIN:     in.GTIN,
		Company:  in.Registry.CompanyName,
		Country:  in.Registry.Country,
	}, nil
}

// CheckConsistency compares the label name with the registered name and
// the registered company with the regulator's manufacturer.
func CheckConsistency(in Input, th Thresholds) (domain.ConsistencyDetail, []domain.RiskFactor) {
	detail := domain.ConsistencyDetail{Issues: []string{}}
	var factors []domain.RiskFactor

	if in.ProductName != "" && in.Registry != nil && in.Registry.ProductName != "" &&
		!FuzzyMatch(in.ProductName, in.Registry.ProductName, th.FuzzyMatch) {
		detail.Issues = append(detail.Issues, "Product name mismatch between package and registry")
		factors = append(factors, factor(domain.FactorNameMismatch, domain.SeverityHigh,
			"Product name doesn't match registered name"))
	}

	if in.Registry != nil && in.Regulatory != nil &&
		in.Registry.CompanyName != "" && in.Regulatory.Manufacturer != "" &&
		!FuzzyMatch(in.Registry.CompanyName, in.Regulatory.Manufacturer, th.FuzzyMatch) {
		detail.Issues = append(detail.Issues, "Manufacturer mismatch between registry and regulator")
		factors = append(factors, factor(domain.FactorManufacturerMismatch, domain.SeverityCritical,
			"Different manufacturers in registry and regulatory records"))
	}

	detail.Consistent = len(detail.Issues) == 0
	return detail, factors
}

// CheckBatchDates validates the span between manufacture and expiry
func CheckBatchDates(in Input, th Thresholds) (domain.BatchDetail, []domain.RiskFactor) {
	detail := domain.BatchDetail{BatchNumber: in.BatchNumber, Issues: []string{}, Valid: true}
	if in.ManufacturingDate == nil || in.ExpiryDate == nil {
		return detail, nil
	}

	shelfLife := in.ManufacturingDate.DaysUntil(*in.ExpiryDate)
	detail.ShelfLifeDays = &shelfLife

	var factors []domain.RiskFactor
	switch {
	case shelfLife < 0:
		detail.Issues = append(detail.Issues, "Expiry date before manufacturing date")
		factors = append(factors, factor(domain.FactorInvalidDates, domain.SeverityCritical,
			"Expiry date is before manufacturing date"))
	case shelfLife > th.MaxShelfLifeDays:
		detail.Issues = append(detail.Issues, "Unusually long shelf life")
		factors = append(factors, factor(domain.FactorSuspiciousShelfLife, domain.SeverityMedium,
			fmt.Sprintf("Shelf life of %d years is unusual", shelfLife/365)))
	}

	detail.Valid = len(detail.Issues) == 0
	return detail, factors
}

// CheckRegulatory raises one factor per regulator alert
func CheckRegulatory(in Input, _ Thresholds) (domain.RegulatoryDetail, []domain.RiskFactor) {
	detail := domain.RegulatoryDetail{Warnings: []domain.RegulatoryWarning{}}
	if in.Regulatory == nil {
		return detail, nil
	}

	var factors []domain.RiskFactor
	for _, w := range in.Regulatory.Warnings {
		kind := w.Type
		if kind == "" {
			kind = "Warning found"
		}
		detail.Warnings = append(detail.Warnings, w)
		factors = append(factors, factor(domain.FactorRegulatoryWarning, domain.SeverityCritical,
			"Regulatory alert: "+kind))
	}

	detail.Count = len(detail.Warnings)
	detail.HasWarnings = detail.Count > 0
	return detail, factors
}

// CheckPackaging flags poor print quality and missing label fields
func CheckPackaging(in Input, th Thresholds) (domain.PackagingDetail, []domain.RiskFactor) {
	detail := domain.PackagingDetail{Issues: []string{}}
	var factors []domain.RiskFactor

	if mean, ok := in.Extraction.MeanQuality(); ok {
		detail.MeanQuality = &mean
		if mean < th.PoorQualityScore {
			detail.Issues = append(detail.Issues, "Poor packaging quality detected")
			factors = append(factors, factor(domain.FactorPoorPackaging, domain.SeverityMedium,
				"Packaging quality is below standard"))
		}
	}

	var missing []string
	if in.ExpiryDate == nil {
		missing = append(missing, "expiry date")
	}
	if in.BatchNumber == "" {
		missing = append(missing, "batch number")
	}
	if len(missing) > 0 {
		list := strings.Join(missing, ", ")
		detail.Issues = append(detail.Issues, "Missing required information: "+list)
		factors = append(factors, factor(domain.FactorMissingInfo, domain.SeverityHigh, "Missing: "+list))
	}

	detail.HasIssues = len(detail.Issues) > 0
	return detail, factors
}
