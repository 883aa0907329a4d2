package risk

import "github.com/mediscan/mediscan-backend/internal/verification/domain"

// Level derives the overall risk from the factor multiset
func Level(factors []domain.RiskFactor) domain.RiskLevel {
	var critical, high int
	for _, f := range factors {
		switch f.Severity {
		case domain.SeverityCritical:
			critical++
		case domain.SeverityHigh:
			high++
		}
	}

	switch {
	case critical > 0 || high >= 2:
		return domain.SeverityCritical
	case high == 1 || len(factors) >= 3:
		return domain.SeverityHigh
	case len(factors) >= 1:
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}

// Status applies the verdict precedence rules to the check details
func Status(d domain.Details) domain.Status {
	unverified := d.GTIN.State == domain.GTINUnverified
	inconsistent := !d.Consistency.Consistent
	invalidDates := !d.Batch.Valid

	switch {
	case d.Expiry.IsExpired:
		return domain.StatusExpired
	case d.Regulatory.HasWarnings:
		return domain.StatusCounterfeit
	case unverified && (inconsistent || invalidDates):
		return domain.StatusCounterfeit
	case unverified:
		return domain.StatusSuspicious
	case inconsistent:
		return domain.StatusSuspicious
	case invalidDates:
		return domain.StatusSuspicious
	case d.GTIN.State == domain.GTINVerified:
		return domain.StatusAuthentic
	}
	return domain.StatusUnverified
}
