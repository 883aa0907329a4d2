package risk

import (
	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/pkg/i18n"
)

const disclaimerKey = "recommendations.disclaimer"

// recommendationKeys maps a status and risk level to advisory message keys
func recommendationKeys(status domain.Status, level domain.RiskLevel) []string {
	switch status {
	case domain.StatusExpired:
		return []string{
			"recommendations.expired.do_not_use",
			"recommendations.expired.dispose",
		}
	case domain.StatusCounterfeit:
		return []string{
			"recommendations.counterfeit.do_not_use",
			"recommendations.counterfeit.report",
			"recommendations.counterfeit.contact_manufacturer",
		}
	case domain.StatusSuspicious:
		return []string{
			"recommendations.suspicious.caution",
			"recommendations.suspicious.consult_pharmacist",
			"recommendations.suspicious.check_retailer",
		}
	case domain.StatusAuthentic:
		if level == domain.SeverityLow {
			return []string{
				"recommendations.authentic.appears_authentic",
				"recommendations.authentic.follow_dosage",
			}
		}
		return []string{
			"recommendations.authentic.label_concerns",
			"recommendations.suspicious.consult_pharmacist",
		}
	case domain.StatusUnverified:
		return []string{
			"recommendations.unverified.limited_data",
			"recommendations.unverified.licensed_pharmacies",
		}
	}
	return nil
}

// Recommendations renders the advice for a verdict in the given locale,
// always ending with the disclaimer.
func Recommendations(status domain.Status, level domain.RiskLevel, locale string) []string {
	l := i18n.NewLocalizer(locale)
	keys := recommendationKeys(status, level)
	out := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, l.T(k))
	}
	return append(out, l.T(disclaimerKey))
}
