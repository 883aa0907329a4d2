package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/risk"
)

func sev(levels ...domain.Severity) []domain.RiskFactor {
	out := make([]domain.RiskFactor, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.RiskFactor{Type: domain.FactorMissingInfo, Severity: l})
	}
	return out
}

func TestLevel(t *testing.T) {
	const (
		low  = domain.SeverityLow
		med  = domain.SeverityMedium
		high = domain.SeverityHigh
		crit = domain.SeverityCritical
	)

	tests := []struct {
		name    string
		factors []domain.RiskFactor
		want    domain.RiskLevel
	}{
		{"none", nil, low},
		{"one low", sev(low), med},
		{"two medium", sev(med, med), med},
		{"three medium", sev(med, low, med), high},
		{"one high", sev(high), high},
		{"two high", sev(high, high), crit},
		{"one critical", sev(crit), crit},
		{"critical among many", sev(low, med, crit), crit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, risk.Level(tt.factors))
		})
	}
}

func TestLevel_CriticalIsAbsorbing(t *testing.T) {
	sets := [][]domain.RiskFactor{
		nil,
		sev(domain.SeverityLow),
		sev(domain.SeverityHigh),
		sev(domain.SeverityMedium, domain.SeverityMedium, domain.SeverityMedium),
	}
	for _, s := range sets {
		withCritical := append(append([]domain.RiskFactor{}, s...), sev(domain.SeverityCritical)...)
		assert.Equal(t, domain.SeverityCritical, risk.Level(withCritical))
	}
}

func TestStatus_Precedence(t *testing.T) {
	ok := func() domain.Details {
		return domain.Details{
			GTIN:        domain.GTINDetail{State: domain.GTINVerified, Verified: true},
			Consistency: domain.ConsistencyDetail{Consistent: true},
			Batch:       domain.BatchDetail{Valid: true},
		}
	}

	tests := []struct {
		name   string
		mutate func(*domain.Details)
		want   domain.Status
	}{
		{"clean", func(d *domain.Details) {}, domain.StatusAuthentic},
		{"expired beats everything", func(d *domain.Details) {
			d.Expiry.IsExpired = true
			d.Regulatory.HasWarnings = true
			d.GTIN.State = domain.GTINUnverified
		}, domain.StatusExpired},
		{"regulatory warning", func(d *domain.Details) { d.Regulatory.HasWarnings = true }, domain.StatusCounterfeit},
		{"unverified and inconsistent", func(d *domain.Details) {
			d.GTIN.State = domain.GTINUnverified
			d.Consistency.Consistent = false
		}, domain.StatusCounterfeit},
		{"unverified and bad dates", func(d *domain.Details) {
			d.GTIN.State = domain.GTINUnverified
			d.Batch.Valid = false
		}, domain.StatusCounterfeit},
		{"unverified alone", func(d *domain.Details) { d.GTIN.State = domain.GTINUnverified }, domain.StatusSuspicious},
		{"inconsistent alone", func(d *domain.Details) { d.Consistency.Consistent = false }, domain.StatusSuspicious},
		{"bad dates alone", func(d *domain.Details) { d.Batch.Valid = false }, domain.StatusSuspicious},
		{"absent gtin", func(d *domain.Details) { d.GTIN.State = domain.GTINAbsent }, domain.StatusUnverified},
		{"absent gtin with bad dates", func(d *domain.Details) {
			d.GTIN.State = domain.GTINAbsent
			d.Batch.Valid = false
		}, domain.StatusSuspicious},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ok()
			tt.mutate(&d)
			assert.Equal(t, tt.want, risk.Status(d))
		})
	}
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Micro Labs Ltd", "MICRO LABS LIMITED", true},
		{"  Dolo 650 ", "dolo 650", true},
		{"Dolo 650", "DOLO 650 Tablet", true},
		{"one two three four five six seven eight", "one two three four five six seven nine ten", true},
		{"one two three four five six eight", "one two three four five six nine ten", false},
		{"Cipla Ltd", "Sun Pharma Limited", false},
		{"", "anything", false},
		{"...", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, risk.FuzzyMatch(tt.a, tt.b, 0.7))
		})
	}
}

func TestRecommendations_EveryStatusEndsWithDisclaimer(t *testing.T) {
	statuses := []domain.Status{
		domain.StatusAuthentic, domain.StatusSuspicious, domain.StatusCounterfeit,
		domain.StatusExpired, domain.StatusUnverified,
	}
	levels := []domain.RiskLevel{
		domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical,
	}

	for _, s := range statuses {
		for _, l := range levels {
			recs := risk.Recommendations(s, l, "en")
			assert.GreaterOrEqual(t, len(recs), 3, "%s/%s", s, l)
			assert.Contains(t, recs[len(recs)-1], "Disclaimer")
			for _, r := range recs {
				assert.NotContains(t, r, "recommendations.", "untranslated key for %s/%s", s, l)
			}
		}
	}
}

func TestRecommendations_Counterfeit(t *testing.T) {
	assert.Equal(t, []string{
		"DO NOT USE - Suspected counterfeit medicine",
		"Report to local pharmacy authorities",
		"Contact the manufacturer directly to verify",
		"Disclaimer: This tool is for informational purposes only. Always consult healthcare professionals.",
	}, risk.Recommendations(domain.StatusCounterfeit, domain.SeverityCritical, "en"))
}
