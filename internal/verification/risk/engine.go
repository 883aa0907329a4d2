// Package risk fuses extracted label evidence with registry and regulator
// records into an authenticity verdict.
package risk

import "github.com/mediscan/mediscan-backend/internal/verification/domain"

// Engine evaluates verification inputs. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	th Thresholds
}

// NewEngine creates an engine, filling unset thresholds with defaults
func NewEngine(th Thresholds) *Engine {
	return &Engine{th: th.withDefaults()}
}

// Thresholds returns the limits the engine evaluates with
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

// Evaluate runs every check and folds their factors into a verdict
func (e *Engine) Evaluate(in Input) domain.Verdict {
	factors := make([]domain.RiskFactor, 0, 4)
	collect := func(f []domain.RiskFactor) {
		factors = append(factors, f...)
	}

	var details domain.Details
	var f []domain.RiskFactor

	details.Expiry, f = CheckExpiry(in, e.th)
	collect(f)
	details.GTIN, f = CheckGTIN(in, e.th)
	collect(f)
	details.Consistency, f = CheckConsistency(in, e.th)
	collect(f)
	details.Batch, f = CheckBatchDates(in, e.th)
	collect(f)
	details.Regulatory, f = CheckRegulatory(in, e.th)
	collect(f)
	details.Packaging, f = CheckPackaging(in, e.th)
	collect(f)

	level := Level(factors)
	status := Status(details)

	return domain.Verdict{
		Status:          status,
		RiskLevel:       level,
		IsExpired:       details.Expiry.IsExpired,
		ExpiryDate:      in.ExpiryDate,
		GTIN:            in.GTIN,
		GTINVerified:    details.GTIN.Verified,
		RiskFactors:     factors,
		Recommendations: Recommendations(status, level, in.Locale),
		Details:         details,
	}
}
