package risk

// Thresholds are the tunable limits used by the checks
type Thresholds struct {
	// NearExpiryDays raises NEAR_EXPIRY when fewer days remain
	NearExpiryDays int
	// MaxShelfLifeDays raises SUSPICIOUS_SHELF_LIFE above this span
	MaxShelfLifeDays int
	// PoorQualityScore raises POOR_PACKAGING_QUALITY below this mean score
	PoorQualityScore float64
	// FuzzyMatch is the word overlap needed for two names to agree
	FuzzyMatch float64
}

// DefaultThresholds returns the stock limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		NearExpiryDays:   30,
		MaxShelfLifeDays: 3650,
		PoorQualityScore: 30,
		FuzzyMatch:       0.7,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.NearExpiryDays <= 0 {
		t.NearExpiryDays = def.NearExpiryDays
	}
	if t.MaxShelfLifeDays <= 0 {
		t.MaxShelfLifeDays = def.MaxShelfLifeDays
	}
	if t.PoorQualityScore <= 0 {
		t.PoorQualityScore = def.PoorQualityScore
	}
	if t.FuzzyMatch <= 0 {
		t.FuzzyMatch = def.FuzzyMatch
	}
	return t
}
