package gs1

import "github.com/mediscan/mediscan-backend/internal/verification/domain"

// Dedupe drops readings whose symbology and payload repeat an earlier
// reading. Order is preserved and the first occurrence wins.
func Dedupe(readings []domain.BarcodeReading) []domain.BarcodeReading {
	seen := make(map[string]struct{}, len(readings))
	out := make([]domain.BarcodeReading, 0, len(readings))
	for _, r := range readings {
		key := string(r.Symbology) + "\x00" + r.Payload
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
