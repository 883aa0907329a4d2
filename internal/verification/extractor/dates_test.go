package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

func TestFirstDate_Shapes(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Date
	}{
		{"03/25", domain.NewDate(2025, time.March, 31)},
		{"3/2025", domain.NewDate(2025, time.March, 31)},
		{"08I2026", domain.NewDate(2026, time.August, 31)},
		{"08l26", domain.NewDate(2026, time.August, 31)},
		{"08|26", domain.NewDate(2026, time.August, 31)},
		{"08:26", domain.NewDate(2026, time.August, 31)},
		{"08,2026", domain.NewDate(2026, time.August, 31)},
		{"02 / 2028", domain.NewDate(2028, time.February, 29)},
		{"15.03.2027", domain.NewDate(2027, time.March, 15)},
		{"15-03-27", domain.NewDate(2027, time.March, 15)},
		{"2026-11-05", domain.NewDate(2026, time.November, 5)},
		{"31 DEC 2025", domain.NewDate(2025, time.December, 31)},
		{"NOV 2026", domain.NewDate(2026, time.November, 30)},
		{"Sept.25", domain.NewDate(2025, time.September, 30)},
		{"JUH 2026", domain.NewDate(2026, time.June, 30)},
		{"JUt-25", domain.NewDate(2025, time.July, 31)},
		{"JAH26", domain.NewDate(2026, time.January, 31)},
		{"2026 FE8", domain.NewDate(2026, time.February, 28)},
		{"27 JUNE", domain.NewDate(2027, time.June, 30)},
		{"7 2024", domain.NewDate(2024, time.July, 31)},
		{"06/99", domain.NewDate(1999, time.June, 30)},
		{"MFG 01/2024 EXP 31/12/2026", domain.NewDate(2024, time.January, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := firstDate(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstDate_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"13/25",
		"00/25",
		"MARKET 25",
		"Rs 12345",
		"500 mg",
		"123/456",
	} {
		t.Run(in, func(t *testing.T) {
			_, ok := firstDate(in)
			assert.False(t, ok)
		})
	}
}

func TestAllDates(t *testing.T) {
	got := allDates("MFD 01/2024 EXP 12/2026")
	assert.Equal(t, []domain.Date{
		domain.NewDate(2024, time.January, 31),
		domain.NewDate(2026, time.December, 31),
	}, got)
}

func TestFuzzyDate(t *testing.T) {
	d, ok := fuzzyDate("JU 27")
	assert.True(t, ok)
	assert.Equal(t, domain.NewDate(2027, time.June, 30), d)

	_, ok = fuzzyDate("SUMMARY 25")
	assert.False(t, ok)
}
