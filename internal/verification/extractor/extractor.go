// Package extractor recovers expiry, manufacturing, batch and product name
// evidence from the OCR text of several photos of one package.
package extractor

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// Config holds the extraction heuristics
type Config struct {
	// MinLegibleWords is the word count a rotation must exceed to be kept
	MinLegibleWords int
	// MinWordLength is the length a word must exceed to count as legible
	MinWordLength int
	// MinPlausibleYear filters unanchored dates
	MinPlausibleYear int
	// ProximityLines is how far below an expiry keyword a date may appear
	ProximityLines int
	// ProductNameLines is how many leading lines are searched for a name
	ProductNameLines int
}

// DefaultConfig returns the stock heuristics
func DefaultConfig() Config {
	return Config{
		MinLegibleWords:  5,
		MinWordLength:    2,
		MinPlausibleYear: 2020,
		ProximityLines:   2,
		ProductNameLines: 5,
	}
}

// Extractor scans OCR text for label evidence. It is safe for concurrent use.
type Extractor struct {
	cfg Config
}

// New creates an extractor, filling unset config values with defaults
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MinLegibleWords <= 0 {
		cfg.MinLegibleWords = def.MinLegibleWords
	}
	if cfg.MinWordLength <= 0 {
		cfg.MinWordLength = def.MinWordLength
	}
	if cfg.MinPlausibleYear <= 0 {
		cfg.MinPlausibleYear = def.MinPlausibleYear
	}
	if cfg.ProximityLines <= 0 {
		cfg.ProximityLines = def.ProximityLines
	}
	if cfg.ProductNameLines <= 0 {
		cfg.ProductNameLines = def.ProductNameLines
	}
	return &Extractor{cfg: cfg}
}

// imageScan is everything found in one image
type imageScan struct {
	block         block
	expiry        *domain.DateCandidate
	manufacturing *domain.DateCandidate
	batch         string
}

// Extract scans every image in parallel and resolves one value per field.
// Images are ordered by index before scanning, so the result does not
// depend on input order or on which scan finishes first.
func (e *Extractor) Extract(texts []domain.ImageText, asOf domain.Date) domain.ExtractionResult {
	ordered := make([]domain.ImageText, len(texts))
	copy(ordered, texts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ImageIndex < ordered[j].ImageIndex
	})

	scans := make([]imageScan, len(ordered))
	var wg sync.WaitGroup
	for i := range ordered {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scans[i] = e.scan(ordered[i], asOf)
		}(i)
	}
	wg.Wait()

	result := domain.ExtractionResult{Blocks: make([]domain.TextBlock, 0, len(scans))}
	for _, s := range scans {
		result.Blocks = append(result.Blocks, domain.TextBlock{
			ImageIndex: s.block.imageIndex,
			Text:       s.block.text,
			Quality:    s.block.quality,
		})
	}
	result.Expiry = selectExpiry(scans)
	result.Manufacturing = selectManufacturing(scans)
	result.Batch = selectBatch(scans)
	result.ProductName = e.selectProductName(scans)
	return result
}

func (e *Extractor) scan(t domain.ImageText, asOf domain.Date) imageScan {
	b := newBlock(t.ImageIndex, t.Quality, e.Pool(t))
	return imageScan{
		block:         b,
		expiry:        e.expiry(b, asOf),
		manufacturing: e.manufacturing(b, asOf),
		batch:         batch(b),
	}
}

// Pool joins the primary text of an image with every legible rotation
func (e *Extractor) Pool(t domain.ImageText) string {
	var parts []string
	primary := Normalize(t.Text)
	if strings.TrimSpace(primary) != "" {
		parts = append(parts, primary)
	}
	for _, r := range t.Rotations {
		text := Normalize(r.Text)
		if text == primary || !e.Legible(text) {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

// Legible reports whether text has more than MinLegibleWords words longer
// than MinWordLength characters.
func (e *Extractor) Legible(text string) bool {
	words := 0
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) > e.cfg.MinWordLength {
			words++
		}
	}
	return words > e.cfg.MinLegibleWords
}

// Normalize applies NFKC so full-width digits and separators read as ASCII,
// unifies line endings and blanks out other control characters.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, s)
}

// selectExpiry takes the first HIGH candidate in image order, then the
// first MEDIUM, then the first LOW.
func selectExpiry(scans []imageScan) *domain.DateCandidate {
	var best *domain.DateCandidate
	for _, s := range scans {
		if s.expiry == nil {
			continue
		}
		if best == nil || s.expiry.Confidence.Rank() > best.Confidence.Rank() {
			best = s.expiry
		}
	}
	return best
}

// selectManufacturing takes the earliest date across images
func selectManufacturing(scans []imageScan) *domain.DateCandidate {
	var best *domain.DateCandidate
	for _, s := range scans {
		if s.manufacturing == nil {
			continue
		}
		if best == nil || s.manufacturing.Date.Before(best.Date.Time) {
			best = s.manufacturing
		}
	}
	return best
}

// selectBatch takes the most frequent batch number, ties going to the one
// seen first.
func selectBatch(scans []imageScan) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range scans {
		if s.batch == "" {
			continue
		}
		if counts[s.batch] == 0 {
			order = append(order, s.batch)
		}
		counts[s.batch]++
	}
	best := ""
	for _, b := range order {
		if counts[b] > counts[best] {
			best = b
		}
	}
	return best
}

// selectProductName reads the name from the highest quality legible block
func (e *Extractor) selectProductName(scans []imageScan) string {
	var best *block
	for i := range scans {
		b := &scans[i].block
		if len(b.lines) == 0 {
			continue
		}
		if best == nil || b.quality > best.quality {
			best = b
		}
	}
	if best == nil {
		return ""
	}
	return e.productName(*best)
}
