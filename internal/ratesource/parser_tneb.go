package ratesource

import (
	"bytes"
	"fmt"
	"io"
	"regexp"

	pdf "github.com/ledongthuc/pdf"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

func init() {
	RegisterSheetParser(SheetParser{
		Key:       "tneb",
		Utility:   "Tamil Nadu Generation and Distribution Corporation",
		ParsePDF:  ParseTNEBSheetFromPDF,
		ParseText: ParseTNEBSheetFromText,
	})
}

// ParseTNEBSheetFromPDF opens a TNEB tariff sheet PDF at the given path,
// extracts text, and delegates to ParseTNEBSheetFromText.
func ParseTNEBSheetFromPDF(path string) ([]*tariff.RateStructure, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return ParseTNEBSheetFromText(buf.String())
}

var tnebFixedRe = regexp.MustCompile(`(?i)fixed charge\s*[:\s]\s*(?:Rs\.?|₹)?\s*([0-9]+(?:\.[0-9]+)?)`)

// ParseTNEBSheetFromText parses a plain-text representation of the TNEB
// domestic tariff sheet: a slab ladder, a fixed charge and an effective date.
func ParseTNEBSheetFromText(text string) ([]*tariff.RateStructure, error) {
	tiers, err := parseSlabTiers(text)
	if err != nil {
		return nil, fmt.Errorf("tneb sheet: %w", err)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tneb sheet: no slab rows found")
	}

	rs := &tariff.RateStructure{
		PlanID:          "tneb-domestic",
		UtilityID:       "tneb",
		Currency:        "INR",
		EffectiveFrom:   parseEffectiveFrom(text),
		Tiers:           tiers,
		FixedMonthlyFee: parseFirstDecimal(tnebFixedRe, text),
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("tneb sheet: %w", err)
	}
	return []*tariff.RateStructure{rs}, nil
}
