package ratesource

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"

	pdf "github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

func init() {
	RegisterSheetParser(SheetParser{
		Key:       "bses",
		Utility:   "BSES Rajdhani Power Limited",
		ParsePDF:  ParseBSESSheetFromPDF,
		ParseText: ParseBSESSheetFromText,
	})
}

// ParseBSESSheetFromPDF opens a BSES tariff schedule PDF at the given path,
// extracts text, and delegates to ParseBSESSheetFromText.
func ParseBSESSheetFromPDF(path string) ([]*tariff.RateStructure, error) {
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

	return ParseBSESSheetFromText(buf.String())
}

var (
	bsesFixedRe     = regexp.MustCompile(`(?i)fixed charge\s*[:\s]\s*(?:Rs\.?|₹)?\s*([0-9]+(?:\.[0-9]+)?)`)
	bsesSurchargeRe = regexp.MustCompile(`(?i)time of day surcharge\s*[:\s]\s*(\d+)%\s*during peak hours\s*\((\d{1,2}):\d{2}\s*[-–]\s*(\d{1,2}):\d{2}\)`)
	bsesRebateRe    = regexp.MustCompile(`(?i)time of day rebate\s*[:\s]\s*(\d+)%\s*during off[ -]peak hours\s*\((\d{1,2}):\d{2}\s*[-–]\s*(\d{1,2}):\d{2}\)`)
)

// ParseBSESSheetFromText parses a plain-text representation of the BSES
// domestic tariff schedule: a slab ladder, a fixed charge, and optional
// time-of-day surcharge/rebate lines which become TOU windows.
func ParseBSESSheetFromText(text string) ([]*tariff.RateStructure, error) {
	tiers, err := parseSlabTiers(text)
	if err != nil {
		return nil, fmt.Errorf("bses sheet: %w", err)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("bses sheet: no slab rows found")
	}

	var windows []tariff.TOUWindow
	if m := bsesSurchargeRe.FindStringSubmatch(text); m != nil {
		w, err := bsesPercentWindow("peak-surcharge", m, true, 1)
		if err != nil {
			return nil, fmt.Errorf("bses sheet: %w", err)
		}
		windows = append(windows, w)
	}
	if m := bsesRebateRe.FindStringSubmatch(text); m != nil {
		w, err := bsesPercentWindow("off-peak-rebate", m, false, 2)
		if err != nil {
			return nil, fmt.Errorf("bses sheet: %w", err)
		}
		windows = append(windows, w)
	}

	rs := &tariff.RateStructure{
		PlanID:          "bses-domestic",
		UtilityID:       "bses",
		Currency:        "INR",
		EffectiveFrom:   parseEffectiveFrom(text),
		Tiers:           tiers,
		TOUWindows:      windows,
		FixedMonthlyFee: parseFirstDecimal(bsesFixedRe, text),
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("bses sheet: %w", err)
	}
	return []*tariff.RateStructure{rs}, nil
}

// bsesPercentWindow turns a "<pct>% during ... (HH:MM - HH:MM)" match into a
// TOU multiplier window: 1+pct/100 for surcharges, 1-pct/100 for rebates.
func bsesPercentWindow(label string, m []string, surcharge bool, priority int) (tariff.TOUWindow, error) {
	pct, err := decimal.NewFromString(m[1])
	if err != nil {
		return tariff.TOUWindow{}, fmt.Errorf("percentage %q: %w", m[1], err)
	}
	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[3])

	frac := pct.Div(decimal.NewFromInt(100))
	mult := decimal.NewFromInt(1).Add(frac)
	if !surcharge {
		mult = decimal.NewFromInt(1).Sub(frac)
	}
	return tariff.TOUWindow{
		Label:      label,
		StartHour:  start,
		EndHour:    end,
		Multiplier: &mult,
		Priority:   priority,
	}, nil
}
