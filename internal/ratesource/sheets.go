package ratesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// nowFn is swapped in tests that need a pinned effective-date fallback.
var nowFn = time.Now

// SheetParserFunc parses a tariff sheet PDF at the given path.
type SheetParserFunc func(path string) ([]*tariff.RateStructure, error)

// SheetTextParserFunc parses extracted sheet text (useful for testing).
type SheetTextParserFunc func(text string) ([]*tariff.RateStructure, error)

// SheetParser holds the configuration for one utility's sheet parser.
type SheetParser struct {
	// Key is the unique identifier for this utility (e.g., "tneb", "bses").
	// Sheet files are matched to parsers by filename prefix: "<key>*.pdf".
	Key string

	// Utility is the human-readable name of the utility.
	Utility string

	ParsePDF  SheetParserFunc
	ParseText SheetTextParserFunc
}

var (
	sheetParsersMu sync.RWMutex
	sheetParsers   = make(map[string]SheetParser)
)

// RegisterSheetParser registers a sheet parser for a utility.
// This is typically called from an init() function in each parser file.
func RegisterSheetParser(cfg SheetParser) {
	if cfg.Key == "" {
		panic("ratesource: RegisterSheetParser called with empty key")
	}
	if cfg.ParsePDF == nil {
		panic(fmt.Sprintf("ratesource: RegisterSheetParser(%q) called with nil ParsePDF", cfg.Key))
	}

	sheetParsersMu.Lock()
	defer sheetParsersMu.Unlock()

	if _, exists := sheetParsers[cfg.Key]; exists {
		panic(fmt.Sprintf("ratesource: RegisterSheetParser called twice for key %q", cfg.Key))
	}
	sheetParsers[cfg.Key] = cfg
}

// GetSheetParser returns the parser configuration for a utility key.
func GetSheetParser(key string) (SheetParser, bool) {
	sheetParsersMu.RLock()
	defer sheetParsersMu.RUnlock()

	cfg, ok := sheetParsers[key]
	return cfg, ok
}

// ListSheetParsers returns all registered parser keys, sorted.
func ListSheetParsers() []string {
	sheetParsersMu.RLock()
	defer sheetParsersMu.RUnlock()

	keys := make([]string, 0, len(sheetParsers))
	for k := range sheetParsers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SheetSource parses every tariff sheet PDF in a directory whose filename
// prefix matches a registered parser key.
type SheetSource struct {
	dir string
}

func NewSheetSource(dir string) *SheetSource {
	return &SheetSource{dir: dir}
}

func (s *SheetSource) Name() string { return "sheets" }

func (s *SheetSource) Fetch(ctx context.Context) ([]*tariff.RateStructure, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read sheet dir: %w", err)
	}

	var plans []*tariff.RateStructure
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		parser, ok := matchSheetParser(e.Name())
		if !ok {
			log.Debug().Str("file", e.Name()).Msg("no sheet parser matches file, skipping")
			continue
		}
		parsed, err := parser.ParsePDF(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("parse sheet %s: %w", e.Name(), err)
		}
		plans = append(plans, parsed...)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("no tariff sheets in %s matched a registered parser", s.dir)
	}
	return plans, nil
}

func matchSheetParser(filename string) (SheetParser, bool) {
	sheetParsersMu.RLock()
	defer sheetParsersMu.RUnlock()

	lower := strings.ToLower(filename)
	for key, cfg := range sheetParsers {
		if strings.HasPrefix(lower, key) {
			return cfg, true
		}
	}
	return SheetParser{}, false
}

// Shared text-extraction helpers for sheet parsers.

var (
	slabRowRe   = regexp.MustCompile(`(?mi)^\s*(\d+)\s*[-–]\s*(\d+)\s*units?\s*[:\s]\s*(?:Rs\.?|₹)?\s*([0-9]+(?:\.[0-9]+)?)`)
	slabAboveRe = regexp.MustCompile(`(?mi)^\s*above\s*(\d+)\s*units?\s*[:\s]\s*(?:Rs\.?|₹)?\s*([0-9]+(?:\.[0-9]+)?)`)
	wefRe       = regexp.MustCompile(`(?i)(?:w\.e\.f\.?|with effect from)\s*(\d{1,2})[./-](\d{1,2})[./-](\d{4})`)
)

// parseSlabTiers extracts a slab ladder from sheet text. Sheets print
// inclusive ranges ("0 - 100", "101 - 200"); bands are rebuilt from the
// upper bounds alone so both "101 - 200" and "100 - 200" styles produce the
// same contiguous ladder.
func parseSlabTiers(text string) ([]tariff.Tier, error) {
	type row struct {
		upper decimal.Decimal
		rate  decimal.Decimal
	}
	var rows []row
	for _, m := range slabRowRe.FindAllStringSubmatch(text, -1) {
		upper, err := decimal.NewFromString(m[2])
		if err != nil {
			return nil, fmt.Errorf("slab upper bound %q: %w", m[2], err)
		}
		rate, err := decimal.NewFromString(m[3])
		if err != nil {
			return nil, fmt.Errorf("slab rate %q: %w", m[3], err)
		}
		rows = append(rows, row{upper: upper, rate: rate})
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].upper.LessThan(rows[j].upper) })

	tiers := make([]tariff.Tier, 0, len(rows)+1)
	lower := decimal.Zero
	for _, r := range rows {
		upper := r.upper
		tiers = append(tiers, tariff.Tier{LowerKWh: lower, UpperKWh: &upper, RatePerKWh: r.rate})
		lower = r.upper
	}

	if m := slabAboveRe.FindStringSubmatch(text); m != nil {
		rate, err := decimal.NewFromString(m[2])
		if err != nil {
			return nil, fmt.Errorf("slab rate %q: %w", m[2], err)
		}
		tiers = append(tiers, tariff.Tier{LowerKWh: lower, RatePerKWh: rate})
	} else {
		// No "above" row: extend the last slab rate without bound.
		last := tiers[len(tiers)-1]
		tiers = append(tiers, tariff.Tier{LowerKWh: lower, RatePerKWh: last.RatePerKWh})
	}
	return tiers, nil
}

// parseEffectiveFrom extracts a "w.e.f. DD.MM.YYYY" date. Sheets without one
// fall back to January 1 of the current year.
func parseEffectiveFrom(text string) time.Time {
	if m := wefRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(nowFn().UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// parseFirstDecimal returns the first capture of re in s as a decimal, or
// zero when there is no match.
func parseFirstDecimal(re *regexp.Regexp, s string) decimal.Decimal {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero
	}
	return d
}
