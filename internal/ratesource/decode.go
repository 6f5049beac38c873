package ratesource

import (
	"encoding/json"
	"fmt"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// planDocument is the wire shape of a plans file: a single object so the
// format can grow fields without breaking existing files.
type planDocument struct {
	Plans []*tariff.RateStructure `json:"plans"`
}

// DecodePlans parses a plans document and validates every structure in it.
// Any invalid structure fails the whole document.
func DecodePlans(data []byte) ([]*tariff.RateStructure, error) {
	var doc planDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, fmt.Errorf("decode plans: document contains no plans")
	}
	for _, rs := range doc.Plans {
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("decode plans: %w", err)
		}
	}
	return doc.Plans, nil
}

// EncodePlans serializes structures into the plans document format, suitable
// for storing as a snapshot payload.
func EncodePlans(plans []*tariff.RateStructure) ([]byte, error) {
	return json.MarshalIndent(planDocument{Plans: plans}, "", "  ")
}
