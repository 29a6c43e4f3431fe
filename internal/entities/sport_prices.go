package entities

import (
	"encoding/json"
	"fmt"
)

// SportPrices is the normalized per-sport price table of a slot, in major
// currency units. Slot price data arrives in two shapes depending on how
// the sheet was authored: a plain map keyed by sport name, or a list of
// {sport, price} entries. Both are accepted at the boundary, the map form
// is tried first, and everything past UnmarshalJSON sees only the map.
type SportPrices map[string]int64

type sportPriceEntry struct {
	Sport string `json:"sport"`
	Price int64  `json:"price"`
}

func (p *SportPrices) UnmarshalJSON(data []byte) error {
	var asMap map[string]int64
	if err := json.Unmarshal(data, &asMap); err == nil {
		*p = asMap
		return nil
	}

	var asList []sportPriceEntry
	if err := json.Unmarshal(data, &asList); err != nil {
		return fmt.Errorf("unrecognized sport price shape: %w", err)
	}
	out := make(SportPrices, len(asList))
	for _, e := range asList {
		out[e.Sport] = e.Price
	}
	*p = out
	return nil
}

// ParseSportPrices normalizes raw slot price JSON. A missing or null price
// column yields an empty table rather than an error.
func ParseSportPrices(raw json.RawMessage) (SportPrices, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return SportPrices{}, nil
	}
	var p SportPrices
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// PriceFor returns the major-unit price for a sport, if one is configured.
func (p SportPrices) PriceFor(sport string) (int64, bool) {
	price, ok := p[sport]
	return price, ok
}
