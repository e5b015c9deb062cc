package pricing

import (
	"context"
	"strings"
)

type memoEntry struct {
	price    float64
	listings []Listing
}

// RunPricer memoizes lookups for one pipeline run so identical
// (material, unit, size) rows hit the market once. Not safe for concurrent
// use; a run is strictly sequential.
type RunPricer struct {
	agg  *Aggregator
	memo map[string]memoEntry
}

func (a *Aggregator) NewRun() *RunPricer {
	return &RunPricer{
		agg:  a,
		memo: make(map[string]memoEntry),
	}
}

func (p *RunPricer) GetUnitPrice(ctx context.Context, material, unit, size, locationHint string) (float64, []Listing) {
	key := strings.ToLower(strings.TrimSpace(material)) + "|" +
		strings.ToLower(strings.TrimSpace(unit)) + "|" +
		strings.ToLower(strings.TrimSpace(size))

	if entry, ok := p.memo[key]; ok {
		return entry.price, entry.listings
	}

	price, listings := p.agg.GetUnitPrice(ctx, material, unit, size, locationHint)
	p.memo[key] = memoEntry{price: price, listings: listings}
	return price, listings
}
