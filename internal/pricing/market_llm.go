package pricing

import (
	"context"
	"fmt"

	"github.com/costquest/backend/internal/llm"
)

// LLMMarket asks the reasoning service for realistic recent listings. It is
// the primary market source; replies must be a raw JSON array of listing
// objects.
type LLMMarket struct {
	completer   llm.Completer
	maxListings int
}

func NewLLMMarket(completer llm.Completer, maxListings int) *LLMMarket {
	if maxListings <= 0 {
		maxListings = 8
	}
	return &LLMMarket{completer: completer, maxListings: maxListings}
}

var _ MarketSource = (*LLMMarket)(nil)

func (m *LLMMarket) FetchListings(ctx context.Context, q Query) ([]Listing, error) {
	resp, err := m.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: "You are a cost estimation assistant trained on construction material pricing in the Philippines.",
		UserPrompt:   buildListingPrompt(q, m.maxListings),
		Temperature:  0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	var listings []Listing
	if err := llm.ExtractJSONArray(resp.Content, &listings); err != nil {
		return nil, err
	}

	return listings, nil
}

func buildListingPrompt(q Query, maxListings int) string {
	size := q.Size
	if size == "" {
		size = "standard"
	}

	return fmt.Sprintf(`Find up to %d recent, realistic listings for %s (unit: %s, size: %s) in/near %s.
Include Wilcon, CitiHardware, Lazada, Shopee, and local suppliers.
Return RAW JSON array ONLY (no markdown, no text), items with fields:
["material","brand","size","unit","price","vendor","location","gmaps_link"]
Examples of unit values: "bag", "pcs", "m3", "m2", "kg", "sheet".
Price must be a Philippine peso string, e.g. "₱1,250".`,
		maxListings, q.Material, q.Unit, size, q.Location)
}
