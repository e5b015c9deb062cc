package pricing

import "context"

// Listing is one vendor price observation. Price stays a formatted string
// until ParsePrice at the aggregation boundary; it must never flow further
// as a "number".
type Listing struct {
	Material  string `json:"material"`
	Brand     string `json:"brand"`
	Size      string `json:"size"`
	Unit      string `json:"unit"`
	Price     string `json:"price"`
	Vendor    string `json:"vendor"`
	Location  string `json:"location"`
	GmapsLink string `json:"gmaps_link,omitempty"`
}

// Query identifies one market lookup.
type Query struct {
	Material string
	Unit     string
	Size     string
	Location string
}

// MarketSource fetches candidate listings for a query. Implementations: the
// reasoning service prompted for realistic listings, and a vendor web
// scraper fallback.
type MarketSource interface {
	FetchListings(ctx context.Context, q Query) ([]Listing, error)
}

// HistorySink records fetched listings to the price-history log. Failures
// are the sink's own problem; the aggregator never propagates them.
type HistorySink interface {
	LogListing(l Listing) error
}

// ListingCache memoizes listing batches across runs, keyed by the
// normalized query hash.
type ListingCache interface {
	GetListings(ctx context.Context, key string) ([]Listing, bool, error)
	SetListings(ctx context.Context, key string, listings []Listing) error
}
