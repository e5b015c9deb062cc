package pricing

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/costquest/backend/internal/metrics"
	"github.com/costquest/backend/pkg/logger"
	"github.com/costquest/backend/pkg/utils"
)

// Config tunes the aggregator. ExcludedTerms/ExcludedPrefixes form the
// forced-zero gate: a matching description is never priced and never reaches
// the market source.
type Config struct {
	ExcludedTerms    []string
	ExcludedPrefixes []string
	DefaultLocation  string
}

// Aggregator turns a (material, unit, size, location) query into one
// representative unit price plus the supporting listings.
type Aggregator struct {
	source   MarketSource
	fallback MarketSource
	history  HistorySink
	cache    ListingCache
	cfg      Config
}

// NewAggregator wires the aggregator. fallback, history, and cache may be
// nil; the aggregator degrades rather than requiring them.
func NewAggregator(source, fallback MarketSource, history HistorySink, cache ListingCache, cfg Config) *Aggregator {
	return &Aggregator{
		source:   source,
		fallback: fallback,
		history:  history,
		cache:    cache,
		cfg:      cfg,
	}
}

// Excluded reports whether a description is gated out of pricing entirely.
func (a *Aggregator) Excluded(description string) bool {
	desc := strings.ToLower(strings.TrimSpace(description))

	for _, prefix := range a.cfg.ExcludedPrefixes {
		if strings.HasPrefix(desc, strings.ToLower(prefix)) {
			return true
		}
	}
	for _, term := range a.cfg.ExcludedTerms {
		if strings.Contains(desc, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// GetUnitPrice returns the median of the parsed non-zero listing prices for
// the query, plus every listing fetched. 0.0 is the "no price found" signal:
// returned for gated descriptions, empty markets, and market-source
// failures. It never returns an error.
func (a *Aggregator) GetUnitPrice(ctx context.Context, material, unit, size, locationHint string) (float64, []Listing) {
	if a.Excluded(material) {
		metrics.PriceLookupsTotal.WithLabelValues("excluded").Inc()
		logger.Debug("Description excluded from pricing", zap.String("material", material))
		return 0.0, []Listing{}
	}

	location := locationHint
	if location == "" {
		location = a.cfg.DefaultLocation
	}

	q := Query{Material: material, Unit: unit, Size: size, Location: location}
	listings := a.fetch(ctx, q)

	a.persistListings(listings)

	price := PickUnitPrice(listings)
	if price > 0 {
		metrics.PriceLookupsTotal.WithLabelValues("priced").Inc()
	} else {
		metrics.PriceLookupsTotal.WithLabelValues("no_price").Inc()
	}

	logger.Debug("Unit price resolved",
		zap.String("material", material),
		zap.String("unit", unit),
		zap.Float64("price", price),
		zap.Int("listings", len(listings)),
	)

	return price, listings
}

func (a *Aggregator) fetch(ctx context.Context, q Query) []Listing {
	cacheKey := utils.HashFields(q.Material, q.Unit, q.Size, q.Location)

	if a.cache != nil {
		if cached, ok, err := a.cache.GetListings(ctx, cacheKey); err == nil && ok {
			metrics.PriceCacheHits.WithLabelValues("listings").Inc()
			return cached
		}
		metrics.PriceCacheMisses.WithLabelValues("listings").Inc()
	}

	listings, err := a.source.FetchListings(ctx, q)
	if err != nil {
		logger.Warn("Market source failed", zap.String("material", q.Material), zap.Error(err))
		listings = nil
	}

	if len(usablePrices(listings)) == 0 && a.fallback != nil {
		fbListings, fbErr := a.fallback.FetchListings(ctx, q)
		if fbErr != nil {
			logger.Warn("Fallback market source failed",
				zap.String("material", q.Material), zap.Error(fbErr))
		} else if len(fbListings) > 0 {
			listings = fbListings
		}
	}

	if a.cache != nil && len(listings) > 0 {
		if err := a.cache.SetListings(ctx, cacheKey, listings); err != nil {
			logger.Warn("Failed to cache listings", zap.Error(err))
		}
	}

	return listings
}

// persistListings writes each fetched listing to the price-history log,
// best-effort: one bad row never affects the returned price.
func (a *Aggregator) persistListings(listings []Listing) {
	if a.history == nil {
		return
	}
	for _, l := range listings {
		if err := a.history.LogListing(l); err != nil {
			logger.Warn("Failed to log price listing",
				zap.String("material", l.Material),
				zap.String("vendor", l.Vendor),
				zap.Error(err),
			)
		}
	}
}

// PickUnitPrice computes the representative price for a listing batch: the
// median of parsed non-zero prices. Listings whose price doesn't parse
// contribute nothing — they are not counted as zero.
func PickUnitPrice(listings []Listing) float64 {
	return Median(usablePrices(listings))
}

func usablePrices(listings []Listing) []float64 {
	var prices []float64
	for _, l := range listings {
		if strings.TrimSpace(l.Price) == "" {
			continue
		}
		if v := ParsePrice(l.Price); v > 0 {
			prices = append(prices, v)
		}
	}
	return prices
}
