package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/costquest/backend/pkg/logger"
)

// WebMarket scrapes vendor search result pages for listings. It backs up
// the reasoning-service source when that returns nothing usable; scraping is
// best-effort and selector-fragile by nature.
type WebMarket struct {
	searchURL  string
	httpClient *http.Client
	maxResults int
}

// NewWebMarket builds a scraper against a vendor search endpoint; the query
// term is appended as the q parameter.
func NewWebMarket(searchURL string, timeoutSec, maxResults int) *WebMarket {
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	if maxResults <= 0 {
		maxResults = 8
	}
	return &WebMarket{
		searchURL: searchURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		maxResults: maxResults,
	}
}

var _ MarketSource = (*WebMarket)(nil)

func (m *WebMarket) FetchListings(ctx context.Context, q Query) ([]Listing, error) {
	term := searchTerm(q.Material, q.Size)

	reqURL := fmt.Sprintf("%s?q=%s", m.searchURL, url.QueryEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search vendor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	listings := make([]Listing, 0, m.maxResults)
	doc.Find(".product-item, .search-result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(listings) >= m.maxResults {
			return false
		}

		name := strings.TrimSpace(s.Find(".product-name, .title").First().Text())
		price := strings.TrimSpace(s.Find(".price, .product-price").First().Text())
		vendor := strings.TrimSpace(s.Find(".seller, .vendor").First().Text())

		if name == "" || price == "" {
			return true
		}

		listings = append(listings, Listing{
			Material: name,
			Unit:     q.Unit,
			Size:     q.Size,
			Price:    price,
			Vendor:   vendor,
			Location: q.Location,
		})
		return true
	})

	logger.Debug("Vendor scrape completed",
		zap.String("term", term),
		zap.Int("listings", len(listings)),
	)

	return listings, nil
}

// searchTerm reduces a BoQ description to its content words so vendor
// search isn't thrown off by estimator phrasing ("supply and install of...").
// Nouns, adjectives, and numbers survive; everything else is dropped.
func searchTerm(material, size string) string {
	doc, err := prose.NewDocument(material)
	if err != nil {
		return strings.TrimSpace(material + " " + size)
	}

	var keywords []string
	for _, tok := range doc.Tokens() {
		if strings.HasPrefix(tok.Tag, "NN") || strings.HasPrefix(tok.Tag, "JJ") || tok.Tag == "CD" {
			keywords = append(keywords, tok.Text)
		}
	}

	if len(keywords) == 0 {
		return strings.TrimSpace(material + " " + size)
	}
	return strings.TrimSpace(strings.Join(keywords, " ") + " " + size)
}
