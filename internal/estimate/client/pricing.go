package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/httputil"
)

type searchParams struct {
	Query string `validate:"min=2"`
	Limit int    `validate:"gte=1,lte=50"`
}

type priceListParams struct {
	Limit  int `validate:"gte=1,lte=100"`
	Offset int `validate:"gte=0"`
}

// SearchPrices searches the materials price reference. Zero limit means 10.
func (c *Client) SearchPrices(ctx context.Context, query string, limit int) (*domain.PriceSearch, error) {
	params := searchParams{Query: strings.TrimSpace(query), Limit: limit}
	if params.Limit == 0 {
		params.Limit = 10
	}
	if err := httputil.Validate(params); err != nil {
		return nil, err
	}

	var result domain.PriceSearch
	err := c.read(ctx, request{
		op:     "search_prices",
		method: http.MethodGet,
		path:   "/api/pricing/search",
		query:  url.Values{"q": {params.Query}, "limit": {strconv.Itoa(params.Limit)}},
		decode: decodeJSON(&result),
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrice fetches one material by name
func (c *Client) GetPrice(ctx context.Context, name string) (*domain.PriceRecord, error) {
	escaped, err := requireID("Material name", name)
	if err != nil {
		return nil, err
	}

	var result domain.PriceLookup
	err = c.read(ctx, request{
		op:     "get_price",
		method: http.MethodGet,
		path:   "/api/pricing/" + escaped,
		decode: decodeJSON(&result),
	})
	if err != nil {
		return nil, err
	}
	return &result.Material, nil
}

// PricesByCategory lists the materials in one category
func (c *Client) PricesByCategory(ctx context.Context, category string) (*domain.PriceCategory, error) {
	escaped, err := requireID("Category", category)
	if err != nil {
		return nil, err
	}

	var result domain.PriceCategory
	err = c.read(ctx, request{
		op:     "prices_by_category",
		method: http.MethodGet,
		path:   "/api/pricing/category/" + escaped,
		decode: decodeJSON(&result),
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PriceCategories lists every material category, sorted
func (c *Client) PriceCategories(ctx context.Context) (*domain.PriceCategories, error) {
	var result domain.PriceCategories
	err := c.read(ctx, request{
		op:     "price_categories",
		method: http.MethodGet,
		path:   "/api/pricing/categories",
		decode: decodeJSON(&result),
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PriceStatistics(ctx context.Context) (*domain.PriceStatistics, error) {
	var result domain.PriceStatisticsResponse
	err := c.read(ctx, request{
		op:     "price_statistics",
		method: http.MethodGet,
		path:   "/api/pricing/statistics",
		decode: decodeJSON(&result),
	})
	if err != nil {
		return nil, err
	}
	return &result.Statistics, nil
}

// ListPrices pages through the price reference. Zero limit means 50.
func (c *Client) ListPrices(ctx context.Context, limit, offset int) (*domain.PricePage, error) {
	params := priceListParams{Limit: limit, Offset: offset}
	if params.Limit == 0 {
		params.Limit = 50
	}
	if err := httputil.Validate(params); err != nil {
		return nil, err
	}

	var page domain.PricePage
	err := c.read(ctx, request{
		op:     "list_prices",
		method: http.MethodGet,
		path:   "/api/pricing",
		query:  url.Values{"limit": {strconv.Itoa(params.Limit)}, "offset": {strconv.Itoa(params.Offset)}},
		decode: decodeJSON(&page),
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Health reports service health. A degraded or unhealthy service answers
// 503 with the same body, which is returned rather than treated as an error.
func (c *Client) Health(ctx context.Context) (*domain.Health, error) {
	var health domain.Health
	err := c.read(ctx, request{
		op:     "health",
		method: http.MethodGet,
		path:   "/health",
		accept: func(status int) bool {
			return status == http.StatusOK || status == http.StatusServiceUnavailable
		},
		decode: decodeJSON(&health),
	})
	if err != nil {
		return nil, err
	}
	if health.Status == "" {
		return nil, errors.Contract("Health response does not match the expected contract", map[string]string{"status": "is required"})
	}
	return &health, nil
}
