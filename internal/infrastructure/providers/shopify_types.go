package providers

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShopifyShopResponse is the envelope of GET /shop.json
type ShopifyShopResponse struct {
	Shop *ShopifyShop `json:"shop"`
}

// ShopifyShop is the shop resource used by the connectivity probe
type ShopifyShop struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"myshopify_domain"`
}

// ShopifyOrdersResponse is the envelope of GET /orders.json
type ShopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

// ShopifyOrder is one Admin API order
type ShopifyOrder struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Currency   string            `json:"currency"`
	TotalPrice string            `json:"total_price"`
	UpdatedAt  time.Time         `json:"updated_at"`
	LineItems  []ShopifyLineItem `json:"line_items"`
}

// ShopifyLineItem is one order line
type ShopifyLineItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}

// ShopifyProductsResponse is the envelope of GET /products.json
type ShopifyProductsResponse struct {
	Products []ShopifyProduct `json:"products"`
}

// ShopifyProduct is one Admin API product
type ShopifyProduct struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	UpdatedAt time.Time        `json:"updated_at"`
	Variants  []ShopifyVariant `json:"variants"`
}

// ShopifyVariant is one product variant
type ShopifyVariant struct {
	ID    int64  `json:"id"`
	SKU   string `json:"sku"`
	Price string `json:"price"`
}

// ShopifyCustomersResponse is the envelope of GET /customers.json
type ShopifyCustomersResponse struct {
	Customers []ShopifyCustomer `json:"customers"`
}

// ShopifyCustomer is one Admin API customer
type ShopifyCustomer struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShopifyAccessTokenResponse is the envelope of the OAuth token endpoint
type ShopifyAccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ParseDecimal converts a provider money string to a decimal, zero on
// malformed input
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// nextPageInfo extracts the page_info cursor from a Shopify Link header,
// empty when there is no next page
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "page_info=")
		if start < 0 {
			continue
		}
		cursor := part[start+len("page_info="):]
		if end := strings.IndexAny(cursor, ">&"); end >= 0 {
			cursor = cursor[:end]
		}
		return cursor
	}
	return ""
}
