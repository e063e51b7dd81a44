package cart

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/nordstil-checkout/pkg/config"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Item is a standard catalog line as exposed to callers and cached per owner.
type Item struct {
	ID        uuid.UUID       `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CustomItem is a configurator-built line priced independently of the catalog.
type CustomItem struct {
	ID            uuid.UUID            `json:"id"`
	Kind          enums.CustomItemKind `json:"kind"`
	Name          string               `json:"name"`
	Configuration map[string]any       `json:"configuration,omitempty"`
	UnitPrice     decimal.Decimal      `json:"unit_price"`
	Quantity      int                  `json:"quantity"`
}

// Rules are the pricing knobs applied on top of the subtotal.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string
}

// DefaultRules: free shipping strictly above 100, otherwise 9.99; 25% tax; eur.
func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.RequireFromString("9.99"),
		TaxRate:               decimal.RequireFromString("0.25"),
		Currency:              "eur",
	}
}

// RulesFromConfig parses the checkout pricing configuration.
func RulesFromConfig(cfg config.CheckoutConfig) (Rules, error) {
	threshold, fee, rate, err := cfg.Pricing()
	if err != nil {
		return Rules{}, err
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "eur"
	}
	return Rules{
		FreeShippingThreshold: threshold,
		FlatShippingFee:       fee,
		TaxRate:               rate,
		Currency:              currency,
	}, nil
}

// Snapshot is the derived cart total.
type Snapshot struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	Currency  string          `json:"currency"`
}

// Aggregate sums unit price × quantity across both item kinds and applies the rules.
func Aggregate(items []Item, custom []CustomItem, rules Rules) Snapshot {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	for _, item := range custom {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}

	shipping := rules.FlatShippingFee
	if subtotal.GreaterThan(rules.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(rules.TaxRate)

	return Snapshot{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Tax:       tax,
		Total:     subtotal.Add(shipping).Add(tax),
		ItemCount: count,
		Currency:  rules.Currency,
	}
}

// AmountCents is round(total * 100) in minor units.
func (s Snapshot) AmountCents() int64 {
	return s.Total.Mul(hundred).Round(0).IntPart()
}

// IsEmpty reports whether the snapshot has no purchasable lines.
func (s Snapshot) IsEmpty() bool {
	return s.ItemCount == 0
}

// Rendered is the two-decimal presentation of a snapshot.
type Rendered struct {
	Subtotal  string `json:"subtotal"`
	Shipping  string `json:"shipping"`
	Tax       string `json:"tax"`
	Total     string `json:"total"`
	ItemCount int    `json:"item_count"`
	Currency  string `json:"currency"`
}

func (s Snapshot) Render() Rendered {
	return Rendered{
		Subtotal:  s.Subtotal.StringFixed(2),
		Shipping:  s.Shipping.StringFixed(2),
		Tax:       s.Tax.StringFixed(2),
		Total:     s.Total.StringFixed(2),
		ItemCount: s.ItemCount,
		Currency:  s.Currency,
	}
}
