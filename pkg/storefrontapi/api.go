package storefrontapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
)

// Address is a saved customer address as returned by the address API.
type Address struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

// CreateIntentRequest is the payload of POST /payments/create-intent.
type CreateIntentRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaymentIntent is the handle returned by the payment intent API.
type PaymentIntent struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// OrderAddress is a shipping or billing block of an order.
type OrderAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

// OrderLine is one purchased line of an order.
type OrderLine struct {
	ProductID     string          `json:"product_id,omitempty"`
	CustomItemID  string          `json:"custom_item_id,omitempty"`
	Kind          string          `json:"kind"`
	Name          string          `json:"name"`
	Size          string          `json:"size,omitempty"`
	Configuration map[string]any  `json:"configuration,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
}

// OrderRequest is the payload of POST /orders.
type OrderRequest struct {
	ShippingAddress OrderAddress    `json:"shipping"`
	BillingAddress  OrderAddress    `json:"billing"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Items           []OrderLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Notes           string          `json:"notes"`
}

// Order is the order created by the backend.
type Order struct {
	ID        string          `json:"id"`
	Status    string          `json:"status,omitempty"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// FetchUserAddresses lists the saved addresses of the token's user.
func (c *Client) FetchUserAddresses(ctx context.Context, token string) ([]Address, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "addresses require an authenticated user")
	}
	var out []Address
	if err := c.call(ctx, "fetch addresses", http.MethodGet, addressesPath, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePaymentIntent asks the backend for a payment intent handle.
func (c *Client) CreatePaymentIntent(ctx context.Context, token string, req CreateIntentRequest) (*PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent amount must be positive")
	}
	var out PaymentIntent
	if err := c.call(ctx, "create payment intent", http.MethodPost, createIntentPath, token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder records the order. The token is forwarded when present.
func (c *Client) CreateOrder(ctx context.Context, token string, req OrderRequest) (*Order, error) {
	var out struct {
		Order *Order `json:"order"`
	}
	if err := c.call(ctx, "create order", http.MethodPost, ordersPath, token, req, &out); err != nil {
		return nil, err
	}
	if out.Order == nil || strings.TrimSpace(out.Order.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "create order response missing order id")
	}
	return out.Order, nil
}
