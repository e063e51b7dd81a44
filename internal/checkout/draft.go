package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/nordstil-checkout/internal/address"
	"github.com/angelmondragon/nordstil-checkout/internal/cart"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
)

// BuildDraft turns the current form and cart into an order payload. Notes carry the
// shipping estimate and the payment reference for audit.
func BuildDraft(form Form, view *cart.View, paymentRef, shippingEstimate string) storefrontapi.OrderRequest {
	req := storefrontapi.OrderRequest{
		ShippingAddress: orderAddress(form.Shipping()),
		BillingAddress:  orderAddress(form.Billing()),
		PaymentMethod:   string(form.PaymentMethod),
		PaymentIntentID: paymentRef,
		Notes:           draftNotes(form.Notes, shippingEstimate, paymentRef),
	}
	if view == nil {
		return req
	}

	req.Items = make([]storefrontapi.OrderLine, 0, len(view.Items)+len(view.CustomItems))
	for _, item := range view.Items {
		req.Items = append(req.Items, storefrontapi.OrderLine{
			ProductID: item.ProductID,
			Kind:      "product",
			Name:      item.Name,
			Size:      item.Size,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	for _, item := range view.CustomItems {
		req.Items = append(req.Items, storefrontapi.OrderLine{
			CustomItemID:  item.ID.String(),
			Kind:          string(item.Kind),
			Name:          item.Name,
			Configuration: item.Configuration,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
		})
	}
	req.Subtotal = view.Totals.Subtotal
	req.ShippingCost = view.Totals.Shipping
	req.Tax = view.Totals.Tax
	req.Total = view.Totals.Total
	req.Currency = view.Totals.Currency
	return req
}

func orderAddress(a address.Fields) storefrontapi.OrderAddress {
	return storefrontapi.OrderAddress{
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Address:    a.Address,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func draftNotes(customer, estimate, paymentRef string) string {
	parts := make([]string, 0, 3)
	if customer = strings.TrimSpace(customer); customer != "" {
		parts = append(parts, customer)
	}
	if estimate = strings.TrimSpace(estimate); estimate != "" {
		parts = append(parts, fmt.Sprintf("Estimated shipping: %s", estimate))
	}
	if paymentRef != "" {
		parts = append(parts, fmt.Sprintf("Payment reference: %s", paymentRef))
	}
	return strings.Join(parts, "\n")
}
