package paypal

import (
	"strconv"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SKU         string `json:"sku,omitempty"`
	Quantity    string `json:"quantity"`
	Category    string `json:"category"`
	UnitAmount  Money  `json:"unit_amount"`
}

type Breakdown struct {
	ItemTotal Money `json:"item_total"`
}

type Amount struct {
	Money
	Breakdown Breakdown `json:"breakdown"`
}

type PurchaseUnit struct {
	Amount Amount `json:"amount"`
	Items  []Item `json:"items"`
}

type OrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// NewOrderRequest builds one provider line per cart entry. Each unit price is
// rounded to cents before it is multiplied and summed, and the same rounded
// values feed both the items and the breakdown item_total, so the two always
// agree. The declared grand total is taken from the caller unchanged.
func NewOrderRequest(items []models.CheckoutItem, total decimal.Decimal, currency string) OrderRequest {
	lines := make([]Item, 0, len(items))
	itemTotal := decimal.Zero

	for _, it := range items {
		unit := it.Price.Round(2)
		itemTotal = itemTotal.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))

		lines = append(lines, Item{
			Name:        it.Name,
			Description: it.Description,
			SKU:         it.ID,
			Quantity:    strconv.Itoa(it.Quantity),
			Category:    "PHYSICAL_GOODS",
			UnitAmount:  Money{CurrencyCode: currency, Value: unit.StringFixed(2)},
		})
	}

	return OrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{{
			Amount: Amount{
				Money: Money{CurrencyCode: currency, Value: total.StringFixed(2)},
				Breakdown: Breakdown{
					ItemTotal: Money{CurrencyCode: currency, Value: itemTotal.StringFixed(2)},
				},
			},
			Items: lines,
		}},
	}
}
