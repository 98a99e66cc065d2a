package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/pricing"
)

type Item struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type Order struct {
	ID              int64           `json:"orderId"`
	UserID          int64           `json:"userId"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DeliveryAddress string          `json:"deliveryAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	OrderDate       time.Time       `json:"orderDate"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []Item          `json:"items"`
}

type CreateOrderInput struct {
	UserID          int64
	DeliveryAddress string
	PaymentMethod   string
	Items           []pricing.Line
}

// ProductIDs returns the distinct product ids of the cart in first-seen order.
func (in CreateOrderInput) ProductIDs() []int64 {
	return distinctProductIDs(in.Items)
}

func distinctProductIDs(lines []pricing.Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	out := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l.ProductID)
	}
	return out
}
