package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order"
)

const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderStatusChanged = "OrderStatusChanged"

	orderCreatedSchema       = "contracts/events/order/OrderCreated.v1.payload.schema.json"
	orderStatusChangedSchema = "contracts/events/order/OrderStatusChanged.v1.payload.schema.json"
)

type OrderCreatedItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type OrderCreatedPayload struct {
	OrderID         int64              `json:"orderId"`
	UserID          int64              `json:"userId"`
	Status          string             `json:"status"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	DeliveryAddress string             `json:"deliveryAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	Items           []OrderCreatedItem `json:"items"`
	OrderDate       time.Time          `json:"orderDate"`
}

type OrderStatusChangedPayload struct {
	OrderID        int64     `json:"orderId"`
	UserID         int64     `json:"userId"`
	PreviousStatus string    `json:"previousStatus"`
	Status         string    `json:"status"`
	ChangedAt      time.Time `json:"changedAt"`
}

func orderPartitionKey(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

func newOrderCreatedPayload(o *order.Order) OrderCreatedPayload {
	p := OrderCreatedPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		Items:           make([]OrderCreatedItem, 0, len(o.Items)),
		OrderDate:       o.OrderDate.UTC(),
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, OrderCreatedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return p
}

func newOrderStatusChangedPayload(o *order.Order, previous order.Status) OrderStatusChangedPayload {
	return OrderStatusChangedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		PreviousStatus: string(previous),
		Status:         string(o.Status),
		ChangedAt:      o.UpdatedAt.UTC(),
	}
}

func newEnvelope[T any](name, schema string, meta EnvelopeMetadata, partitionKey string, seq int64, producer string, payload T, occurredAt time.Time) Envelope[T] {
	return Envelope[T]{
		EventName:     name,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		Producer:      producer,
		PartitionKey:  partitionKey,
		Sequence:      &seq,
		OccurredAt:    occurredAt,
		Schema:        schema,
		Payload:       payload,
	}
}
