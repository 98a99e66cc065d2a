package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/pricing"
)

// Any price a client sends with a line is ignored; unknown JSON fields are
// dropped by the decoder and lines carry only product and quantity.
type createOrderRequest struct {
	UserID          int64          `json:"userId"`
	DeliveryAddress string         `json:"deliveryAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	Items           []pricing.Line `json:"items"`
}

type calculateTotalRequest struct {
	Items       []pricing.Line   `json:"items"`
	CouponCode  string           `json:"couponCode,omitempty"`
	TaxRate     *decimal.Decimal `json:"taxRate,omitempty"`
	DeliveryFee *decimal.Decimal `json:"deliveryFee,omitempty"`
}

type cancelOrderRequest struct {
	UserID int64 `json:"userId"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type paymentRequest struct {
	UserID        int64  `json:"userId"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

type orderItemResponse struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
}

type orderResponse struct {
	OrderID         int64               `json:"orderId"`
	UserID          int64               `json:"userId"`
	Status          string              `json:"status"`
	TotalAmount     float64             `json:"totalAmount"`
	OrderDate       time.Time           `json:"orderDate"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	DeliveryAddress string              `json:"deliveryAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	Items           []orderItemResponse `json:"items"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type singleOrderResponse struct {
	orderResponse
	statusResponse
}

type listOrdersResponse struct {
	statusResponse
	Orders []orderResponse `json:"orders"`
}

type quoteLineResponse struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	IsAvailable bool    `json:"isAvailable"`
}

type calculateTotalResponse struct {
	Items          []quoteLineResponse `json:"items"`
	SubTotal       float64             `json:"subTotal"`
	TaxAmount      float64             `json:"taxAmount"`
	DeliveryFee    float64             `json:"deliveryFee"`
	DiscountAmount float64             `json:"discountAmount"`
	GrandTotal     float64             `json:"grandTotal"`
	CouponApplied  bool                `json:"couponApplied"`
	statusResponse
}

type receiptResponse struct {
	ReceiptID      string    `json:"receiptId"`
	OrderID        int64     `json:"orderId"`
	Amount         float64   `json:"amount"`
	PaymentMethod  string    `json:"paymentMethod"`
	TransactionRef string    `json:"transactionRef"`
	PaidAt         time.Time `json:"paidAt"`
}

type paymentResponse struct {
	statusResponse
	Order   orderResponse   `json:"order"`
	Receipt receiptResponse `json:"receipt"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		OrderID:         o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     money(o.TotalAmount),
		OrderDate:       o.OrderDate,
		UpdatedAt:       o.UpdatedAt,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		Items:           make([]orderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
			TotalPrice:  money(it.TotalPrice),
		})
	}
	return resp
}

func toCalculateTotalResponse(q pricing.Quote) calculateTotalResponse {
	resp := calculateTotalResponse{
		Items:          make([]quoteLineResponse, 0, len(q.Lines)),
		SubTotal:       money(q.SubTotal),
		TaxAmount:      money(q.TaxAmount),
		DeliveryFee:    money(q.DeliveryFee),
		DiscountAmount: money(q.DiscountAmount),
		GrandTotal:     money(q.GrandTotal),
		CouponApplied:  q.CouponApplied,
		statusResponse: statusResponse{Success: true, Message: "Total calculated"},
	}
	for _, l := range q.Lines {
		resp.Items = append(resp.Items, quoteLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   money(l.UnitPrice),
			TotalPrice:  money(l.LineTotal),
			IsAvailable: l.IsAvailable,
		})
	}
	return resp
}

func toReceiptResponse(r payment.Receipt) receiptResponse {
	return receiptResponse{
		ReceiptID:      r.ReceiptID,
		OrderID:        r.OrderID,
		Amount:         money(r.Amount),
		PaymentMethod:  r.Method,
		TransactionRef: r.TransactionRef,
		PaidAt:         r.PaidAt,
	}
}
