package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/idempotency"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/pricing"
)

const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotentReplayed  = "Idempotent-Replayed"
	createOrderIdempotencyOp  = "order-create"
	defaultRequestTimeout     = 5 * time.Second
	maxRequestBodyBytes int64 = 1 << 20

	idempotencyInFlightMessage = "A request with this Idempotency-Key is still being processed"
)

type OrderService interface {
	Quote(ctx context.Context, lines []pricing.Line, opts pricing.Options) (pricing.Quote, error)
	CreateOrder(ctx context.Context, in order.CreateOrderInput) (*order.Order, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]order.Order, error)
	CancelOrder(ctx context.Context, orderID, userID int64) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) (*order.Order, error)
	Pay(ctx context.Context, in order.PayInput) (*order.PaymentResult, error)
}

type HandlerOptions struct {
	ServiceName    string
	RequestTimeout time.Duration
	// Nil disables Idempotency-Key handling.
	Idempotency idempotency.Store
	Logger      *slog.Logger
}

type Handler struct {
	svc     OrderService
	idem    idempotency.Store
	logger  *slog.Logger
	timeout time.Duration
	service string
}

func NewHandler(svc OrderService, opts HandlerOptions) *Handler {
	h := &Handler{
		svc:     svc,
		idem:    opts.Idempotency,
		logger:  opts.Logger,
		timeout: opts.RequestTimeout,
		service: opts.ServiceName,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.timeout <= 0 {
		h.timeout = defaultRequestTimeout
	}
	if h.service == "" {
		h.service = "food-order-service"
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
	})
}

func (h *Handler) CalculateTotal(w http.ResponseWriter, r *http.Request) {
	var req calculateTotalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q, err := h.svc.Quote(ctx, req.Items, pricing.Options{
		CouponCode:  req.CouponCode,
		TaxRate:     req.TaxRate,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCalculateTotalResponse(q))
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var storeKey string
	if key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)); key != "" && h.idem != nil {
		var done bool
		storeKey, done = h.claimIdempotencyKey(ctx, w, idempotency.Key(createOrderIdempotencyOp, req.UserID, key))
		if done {
			return
		}
	}

	o, err := h.svc.CreateOrder(ctx, order.CreateOrderInput{
		UserID:          req.UserID,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Items:           req.Items,
	})
	if err != nil {
		h.releaseIdempotencyKey(ctx, storeKey)
		h.writeServiceError(w, r, err)
		return
	}

	body, err := json.Marshal(singleOrderResponse{
		orderResponse:  toOrderResponse(o),
		statusResponse: statusResponse{Success: true, Message: "Order created successfully"},
	})
	if err != nil {
		h.releaseIdempotencyKey(ctx, storeKey)
		h.writeServiceError(w, r, err)
		return
	}

	if storeKey != "" {
		resp := idempotency.Response{Status: http.StatusCreated, Body: body}
		if err := h.idem.Save(context.WithoutCancel(ctx), storeKey, resp); err != nil {
			h.logger.WarnContext(ctx, "idempotency save failed", "order_id", o.ID, "err", err)
		}
	}

	writeRaw(w, http.StatusCreated, body)
}

// claimIdempotencyKey reserves storeKey for this request. When the key already
// holds a response it is replayed, and while another request holds the
// reservation the caller gets 409; done is true in both cases. If Redis is
// unreachable the request runs without a key.
func (h *Handler) claimIdempotencyKey(ctx context.Context, w http.ResponseWriter, storeKey string) (string, bool) {
	if h.replayStored(ctx, w, storeKey) {
		return "", true
	}

	ok, err := h.idem.Reserve(ctx, storeKey)
	if err != nil {
		h.logger.WarnContext(ctx, "idempotency reserve failed", "err", err)
		return "", false
	}
	if ok {
		return storeKey, false
	}

	// Lost the race to a concurrent request with the same key.
	if !h.replayStored(ctx, w, storeKey) {
		writeError(w, http.StatusConflict, "idempotency_conflict", idempotencyInFlightMessage)
	}
	return "", true
}

// replayStored writes the response stored under storeKey, or 409 when the key
// is reserved by a request still in flight. It reports whether it wrote.
func (h *Handler) replayStored(ctx context.Context, w http.ResponseWriter, storeKey string) bool {
	stored, err := h.idem.Get(ctx, storeKey)
	switch {
	case err == nil:
		w.Header().Set(HeaderIdempotentReplayed, "true")
		writeRaw(w, stored.Status, stored.Body)
		return true
	case errors.Is(err, idempotency.ErrInFlight):
		writeError(w, http.StatusConflict, "idempotency_conflict", idempotencyInFlightMessage)
		return true
	case !errors.Is(err, idempotency.ErrMiss):
		h.logger.WarnContext(ctx, "idempotency lookup failed", "err", err)
	}
	return false
}

func (h *Handler) releaseIdempotencyKey(ctx context.Context, storeKey string) {
	if storeKey == "" {
		return
	}
	if err := h.idem.Release(context.WithoutCancel(ctx), storeKey); err != nil {
		h.logger.WarnContext(ctx, "idempotency release failed", "err", err)
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.svc.GetOrder(ctx, orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, singleOrderResponse{
		orderResponse:  toOrderResponse(o),
		statusResponse: statusResponse{Success: true, Message: "Order retrieved"},
	})
}

func (h *Handler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.svc.ListOrders(ctx, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := listOrdersResponse{
		statusResponse: statusResponse{Success: true, Message: "Orders retrieved"},
		Orders:         make([]orderResponse, 0, len(orders)),
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req cancelOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.svc.CancelOrder(ctx, orderID, req.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, singleOrderResponse{
		orderResponse:  toOrderResponse(o),
		statusResponse: statusResponse{Success: true, Message: "Order cancelled"},
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.svc.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, singleOrderResponse{
		orderResponse:  toOrderResponse(o),
		statusResponse: statusResponse{Success: true, Message: "Order status updated"},
	})
}

func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Pay(ctx, order.PayInput{OrderID: orderID, UserID: req.UserID, PaymentMethod: req.PaymentMethod})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		statusResponse: statusResponse{Success: true, Message: "Payment processed"},
		Order:          toOrderResponse(res.Order),
		Receipt:        toReceiptResponse(res.Receipt),
	})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}
