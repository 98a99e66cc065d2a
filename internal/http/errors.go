package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order"
)

// writeServiceError maps domain errors onto status codes. Storage and other
// unexpected failures are logged with their cause and answered with a
// generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *order.ValidationError
		ue *catalog.UnavailableError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, order.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "User not found")
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Order not found")
	case errors.As(err, &ue):
		writeError(w, http.StatusConflict, "product_unavailable", ue.Error())
	case errors.Is(err, order.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", "You are not allowed to modify this order")
	case errors.Is(err, order.ErrOrderNotCancellable), errors.Is(err, order.ErrOrderNotPayable):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.ErrorContext(r.Context(), "request timed out", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusGatewayTimeout, "timeout", "The request timed out, please retry")
	case errors.Is(err, order.ErrPaymentRejected):
		writeError(w, http.StatusPaymentRequired, "payment_rejected", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong while processing the order")
	}
}
