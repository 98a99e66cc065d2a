package order

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const MaxLineQuantity = 100

type UserChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Validator struct {
	users UserChecker
}

func NewValidator(users UserChecker) *Validator {
	return &Validator{users: users}
}

// Validate checks an order request. Rules run in a fixed order and the first
// failure is returned; the only I/O is the user existence lookup.
func (v *Validator) Validate(ctx context.Context, in CreateOrderInput) error {
	if in.UserID <= 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, in.UserID)
	}
	ok, err := v.users.Exists(ctx, in.UserID)
	if err != nil {
		return persistErr("check user", err)
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, in.UserID)
	}

	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return &ValidationError{Err: ErrMissingField, Field: "deliveryAddress", Detail: "deliveryAddress is required"}
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return &ValidationError{Err: ErrMissingField, Field: "paymentMethod", Detail: "paymentMethod is required"}
	}

	if len(in.Items) == 0 {
		return &ValidationError{Err: ErrEmptyCart, Field: "items"}
	}

	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return &ValidationError{
				Err:        ErrInvalidLine,
				Field:      "productId",
				ProductIDs: []int64{it.ProductID},
				Detail:     fmt.Sprintf("invalid product id %d: must be greater than 0", it.ProductID),
			}
		}
		if it.Quantity <= 0 || it.Quantity > MaxLineQuantity {
			return &ValidationError{
				Err:        ErrInvalidLine,
				Field:      "quantity",
				ProductIDs: []int64{it.ProductID},
				Detail:     fmt.Sprintf("product %d: quantity must be between 1 and %d", it.ProductID, MaxLineQuantity),
			}
		}
	}

	if dups := duplicateProductIDs(in); len(dups) > 0 {
		return &ValidationError{
			Err:        ErrDuplicateProduct,
			Field:      "items",
			ProductIDs: dups,
			Detail:     fmt.Sprintf("duplicate product ids: %s", joinIDs(dups)),
		}
	}

	return nil
}

func duplicateProductIDs(in CreateOrderInput) []int64 {
	counts := make(map[int64]int, len(in.Items))
	for _, it := range in.Items {
		counts[it.ProductID]++
	}
	var dups []int64
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	slices.Sort(dups)
	return dups
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
