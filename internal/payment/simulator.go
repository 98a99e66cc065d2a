// Package payment simulates a payment provider. Any method on the allow-list
// is accepted and charged immediately; nothing leaves the process.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMethodNotSupported = errors.New("payment method not supported")
	ErrInvalidAmount      = errors.New("payment amount must be positive")
)

type Charge struct {
	OrderID int64
	Amount  decimal.Decimal
	Method  string
}

type Receipt struct {
	ReceiptID      string          `json:"receiptId"`
	OrderID        int64           `json:"orderId"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"paymentMethod"`
	TransactionRef string          `json:"transactionRef"`
	PaidAt         time.Time       `json:"paidAt"`
}

type Simulator struct {
	methods map[string]struct{}
	now     func() time.Time
}

func NewSimulator(methods []string) *Simulator {
	s := &Simulator{methods: make(map[string]struct{}, len(methods)), now: time.Now}
	for _, m := range methods {
		if m = normalizeMethod(m); m != "" {
			s.methods[m] = struct{}{}
		}
	}
	return s
}

func (s *Simulator) Supports(method string) bool {
	_, ok := s.methods[normalizeMethod(method)]
	return ok
}

func (s *Simulator) Charge(ctx context.Context, c Charge) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if !s.Supports(c.Method) {
		return Receipt{}, fmt.Errorf("%w: %q", ErrMethodNotSupported, c.Method)
	}
	if !c.Amount.IsPositive() {
		return Receipt{}, ErrInvalidAmount
	}

	id := uuid.New()
	return Receipt{
		ReceiptID:      id.String(),
		OrderID:        c.OrderID,
		Amount:         c.Amount.Round(2),
		Method:         normalizeMethod(c.Method),
		TransactionRef: "SIM-" + strings.ToUpper(id.String()[:8]),
		PaidAt:         s.now().UTC(),
	}, nil
}

// normalizeMethod maps "Credit Card", "credit-card" and "CREDIT_CARD" to the
// same key.
func normalizeMethod(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(m)
}
