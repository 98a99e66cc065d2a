package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/user"
)

var tracer = otel.Tracer("github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order")

type PaymentProcessor interface {
	Charge(ctx context.Context, c payment.Charge) (payment.Receipt, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
	PublishOrderStatusChanged(ctx context.Context, o *Order, previous Status) error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *Order) error { return nil }

func (NopPublisher) PublishOrderStatusChanged(context.Context, *Order, Status) error { return nil }

type PayInput struct {
	OrderID       int64
	UserID        int64
	PaymentMethod string
}

type PaymentResult struct {
	Order   *Order
	Receipt payment.Receipt
}

type Service struct {
	pool      db.Pool
	validator *Validator
	products  *catalog.PostgresRepository
	orders    Repository
	engine    *pricing.Engine
	payments  PaymentProcessor
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(pool db.Pool, payments PaymentProcessor, publisher EventPublisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		pool:      pool,
		validator: NewValidator(user.NewPostgresRepository(pool)),
		products:  catalog.NewPostgresRepository(pool),
		orders:    NewPostgresRepository(pool),
		engine:    pricing.NewEngine(),
		payments:  payments,
		publisher: publisher,
		logger:    logger,
	}
}

// Quote prices a cart without writing anything. Unknown or unavailable
// products and unknown coupons degrade the quote; only a storage failure
// while reading the catalog is an error.
func (s *Service) Quote(ctx context.Context, lines []pricing.Line, opts pricing.Options) (pricing.Quote, error) {
	ctx, span := tracer.Start(ctx, "order.Quote", trace.WithAttributes(attribute.Int("cart.lines", len(lines))))
	defer span.End()

	entries, err := catalog.ResolveTolerant(ctx, s.products, distinctProductIDs(lines))
	if err != nil {
		return pricing.Quote{}, s.fail(span, persistErr("resolve catalog", err))
	}
	return s.engine.Price(lines, entries, opts), nil
}

// CreateOrder validates the cart, prices it from the catalog and writes the
// order with its items in one read-committed transaction. Totals are the
// plain sum of line totals. Events are published after commit and a publish
// failure does not fail the call.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.CreateOrder", trace.WithAttributes(attribute.Int64("user.id", in.UserID)))
	defer span.End()

	if err := s.validator.Validate(ctx, in); err != nil {
		return nil, s.fail(span, err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, s.fail(span, persistErr("begin tx", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entries, err := catalog.ResolveStrict(ctx, s.products.WithQuerier(tx), in.ProductIDs())
	if err != nil {
		if !errors.Is(err, catalog.ErrProductUnavailable) {
			err = persistErr("resolve catalog", err)
		}
		return nil, s.fail(span, err)
	}

	o := &Order{
		UserID:          in.UserID,
		Status:          StatusPending,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		Items:           make([]Item, 0, len(in.Items)),
	}
	priced := make([]pricing.PricedLine, 0, len(in.Items))
	for _, line := range in.Items {
		entry := entries[line.ProductID]
		pl := pricing.PriceLine(line, &entry)
		priced = append(priced, pl)
		o.Items = append(o.Items, Item{
			ProductID:   pl.ProductID,
			ProductName: pl.ProductName,
			Quantity:    pl.Quantity,
			UnitPrice:   pl.UnitPrice,
			TotalPrice:  pl.LineTotal,
		})
	}
	o.TotalAmount = pricing.Sum(priced)

	if err := s.orders.CreateWithTx(ctx, tx, o); err != nil {
		return nil, s.fail(span, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.fail(span, persistErr("commit", err))
	}

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.logger.InfoContext(ctx, "order created",
		"order_id", o.ID,
		"user_id", o.UserID,
		"items", len(o.Items),
		"total_amount", o.TotalAmount.StringFixed(2),
	)

	s.publish(ctx, "OrderCreated", o.ID, func(ctx context.Context) error {
		return s.publisher.PublishOrderCreated(ctx, o)
	})
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// CancelOrder moves an order to Cancelled. Only the owning user may cancel
// and terminal orders stay as they are.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID int64) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.CancelOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	o, prev, err := s.orders.Transition(ctx, orderID, func(o Order) (Status, error) {
		if o.UserID != userID {
			return "", ErrUnauthorized
		}
		if o.Status.IsTerminal() {
			return "", fmt.Errorf("%w: status is %s", ErrOrderNotCancellable, o.Status)
		}
		return StatusCancelled, nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.InfoContext(ctx, "order cancelled", "order_id", o.ID, "user_id", userID, "previous_status", prev)
	s.publishStatusChange(ctx, o, prev)
	return o, nil
}

// UpdateStatus stores any non-blank status. Known statuses are matched
// case-insensitively; anything else is kept verbatim.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	next := ParseStatus(status)
	if next == "" {
		return nil, s.fail(span, &ValidationError{Err: ErrInvalidStatus, Field: "status", Detail: "status is required"})
	}

	o, prev, err := s.orders.Transition(ctx, orderID, func(Order) (Status, error) {
		return next, nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.InfoContext(ctx, "order status updated", "order_id", o.ID, "from", prev, "to", o.Status)
	s.publishStatusChange(ctx, o, prev)
	return o, nil
}

// Pay charges a pending order through the payment provider and confirms it.
// The charge runs while the order row is locked so a second payment for the
// same order waits and then fails the Pending check.
func (s *Service) Pay(ctx context.Context, in PayInput) (*PaymentResult, error) {
	ctx, span := tracer.Start(ctx, "order.Pay", trace.WithAttributes(attribute.Int64("order.id", in.OrderID)))
	defer span.End()

	var receipt payment.Receipt
	o, prev, err := s.orders.Transition(ctx, in.OrderID, func(o Order) (Status, error) {
		if o.UserID != in.UserID {
			return "", ErrUnauthorized
		}
		if o.Status != StatusPending {
			return "", fmt.Errorf("%w: status is %s", ErrOrderNotPayable, o.Status)
		}
		method := strings.TrimSpace(in.PaymentMethod)
		if method == "" {
			method = o.PaymentMethod
		}
		r, err := s.payments.Charge(ctx, payment.Charge{OrderID: o.ID, Amount: o.TotalAmount, Method: method})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return "", fmt.Errorf("charge order %d: %w", o.ID, err)
			}
			return "", fmt.Errorf("%w: %w", ErrPaymentRejected, err)
		}
		receipt = r
		return StatusConfirmed, nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.InfoContext(ctx, "order paid", "order_id", o.ID, "receipt_id", receipt.ReceiptID, "method", receipt.Method)
	s.publishStatusChange(ctx, o, prev)
	return &PaymentResult{Order: o, Receipt: receipt}, nil
}

func (s *Service) publishStatusChange(ctx context.Context, o *Order, prev Status) {
	s.publish(ctx, "OrderStatusChanged", o.ID, func(ctx context.Context) error {
		return s.publisher.PublishOrderStatusChanged(ctx, o, prev)
	})
}

// publish runs fn detached from the request's cancellation; the order is
// already committed so a failure is only logged.
func (s *Service) publish(ctx context.Context, event string, orderID int64, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "publish event failed", "event", event, "order_id", orderID, "err", err)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
