package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/pricing"
)

var (
	productCols = []string{"id", "name", "description", "price", "image_url", "category_id", "is_available", "created_at"}
	orderCols   = []string{"id", "user_id", "status", "total_amount", "delivery_address", "payment_method", "order_date", "updated_at"}
	fixedTime   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// decimalArg matches a decimal.Decimal argument by value rather than by
// internal representation.
type decimalArg string

func (a decimalArg) Match(v any) bool {
	d, ok := v.(decimal.Decimal)
	return ok && d.Equal(decimal.RequireFromString(string(a)))
}

type recordingPublisher struct {
	created []*Order
	changed []Status
	err     error
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, o *Order) error {
	p.created = append(p.created, o)
	return p.err
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, o *Order, previous Status) error {
	p.changed = append(p.changed, previous)
	return p.err
}

func newTestService(t *testing.T) (*Service, pgxmock.PgxPoolIface, *recordingPublisher) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	pub := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(mock, payment.NewSimulator([]string{"cash", "credit_card"}), pub, logger)
	return svc, mock, pub
}

func product(id int64, name, price string, available bool) []any {
	return []any{id, name, "", decimal.RequireFromString(price), "", nil, available, fixedTime}
}

func expectUserExists(mock pgxmock.PgxPoolIface, id int64, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`)).
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(exists))
}

func orderInput() CreateOrderInput {
	return CreateOrderInput{
		UserID:          1,
		DeliveryAddress: " 12 Harbour Street ",
		PaymentMethod:   "cash",
		Items:           []pricing.Line{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
	}
}

func TestCreateOrder_UsesCatalogPricesAndCommits(t *testing.T) {
	svc, mock, pub := newTestService(t)

	expectUserExists(mock, 1, true)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = ANY($1)`)).
		WithArgs([]int64{1, 2}).
		WillReturnRows(mock.NewRows(productCols).
			AddRow(product(1, "Margherita", "10.00", true)...).
			AddRow(product(2, "Tiramisu", "6.50", true)...))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs(int64(1), "Pending", decimalArg("26.50"), "12 Harbour Street", "cash").
		WillReturnRows(mock.NewRows([]string{"id", "order_date", "updated_at"}).AddRow(int64(42), fixedTime, fixedTime))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO order_items`)).
		WithArgs(int64(42), int64(1), 2, decimalArg("10.00"), decimalArg("20.00")).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO order_items`)).
		WithArgs(int64(42), int64(2), 1, decimalArg("6.50"), decimalArg("6.50")).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(101)))
	mock.ExpectCommit()

	o, err := svc.CreateOrder(context.Background(), orderInput())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, int64(42), o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, fixedTime, o.OrderDate)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("26.50")))
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Margherita", o.Items[0].ProductName)
	assert.Equal(t, int64(100), o.Items[0].ID)
	assert.Equal(t, int64(42), o.Items[1].OrderID)

	require.Len(t, pub.created, 1)
	assert.Same(t, o, pub.created[0])
}

func TestCreateOrder_PublishFailureDoesNotFailTheOrder(t *testing.T) {
	svc, mock, pub := newTestService(t)
	pub.err = errors.New("broker down")

	expectUserExists(mock, 1, true)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM products`).
		WithArgs([]int64{1}).
		WillReturnRows(mock.NewRows(productCols).AddRow(product(1, "Margherita", "10.00", true)...))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(1), "Pending", decimalArg("10"), "12 Harbour Street", "cash").
		WillReturnRows(mock.NewRows([]string{"id", "order_date", "updated_at"}).AddRow(int64(7), fixedTime, fixedTime))
	mock.ExpectQuery(`INSERT INTO order_items`).
		WithArgs(int64(7), int64(1), 1, decimalArg("10"), decimalArg("10")).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	in := orderInput()
	in.Items = []pricing.Line{{ProductID: 1, Quantity: 1}}
	o, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(7), o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_DuplicateProductWritesNothing(t *testing.T) {
	svc, mock, pub := newTestService(t)

	expectUserExists(mock, 1, true)

	in := orderInput()
	in.Items = append(in.Items, pricing.Line{ProductID: 1, Quantity: 5})

	_, err := svc.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrDuplicateProduct)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, pub.created)
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	svc, mock, _ := newTestService(t)

	expectUserExists(mock, 1, false)

	_, err := svc.CreateOrder(context.Background(), orderInput())
	require.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_UnavailableProductRollsBack(t *testing.T) {
	svc, mock, pub := newTestService(t)

	expectUserExists(mock, 1, true)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM products`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(mock.NewRows(productCols).
			AddRow(product(1, "Margherita", "10.00", true)...).
			AddRow(product(2, "Tiramisu", "6.50", false)...))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), orderInput())
	require.ErrorIs(t, err, catalog.ErrProductUnavailable)

	var ue *catalog.UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, int64(2), ue.ProductID)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, pub.created)
}

func TestCreateOrder_MissingProductRollsBack(t *testing.T) {
	svc, mock, _ := newTestService(t)

	expectUserExists(mock, 1, true)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM products`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(mock.NewRows(productCols).AddRow(product(1, "Margherita", "10.00", true)...))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), orderInput())
	require.ErrorIs(t, err, catalog.ErrProductUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_ItemInsertFailureRollsBack(t *testing.T) {
	svc, mock, pub := newTestService(t)
	boom := errors.New("foreign key violation")

	expectUserExists(mock, 1, true)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM products`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(mock.NewRows(productCols).
			AddRow(product(1, "Margherita", "10.00", true)...).
			AddRow(product(2, "Tiramisu", "6.50", true)...))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(1), "Pending", decimalArg("26.50"), "12 Harbour Street", "cash").
		WillReturnRows(mock.NewRows([]string{"id", "order_date", "updated_at"}).AddRow(int64(42), fixedTime, fixedTime))
	mock.ExpectQuery(`INSERT INTO order_items`).
		WithArgs(int64(42), int64(1), 2, decimalArg("10.00"), decimalArg("20.00")).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), orderInput())
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, boom)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "insert order_item", pe.Op)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, pub.created)
}

func TestCreateOrder_BeginFailure(t *testing.T) {
	svc, mock, _ := newTestService(t)

	expectUserExists(mock, 1, true)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(errors.New("too many connections"))

	_, err := svc.CreateOrder(context.Background(), orderInput())
	require.ErrorIs(t, err, ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuote_TolerantLookup(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`FROM products`).
		WithArgs([]int64{1, 3, 99}).
		WillReturnRows(mock.NewRows(productCols).
			AddRow(product(1, "Margherita", "10.00", true)...).
			AddRow(product(3, "Seasonal Soup", "4.25", false)...))

	lines := []pricing.Line{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}, {ProductID: 99, Quantity: 1}}
	q, err := svc.Quote(context.Background(), lines, pricing.Options{CouponCode: "SAVE10"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, q.Lines, 3)
	assert.True(t, q.Lines[0].IsAvailable)
	assert.False(t, q.Lines[1].IsAvailable)
	assert.False(t, q.Lines[2].IsAvailable)
	assert.True(t, q.SubTotal.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, q.GrandTotal.Equal(decimal.RequireFromString("25.59")))
}

func TestQuote_StorageFailure(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`FROM products`).WithArgs([]int64{1}).WillReturnError(errors.New("db down"))

	_, err := svc.Quote(context.Background(), []pricing.Line{{ProductID: 1, Quantity: 1}}, pricing.Options{})
	require.ErrorIs(t, err, ErrPersistence)
}

func expectLockOrder(mock pgxmock.PgxPoolIface, id, userID int64, status Status, total string) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 FOR UPDATE`)).
		WithArgs(id).
		WillReturnRows(mock.NewRows(orderCols).
			AddRow(id, userID, string(status), decimal.RequireFromString(total), "12 Harbour Street", "cash", fixedTime, fixedTime))
}

func expectStatusUpdate(mock pgxmock.PgxPoolIface, id int64, status Status) {
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE orders SET status = $2`)).
		WithArgs(id, string(status)).
		WillReturnRows(mock.NewRows([]string{"updated_at"}).AddRow(fixedTime.Add(time.Minute)))
	mock.ExpectCommit()
}

func TestCancelOrder(t *testing.T) {
	svc, mock, pub := newTestService(t)

	expectLockOrder(mock, 5, 1, StatusPending, "26.50")
	expectStatusUpdate(mock, 5, StatusCancelled)

	o, err := svc.CancelOrder(context.Background(), 5, 1)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, fixedTime.Add(time.Minute), o.UpdatedAt)
	assert.Equal(t, []Status{StatusPending}, pub.changed)
}

func TestCancelOrder_NotOwner(t *testing.T) {
	svc, mock, pub := newTestService(t)

	expectLockOrder(mock, 5, 1, StatusPending, "26.50")
	mock.ExpectRollback()

	_, err := svc.CancelOrder(context.Background(), 5, 2)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, pub.changed)
}

func TestCancelOrder_Terminal(t *testing.T) {
	for _, st := range []Status{StatusCancelled, StatusDelivered} {
		t.Run(string(st), func(t *testing.T) {
			svc, mock, _ := newTestService(t)

			expectLockOrder(mock, 5, 1, st, "26.50")
			mock.ExpectRollback()

			_, err := svc.CancelOrder(context.Background(), 5, 1)
			require.ErrorIs(t, err, ErrOrderNotCancellable)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(404)).WillReturnRows(mock.NewRows(orderCols))
	mock.ExpectRollback()

	_, err := svc.CancelOrder(context.Background(), 404, 1)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{in: "preparing", want: StatusPreparing},
		{in: " OutForDelivery ", want: StatusOutForDelivery},
		{in: "AwaitingCourier", want: Status("AwaitingCourier")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			svc, mock, pub := newTestService(t)

			expectLockOrder(mock, 5, 1, StatusConfirmed, "26.50")
			expectStatusUpdate(mock, 5, tt.want)

			o, err := svc.UpdateStatus(context.Background(), 5, tt.in)
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
			assert.Equal(t, tt.want, o.Status)
			assert.Equal(t, []Status{StatusConfirmed}, pub.changed)
		})
	}
}

func TestUpdateStatus_Blank(t *testing.T) {
	svc, mock, _ := newTestService(t)

	_, err := svc.UpdateStatus(context.Background(), 5, "  ")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPay(t *testing.T) {
	svc, mock, pub := newTestService(t)

	expectLockOrder(mock, 5, 1, StatusPending, "26.50")
	expectStatusUpdate(mock, 5, StatusConfirmed)

	res, err := svc.Pay(context.Background(), PayInput{OrderID: 5, UserID: 1, PaymentMethod: "Credit Card"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StatusConfirmed, res.Order.Status)
	assert.Equal(t, int64(5), res.Receipt.OrderID)
	assert.Equal(t, "credit_card", res.Receipt.Method)
	assert.True(t, res.Receipt.Amount.Equal(decimal.RequireFromString("26.50")))
	assert.Equal(t, []Status{StatusPending}, pub.changed)
}

func TestPay_FallsBackToOrderPaymentMethod(t *testing.T) {
	svc, mock, _ := newTestService(t)

	expectLockOrder(mock, 5, 1, StatusPending, "10.00")
	expectStatusUpdate(mock, 5, StatusConfirmed)

	res, err := svc.Pay(context.Background(), PayInput{OrderID: 5, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "cash", res.Receipt.Method)
}

type chargeFunc func(ctx context.Context, c payment.Charge) (payment.Receipt, error)

func (f chargeFunc) Charge(ctx context.Context, c payment.Charge) (payment.Receipt, error) {
	return f(ctx, c)
}

func TestPay_ChargeTimeoutIsNotRejection(t *testing.T) {
	svc, mock, pub := newTestService(t)
	svc.payments = chargeFunc(func(ctx context.Context, c payment.Charge) (payment.Receipt, error) {
		return payment.Receipt{}, context.DeadlineExceeded
	})

	expectLockOrder(mock, 5, 1, StatusPending, "26.50")
	mock.ExpectRollback()

	_, err := svc.Pay(context.Background(), PayInput{OrderID: 5, UserID: 1, PaymentMethod: "cash"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrPaymentRejected)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, pub.changed)
}

func TestPay_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		userID  int64
		method  string
		wantErr error
	}{
		{name: "not owner", status: StatusPending, userID: 2, method: "cash", wantErr: ErrUnauthorized},
		{name: "already confirmed", status: StatusConfirmed, userID: 1, method: "cash", wantErr: ErrOrderNotPayable},
		{name: "unsupported method", status: StatusPending, userID: 1, method: "bitcoin", wantErr: ErrPaymentRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, pub := newTestService(t)

			expectLockOrder(mock, 5, 1, tt.status, "26.50")
			mock.ExpectRollback()

			_, err := svc.Pay(context.Background(), PayInput{OrderID: 5, UserID: tt.userID, PaymentMethod: tt.method})
			require.ErrorIs(t, err, tt.wantErr)
			require.NoError(t, mock.ExpectationsWereMet())
			assert.Empty(t, pub.changed)
		})
	}
}
