package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"

	// Default name postgres gives the inline UNIQUE on orders.cart_id.
	cartIDConstraint = "orders_cart_id_key"
)

// isDuplicateCart reports whether err is a unique violation on the cart_id
// index specifically. The table also has a unique order_number; a collision
// there is a different failure and must not masquerade as a duplicate cart.
func isDuplicateCart(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == cartIDConstraint
}

// Conf is the postgres-backed order store. Concurrent submit/cancel attempts
// are serialized per order through status compare-and-swap updates: a
// transition only lands when the row is still in the state the caller
// observed.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Insert creates the order row. The unique index on cart_id is the backstop
// idempotency guard: a duplicate insert for the same cart reports
// ErrOrderAlreadyExists instead of creating a second order.
func (c *Conf) Insert(ctx context.Context, o Order) error {
	query := `
		INSERT INTO orders
			(id, order_number, user_id, cart_id, status, total_amount, payment_method, shipping_address, gift_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`
	_, err := c.db.ExecContext(ctx, query,
		o.ID, o.OrderNumber, o.UserID, o.CartID, o.Status, o.TotalAmount,
		o.PaymentMethod, o.ShippingAddress, o.GiftMessage)
	if err != nil {
		if isDuplicateCart(err) {
			return ErrOrderAlreadyExists
		}
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// ByCartID looks an order up by its source cart: the idempotency check for
// duplicate checkout event delivery.
func (c *Conf) ByCartID(ctx context.Context, cartID string) (Order, error) {
	return c.scanOne(ctx, `WHERE cart_id = $1`, cartID)
}

func (c *Conf) ByID(ctx context.Context, orderID string) (Order, error) {
	return c.scanOne(ctx, `WHERE id = $1`, orderID)
}

// ByIDAndUser scopes the lookup to the owning user so callers can only act
// on their own orders.
func (c *Conf) ByIDAndUser(ctx context.Context, orderID, userID string) (Order, error) {
	return c.scanOne(ctx, `WHERE id = $1 AND user_id = $2`, orderID, userID)
}

// UpdateStatus performs the compare-and-swap transition from -> to. It
// returns false when the row was no longer in the expected state, meaning a
// concurrent transition won.
func (c *Conf) UpdateStatus(ctx context.Context, orderID string, from, to Status) (bool, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := c.db.ExecContext(ctx, query, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("updating order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting updated rows: %w", err)
	}
	return n == 1, nil
}

// MarkSubmitted flips PENDING -> SUBMITTED and records the payment details
// in the same compare-and-swap.
func (c *Conf) MarkSubmitted(ctx context.Context, orderID, paymentMethod, address, giftMessage string) (bool, error) {
	query := `
		UPDATE orders
		SET status = $2, payment_method = $3, shipping_address = $4, gift_message = $5, updated_at = now()
		WHERE id = $1 AND status = $6
	`
	res, err := c.db.ExecContext(ctx, query, orderID, StatusSubmitted, paymentMethod, address, giftMessage, StatusPending)
	if err != nil {
		return false, fmt.Errorf("marking order submitted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting updated rows: %w", err)
	}
	return n == 1, nil
}

// MarkDelivered flips SHIPPED -> DELIVERED and stamps delivered_at.
func (c *Conf) MarkDelivered(ctx context.Context, orderID string) (bool, error) {
	query := `
		UPDATE orders
		SET status = $2, delivered_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`
	res, err := c.db.ExecContext(ctx, query, orderID, StatusDelivered, StatusShipped)
	if err != nil {
		return false, fmt.Errorf("marking order delivered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting updated rows: %w", err)
	}
	return n == 1, nil
}

// ListByUser returns one page of the user's orders, newest first, with the
// total row count for pagination metadata.
func (c *Conf) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting user orders: %w", err)
	}
	list, err := c.scanPage(ctx, `WHERE user_id = $1`, []any{userID}, limit, offset)
	return list, total, err
}

// ListByStatus returns one page of orders in the given status, newest first.
func (c *Conf) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders by status: %w", err)
	}
	list, err := c.scanPage(ctx, `WHERE status = $1`, []any{status}, limit, offset)
	return list, total, err
}

// ListAll returns one page across all users, newest first.
func (c *Conf) ListAll(ctx context.Context, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	list, err := c.scanPage(ctx, ``, nil, limit, offset)
	return list, total, err
}

const orderColumns = `id, order_number, user_id, cart_id, status, total_amount,
	payment_method, shipping_address, COALESCE(gift_message, ''), delivered_at, created_at, updated_at`

func (c *Conf) scanOne(ctx context.Context, where string, args ...any) (Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders %s`, orderColumns, where)
	var o Order
	err := c.db.QueryRowContext(ctx, query, args...).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.CartID, &o.Status, &o.TotalAmount,
		&o.PaymentMethod, &o.ShippingAddress, &o.GiftMessage, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("querying order: %w", err)
	}
	return o, nil
}

func (c *Conf) scanPage(ctx context.Context, where string, args []any, limit, offset int) ([]Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		orderColumns, where, limit, offset)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders page: %w", err)
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.UserID, &o.CartID, &o.Status, &o.TotalAmount,
			&o.PaymentMethod, &o.ShippingAddress, &o.GiftMessage, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return list, nil
}
