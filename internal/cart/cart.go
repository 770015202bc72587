package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Conf is the postgres-backed cart store.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// AddItem adds a product to the user's active cart, creating the cart lazily
// and merging quantities when the product is already present. The caller
// supplies the current stock level and price snapshot from the product
// service; the merged quantity is validated against stock inside the
// transaction.
func (c *Conf) AddItem(ctx context.Context, userID, productID string, quantity, stock int, price decimal.Decimal) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := findOrCreateActiveCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		var existingQuantity int
		queryItem := `
			SELECT quantity
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
			FOR UPDATE
		`
		err = tx.QueryRowContext(ctx, queryItem, cartID, productID).Scan(&existingQuantity)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if quantity > stock {
				return ErrInsufficientStock
			}
			subtotal := price.Mul(decimal.NewFromInt(int64(quantity)))
			queryInsert := `
				INSERT INTO cart_items (cart_id, product_id, quantity, price, subtotal, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`
			if _, err := tx.ExecContext(ctx, queryInsert, cartID, productID, quantity, price, subtotal); err != nil {
				return fmt.Errorf("inserting cart item: %w", err)
			}
		case err != nil:
			return fmt.Errorf("querying cart item: %w", err)
		default:
			newQuantity := existingQuantity + quantity
			if newQuantity > stock {
				return ErrInsufficientStock
			}
			queryUpdate := `
				UPDATE cart_items
				SET quantity = $3, price = $4, subtotal = $4 * $3, updated_at = now()
				WHERE cart_id = $1 AND product_id = $2
			`
			if _, err := tx.ExecContext(ctx, queryUpdate, cartID, productID, newQuantity, price); err != nil {
				return fmt.Errorf("updating cart item quantity: %w", err)
			}
		}

		return recalculateTotal(ctx, tx, cartID)
	})
}

// SetItemQuantity replaces the quantity of one line and recomputes subtotal
// and cart total.
func (c *Conf) SetItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID)
		if err != nil {
			return err
		}

		query := `
			UPDATE cart_items
			SET quantity = $3, subtotal = price * $3, updated_at = now()
			WHERE cart_id = $1 AND product_id = $2
		`
		res, err := tx.ExecContext(ctx, query, cartID, productID, quantity)
		if err != nil {
			return fmt.Errorf("updating item quantity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrItemNotFound
		}

		return recalculateTotal(ctx, tx, cartID)
	})
}

// RemoveItem deletes one line from the active cart.
func (c *Conf) RemoveItem(ctx context.Context, userID, productID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
		if err != nil {
			return fmt.Errorf("deleting cart item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrItemNotFound
		}

		return recalculateTotal(ctx, tx, cartID)
	})
}

// ClearCart removes every line and zeroes the total.
func (c *Conf) ClearCart(ctx context.Context, userID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("clearing cart items: %w", err)
		}
		return recalculateTotal(ctx, tx, cartID)
	})
}

// ActiveCart returns the user's ACTIVE cart with its items.
func (c *Conf) ActiveCart(ctx context.Context, userID string) (Cart, error) {
	var cart Cart
	query := `
		SELECT id, user_id, status, total_amount, created_at, updated_at, expired_at
		FROM carts
		WHERE user_id = $1 AND status = 'ACTIVE'
	`
	err := c.db.QueryRowContext(ctx, query, userID).
		Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.TotalAmount, &cart.CreatedAt, &cart.UpdatedAt, &cart.ExpiredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, fmt.Errorf("querying active cart: %w", err)
	}

	cart.Items, err = c.ItemsByCartID(ctx, cart.ID)
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// ItemsByCartID returns the lines of any cart, checked out or not. This is
// the collaborator contract the order service fetches order items through.
func (c *Conf) ItemsByCartID(ctx context.Context, cartID string) ([]Item, error) {
	query := `
		SELECT cart_id, product_id, quantity, price, subtotal
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("querying cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.CartID, &item.ProductID, &item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart items: %w", err)
	}
	return items, nil
}

// MarkCheckedOut flips an ACTIVE cart to CHECKED_OUT and returns the total
// recomputed from the items in the same statement. The status guard makes a
// second checkout of the same cart fail with ErrCartNotFound.
func (c *Conf) MarkCheckedOut(ctx context.Context, cartID string) (decimal.Decimal, error) {
	query := `
		UPDATE carts
		SET status = 'CHECKED_OUT',
		    total_amount = (SELECT COALESCE(SUM(subtotal), 0) FROM cart_items WHERE cart_id = $1),
		    updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING total_amount
	`
	var total decimal.Decimal
	err := c.db.QueryRowContext(ctx, query, cartID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrCartNotFound
		}
		return decimal.Zero, fmt.Errorf("marking cart checked out: %w", err)
	}
	return total, nil
}

// DeleteExpired purges carts whose expiry passed; items go with them via the
// foreign key cascade. Returns the number of carts removed.
func (c *Conf) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM carts WHERE status = 'ACTIVE' AND expired_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired carts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted carts: %w", err)
	}
	return n, nil
}

func findOrCreateActiveCart(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	cartID, err := activeCartID(ctx, tx, userID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return "", err
	}

	cartID = uuid.NewString()
	query := `
		INSERT INTO carts (id, user_id, status, total_amount, created_at, updated_at, expired_at)
		VALUES ($1, $2, 'ACTIVE', 0, now(), now(), $3)
	`
	if _, err := tx.ExecContext(ctx, query, cartID, userID, time.Now().UTC().Add(ExpiryWindow)); err != nil {
		return "", fmt.Errorf("creating cart: %w", err)
	}
	return cartID, nil
}

func activeCartID(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	var cartID string
	query := `
		SELECT id
		FROM carts
		WHERE user_id = $1 AND status = 'ACTIVE'
		FOR UPDATE
	`
	err := tx.QueryRowContext(ctx, query, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCartNotFound
		}
		return "", fmt.Errorf("querying active cart: %w", err)
	}
	return cartID, nil
}

// recalculateTotal keeps the derived cart total in sync with the items and
// extends the cart's expiry, all inside the mutating transaction.
func recalculateTotal(ctx context.Context, tx *sql.Tx, cartID string) error {
	query := `
		UPDATE carts
		SET total_amount = (SELECT COALESCE(SUM(subtotal), 0) FROM cart_items WHERE cart_id = $1),
		    updated_at = now(),
		    expired_at = $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, cartID, time.Now().UTC().Add(ExpiryWindow)); err != nil {
		return fmt.Errorf("recalculating cart total: %w", err)
	}
	return nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
