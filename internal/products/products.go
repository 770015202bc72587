// Package products holds the stock ledger: the authoritative, atomic
// per-product quantity store the order service reserves against.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// SetStock atomically adjusts a product's available quantity. The guard in
// the UPDATE enforces the non-negative invariant; there is no read-then-write
// window.
func (c *Conf) SetStock(ctx context.Context, productID string, quantity int, action string) error {
	delta, err := deltaFor(action, quantity)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`
	var newStock int
	err = c.db.QueryRowContext(ctx, query, productID, delta).Scan(&newStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the product is missing or the decrease would go negative.
			exists, checkErr := c.productExists(ctx, productID)
			if checkErr != nil {
				return checkErr
			}
			if !exists {
				return ErrProductNotFound
			}
			return ErrInsufficientStock
		}
		return fmt.Errorf("updating stock for %s: %w", productID, err)
	}

	if newStock < lowStockThreshold {
		slog.Warn("product stock below threshold",
			slog.String(logkey.ProductID, productID),
			slog.Int("stock", newStock),
			slog.Int("threshold", lowStockThreshold),
		)
	}
	return nil
}

// ProductByID returns the pricing and stock snapshot the cart service needs
// when adding an item.
func (c *Conf) ProductByID(ctx context.Context, productID string) (Product, error) {
	query := `
		SELECT id, name, price, stock, image, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var p Product
	err := c.db.QueryRowContext(ctx, query, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("querying product %s: %w", productID, err)
	}
	return p, nil
}

// NameByID resolves a product's display name for event enrichment.
func (c *Conf) NameByID(ctx context.Context, productID string) (string, error) {
	var name string
	err := c.db.QueryRowContext(ctx, `SELECT name FROM products WHERE id = $1`, productID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrProductNotFound
		}
		return "", fmt.Errorf("querying product name %s: %w", productID, err)
	}
	return name, nil
}

func (c *Conf) productExists(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking product %s: %w", productID, err)
	}
	return exists, nil
}
