package products

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Stock actions accepted by SetStock.
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
)

// Stock below this threshold triggers a low-stock warning log.
const lowStockThreshold = 10

// Service-level failures; the error text is the user-facing message key.
var (
	ErrProductNotFound   = errors.New("product.not_found")
	ErrInsufficientStock = errors.New("product.insufficient_stock")
	ErrInvalidQuantity   = errors.New("product.invalid_quantity")
	ErrInvalidAction     = errors.New("product.invalid_action")
)

type Product struct {
	ID        string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Image     string          `json:"image"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// deltaFor translates a SetStock action into a signed quantity. The quantity
// must be positive; direction comes only from the action.
func deltaFor(action string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	switch action {
	case ActionIncrease:
		return quantity, nil
	case ActionDecrease:
		return -quantity, nil
	default:
		return 0, ErrInvalidAction
	}
}
