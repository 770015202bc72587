package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusExpired    Status = "EXPIRED"
)

// Carts not touched for this long are swept by the cleanup job.
const ExpiryWindow = 24 * time.Hour

// Service-level failures; the error text is the user-facing message key.
var (
	ErrCartNotFound      = errors.New("cart.not_found")
	ErrCartEmpty         = errors.New("cart.empty")
	ErrItemNotFound      = errors.New("cart.item_not_found")
	ErrInsufficientStock = errors.New("cart.insufficient_stock")
	ErrInvalidQuantity   = errors.New("cart.invalid_quantity")
	ErrProductNotFound   = errors.New("product.not_found")
	ErrPublishFailed     = errors.New("cart.publish_failed")
)

// Cart is a user's active collection of line items. Its total is derived: it
// always equals the sum of the item subtotals and is recomputed inside every
// mutating transaction, never maintained independently.
type Cart struct {
	ID          string          `json:"cart_id"`
	UserID      string          `json:"user_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []Item          `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiredAt   time.Time       `json:"expired_at"`
}

// Item is one (cart, product) line. Subtotal is derived from price and
// quantity and recomputed whenever either changes.
type Item struct {
	CartID      string          `json:"cart_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// ComputeSubtotal derives the line subtotal from price and quantity.
func (i *Item) ComputeSubtotal() {
	i.Subtotal = i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeTotal derives the cart total from its items' subtotals.
func (c *Cart) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
