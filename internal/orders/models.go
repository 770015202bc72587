package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. PENDING is the only creation state;
// DELIVERED and CANCELLED are terminal.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusShipped     Status = "SHIPPED"
	StatusDelivered   Status = "DELIVERED"
	StatusCancelled   Status = "CANCELLED"
)

// Defaults applied when an order is created from a checkout event; the user
// provides real values at submit time.
const (
	DefaultPaymentMethod   = "CASH_ON_DELIVERY"
	DefaultShippingAddress = "To be provided"
)

// Service-level failures; the error text is the user-facing message key.
var (
	ErrOrderNotFound       = errors.New("order.not_found")
	ErrOrderAlreadyExists  = errors.New("order.already_exists")
	ErrCannotSubmitStatus  = errors.New("order.cannot_submit_status")
	ErrCannotCancelShipped = errors.New("order.cannot_cancel_shipped")
	ErrAlreadyCancelled    = errors.New("order.already_cancelled")
	ErrInsufficientStock   = errors.New("order.insufficient_stock")
	ErrNoItems             = errors.New("order.no_items")
	ErrInvalidTransition   = errors.New("order.invalid_transition")
	ErrConflict            = errors.New("order.conflict")
)

// Order is the durable record of a purchase, created from a cart checkout
// event and independent of the cart afterwards. Cart contents are never
// copied into it; they are fetched from the cart service when needed.
type Order struct {
	ID              string          `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	CartID          string          `json:"cart_id"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress string          `json:"shipping_address"`
	GiftMessage     string          `json:"gift_message,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item is a line of the order, fetched transiently from the cart service.
type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CanSubmit reports whether a submit is legal from the current status.
func (o *Order) CanSubmit() bool {
	return o.Status == StatusPending
}

// CanCancel reports whether a cancel is legal from the current status.
// Shipped and delivered orders are past the point of no return; cancelled is
// terminal.
func (o *Order) CanCancel() bool {
	switch o.Status {
	case StatusShipped, StatusDelivered, StatusCancelled:
		return false
	default:
		return true
	}
}

// HoldsStockReservation reports whether the order's items have been deducted
// from catalog stock. Stock is reserved at submit, not at creation, so a
// PENDING order never holds a reservation and cancelling it must not credit
// stock back.
func (o *Order) HoldsStockReservation() bool {
	return o.Status != StatusPending
}

// GenerateOrderNumber builds the human-readable unique order number,
// ORD-YYYYMMDD-HHMMSS-NNNN, with the suffix derived from the timestamp's
// sub-second precision.
func GenerateOrderNumber(now time.Time) string {
	nano := (now.Nanosecond() / 100000) % 10000
	return fmt.Sprintf("ORD-%s-%s-%04d", now.Format("20060102"), now.Format("150405"), nano)
}
