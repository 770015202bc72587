package kafka

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics connecting the services. Records are keyed so all events for one
// cart or order land on the same partition and stay ordered.
const (
	TopicCartCheckout = "cart.checkout"
	TopicOrderPlaced  = "order.placed"

	GroupOrderService        = "order-service"
	GroupNotificationService = "notification-service"
)

// CartCheckoutEvent is emitted by the cart service when a cart is checked
// out; the order service consumes it exactly once per unique cart id.
type CartCheckoutEvent struct {
	CartID      string          `json:"cart_id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderPlacedEvent is emitted by the order service after a successful submit;
// the notification service renders the order-summary email from it. Email
// and item fields are best-effort enrichment and may be empty.
type OrderPlacedEvent struct {
	OrderID         string          `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	CartID          string          `json:"cart_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress string          `json:"shipping_address"`
	GiftMessage     string          `json:"gift_message,omitempty"`
	OrderDate       time.Time       `json:"order_date"`
	Status          string          `json:"status"`
	UserEmail       string          `json:"user_email,omitempty"`
	Items           []OrderItemInfo `json:"items"`
}

type OrderItemInfo struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Image       string          `json:"image"`
}
