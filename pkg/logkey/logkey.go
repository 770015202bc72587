// Package logkey holds the shared slog attribute names so log output stays
// greppable across services.
package logkey

const (
	TraceID   = "trace_id"
	ERROR     = "error"
	UserID    = "user_id"
	CartID    = "cart_id"
	OrderID   = "order_id"
	ProductID = "product_id"
	Topic     = "topic"
	Service   = "service"
)
