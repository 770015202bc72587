package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

// Stock ledger actions, per the catalog collaborator contract.
const (
	actionIncrease = "increase"
	actionDecrease = "decrease"
)

const unknownProductName = "Unknown Product"

// Store is the persistence contract the service orchestrates over; Conf is
// the postgres implementation.
type Store interface {
	Insert(ctx context.Context, o Order) error
	ByCartID(ctx context.Context, cartID string) (Order, error)
	ByID(ctx context.Context, orderID string) (Order, error)
	ByIDAndUser(ctx context.Context, orderID, userID string) (Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
	MarkSubmitted(ctx context.Context, orderID, paymentMethod, address, giftMessage string) (bool, error)
	MarkDelivered(ctx context.Context, orderID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, int64, error)
	ListAll(ctx context.Context, limit, offset int) ([]Order, int64, error)
}

// CatalogClient is the catalog collaborator: the atomic stock operation plus
// the name lookup used for event enrichment. Stock is owned by the catalog;
// the order service never mutates it except through SetStock.
type CatalogClient interface {
	SetStock(ctx context.Context, productID string, quantity int, action string) error
	NameByID(ctx context.Context, productID string) (string, error)
}

// CartClient fetches a checked-out cart's lines, the only view the order
// service has of its items.
type CartClient interface {
	ItemsByCartID(ctx context.Context, cartID string) ([]Item, error)
}

// UserClient resolves the notification email address.
type UserClient interface {
	EmailByID(ctx context.Context, userID string) (string, error)
}

// Publisher puts order events on the bus.
type Publisher interface {
	ProduceMessage(topic string, key, value []byte) error
}

type Service struct {
	store     Store
	catalog   CatalogClient
	cart      CartClient
	users     UserClient
	publisher Publisher
}

func NewService(store Store, catalog CatalogClient, cart CartClient, users UserClient, publisher Publisher) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		cart:      cart,
		users:     users,
		publisher: publisher,
	}
}

// HandleCartCheckout is the bus consumer entry point. A malformed payload is
// logged and dropped (redelivery cannot fix it); a storage failure is
// returned so the offset stays uncommitted and the event is redelivered.
func (s *Service) HandleCartCheckout(ctx context.Context, value []byte) error {
	var event kafka.CartCheckoutEvent
	if err := json.Unmarshal(value, &event); err != nil {
		slog.Error("dropping malformed cart checkout event", slog.String(logkey.ERROR, err.Error()))
		return nil
	}
	if event.CartID == "" || event.UserID == "" {
		slog.Error("dropping cart checkout event with missing ids")
		return nil
	}

	_, err := s.CreateFromCheckout(ctx, event)
	return err
}

// CreateFromCheckout creates the PENDING order for a checked-out cart.
// Idempotent on cart id: the bus delivers at least once, so a duplicate
// event finds the existing order and is absorbed as a no-op.
func (s *Service) CreateFromCheckout(ctx context.Context, event kafka.CartCheckoutEvent) (Order, error) {
	existing, err := s.store.ByCartID(ctx, event.CartID)
	if err == nil {
		slog.Info("order already exists for cart, ignoring duplicate checkout event",
			slog.String(logkey.CartID, event.CartID),
			slog.String(logkey.OrderID, existing.ID),
		)
		return existing, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return Order{}, err
	}

	now := time.Now().UTC()
	order := Order{
		ID:              uuid.NewString(),
		OrderNumber:     GenerateOrderNumber(now),
		UserID:          event.UserID,
		CartID:          event.CartID,
		Status:          StatusPending,
		TotalAmount:     event.TotalAmount,
		PaymentMethod:   DefaultPaymentMethod,
		ShippingAddress: DefaultShippingAddress,
	}

	if err := s.store.Insert(ctx, order); err != nil {
		if errors.Is(err, ErrOrderAlreadyExists) {
			// Lost a race with a concurrent delivery of the same event; the
			// unique cart_id index absorbed it.
			slog.Info("concurrent duplicate checkout event absorbed",
				slog.String(logkey.CartID, event.CartID))
			return s.store.ByCartID(ctx, event.CartID)
		}
		return Order{}, err
	}

	slog.Info("order created from cart checkout",
		slog.String(logkey.OrderID, order.ID),
		slog.String(logkey.CartID, event.CartID),
		slog.String("order_number", order.OrderNumber),
	)
	return order, nil
}

// Submit moves a PENDING order to SUBMITTED: validate stock with the dry-run
// probe, apply the real decrease, flip the status, then publish the placed
// event. Only the real decrease and the status flip are on the consistency
// path; the publish is best-effort.
func (s *Service) Submit(ctx context.Context, orderID, userID, paymentMethod, address string) (Order, error) {
	order, err := s.store.ByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return Order{}, err
	}
	if !order.CanSubmit() {
		return Order{}, ErrCannotSubmitStatus
	}

	items, err := s.cart.ItemsByCartID(ctx, order.CartID)
	if err != nil {
		return Order{}, fmt.Errorf("fetching cart items for order %s: %w", orderID, err)
	}
	if len(items) == 0 {
		return Order{}, ErrNoItems
	}

	if err := s.validateStockAvailability(ctx, orderID, items); err != nil {
		return Order{}, err
	}

	// The real reservation. Best-effort per item: a partial failure here is
	// logged, not rolled back.
	s.changeStock(ctx, orderID, items, actionDecrease)

	ok, err := s.store.MarkSubmitted(ctx, orderID, paymentMethod, address, order.GiftMessage)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		// A concurrent transition (most likely a cancel) won between our
		// guard check and the flip. Stock has already been decreased; that
		// window is the known gap of the dry-run/compensate design.
		slog.Warn("submit lost status race after stock decrease",
			slog.String(logkey.OrderID, orderID))
		return Order{}, ErrCannotSubmitStatus
	}

	submitted, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	s.publishOrderPlaced(ctx, submitted, items)

	slog.Info("order submitted",
		slog.String(logkey.OrderID, orderID),
		slog.String("order_number", submitted.OrderNumber),
	)
	return submitted, nil
}

// Cancel moves an order to CANCELLED and, when the order had actually
// reserved stock (reached SUBMITTED or beyond), credits the quantities back.
// A PENDING order never decreased stock, so cancelling it must not increase
// it — that would double-credit the catalog.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (Order, error) {
	order, err := s.store.ByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return Order{}, err
	}
	switch order.Status {
	case StatusShipped, StatusDelivered:
		return Order{}, ErrCannotCancelShipped
	case StatusCancelled:
		return Order{}, ErrAlreadyCancelled
	}

	ok, err := s.store.UpdateStatus(ctx, orderID, order.Status, StatusCancelled)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, ErrConflict
	}

	if order.HoldsStockReservation() {
		slog.Info("restoring stock for cancelled order",
			slog.String(logkey.OrderID, orderID),
			slog.String("previous_status", string(order.Status)),
		)
		s.increaseStock(ctx, order)
	}

	cancelled, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	slog.Info("order cancelled", slog.String(logkey.OrderID, orderID))
	return cancelled, nil
}

// MarkUnderReview is the admin transition SUBMITTED -> UNDER_REVIEW.
func (s *Service) MarkUnderReview(ctx context.Context, orderID string) (Order, error) {
	return s.adminTransition(ctx, orderID, StatusSubmitted, StatusUnderReview)
}

// MarkShipped is the admin transition UNDER_REVIEW -> SHIPPED.
func (s *Service) MarkShipped(ctx context.Context, orderID string) (Order, error) {
	return s.adminTransition(ctx, orderID, StatusUnderReview, StatusShipped)
}

// MarkDelivered is the admin transition SHIPPED -> DELIVERED; it also stamps
// the delivery time.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (Order, error) {
	if _, err := s.store.ByID(ctx, orderID); err != nil {
		return Order{}, err
	}
	ok, err := s.store.MarkDelivered(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, ErrInvalidTransition
	}
	return s.store.ByID(ctx, orderID)
}

func (s *Service) adminTransition(ctx context.Context, orderID string, from, to Status) (Order, error) {
	if _, err := s.store.ByID(ctx, orderID); err != nil {
		return Order{}, err
	}
	ok, err := s.store.UpdateStatus(ctx, orderID, from, to)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, ErrInvalidTransition
	}
	return s.store.ByID(ctx, orderID)
}

// validateStockAvailability is the dry-run probe: decrease each item's
// quantity, and on success immediately restore it, leaving the ledger where
// it was. The first failed decrease aborts validation; decreases already
// taken and restored for earlier items net to zero, but an abort does not
// revisit them. A failed restore is logged, not fatal — it skews inventory,
// not the user-facing result.
func (s *Service) validateStockAvailability(ctx context.Context, orderID string, items []Item) error {
	for _, item := range items {
		if err := s.catalog.SetStock(ctx, item.ProductID, item.Quantity, actionDecrease); err != nil {
			slog.Warn("insufficient stock during validation",
				slog.String(logkey.OrderID, orderID),
				slog.String(logkey.ProductID, item.ProductID),
				slog.Int("requested", item.Quantity),
				slog.String(logkey.ERROR, err.Error()),
			)
			return ErrInsufficientStock
		}

		if err := s.catalog.SetStock(ctx, item.ProductID, item.Quantity, actionIncrease); err != nil {
			slog.Error("failed to restore stock after validation probe, inventory may be inconsistent",
				slog.String(logkey.OrderID, orderID),
				slog.String(logkey.ProductID, item.ProductID),
				slog.String(logkey.ERROR, err.Error()),
			)
		}
	}
	return nil
}

// increaseStock re-fetches the order's items and credits each back to the
// ledger. Compensation for a cancelled reservation.
func (s *Service) increaseStock(ctx context.Context, order Order) {
	items, err := s.cart.ItemsByCartID(ctx, order.CartID)
	if err != nil {
		slog.Error("could not fetch items to restore stock",
			slog.String(logkey.OrderID, order.ID),
			slog.String(logkey.ERROR, err.Error()),
		)
		return
	}
	s.changeStock(ctx, order.ID, items, actionIncrease)
}

// changeStock applies one action to every item. Per-item failures are logged
// and skipped: the loop is best-effort, not all-or-nothing, so a partial
// failure leaves some items adjusted and some not.
func (s *Service) changeStock(ctx context.Context, orderID string, items []Item, action string) {
	for _, item := range items {
		if err := s.catalog.SetStock(ctx, item.ProductID, item.Quantity, action); err != nil {
			slog.Warn("stock adjustment failed for item",
				slog.String(logkey.OrderID, orderID),
				slog.String(logkey.ProductID, item.ProductID),
				slog.String("action", action),
				slog.Int("quantity", item.Quantity),
				slog.String(logkey.ERROR, err.Error()),
			)
			continue
		}
	}
}

// publishOrderPlaced enriches and emits the placed event. Enrichment
// failures degrade to empty fields and a publish failure is only logged:
// notification is not on the submit consistency path.
func (s *Service) publishOrderPlaced(ctx context.Context, order Order, items []Item) {
	event := kafka.OrderPlacedEvent{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		CartID:          order.CartID,
		TotalAmount:     order.TotalAmount,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		GiftMessage:     order.GiftMessage,
		OrderDate:       time.Now().UTC(),
		Status:          string(order.Status),
		Items:           []kafka.OrderItemInfo{},
	}

	email, err := s.users.EmailByID(ctx, order.UserID)
	if err != nil {
		slog.Warn("could not resolve user email for order placed event",
			slog.String(logkey.OrderID, order.ID),
			slog.String(logkey.ERROR, err.Error()),
		)
	} else {
		event.UserEmail = email
	}

	for _, item := range items {
		name := item.ProductName
		if name == "" {
			name, err = s.catalog.NameByID(ctx, item.ProductID)
			if err != nil {
				slog.Warn("could not resolve product name for order placed event",
					slog.String(logkey.ProductID, item.ProductID),
					slog.String(logkey.ERROR, err.Error()),
				)
				name = unknownProductName
			}
		}
		event.Items = append(event.Items, kafka.OrderItemInfo{
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Subtotal:    item.Subtotal,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal order placed event",
			slog.String(logkey.OrderID, order.ID),
			slog.String(logkey.ERROR, err.Error()),
		)
		return
	}

	if err := s.publisher.ProduceMessage(kafka.TopicOrderPlaced, []byte(order.ID), payload); err != nil {
		slog.Error("failed to publish order placed event",
			slog.String(logkey.OrderID, order.ID),
			slog.String(logkey.ERROR, err.Error()),
		)
		return
	}

	slog.Info("order placed event published",
		slog.String(logkey.OrderID, order.ID),
		slog.String("order_number", order.OrderNumber),
	)
}
