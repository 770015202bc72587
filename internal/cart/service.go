package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

// Store is the persistence contract the service orchestrates over; Conf is
// the postgres implementation.
type Store interface {
	AddItem(ctx context.Context, userID, productID string, quantity, stock int, price decimal.Decimal) error
	SetItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	ActiveCart(ctx context.Context, userID string) (Cart, error)
	ItemsByCartID(ctx context.Context, cartID string) ([]Item, error)
	MarkCheckedOut(ctx context.Context, cartID string) (decimal.Decimal, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ProductInfo is the snapshot the product service returns for the add flow.
type ProductInfo struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

// ProductGetter resolves price and stock from the product service.
type ProductGetter interface {
	ProductByID(ctx context.Context, productID string) (ProductInfo, error)
}

// Publisher puts checkout events on the bus.
type Publisher interface {
	ProduceMessage(topic string, key, value []byte) error
}

type Service struct {
	store     Store
	products  ProductGetter
	publisher Publisher
}

func NewService(store Store, products ProductGetter, publisher Publisher) *Service {
	return &Service{store: store, products: products, publisher: publisher}
}

// AddItem validates the product and stock with the catalog, then delegates to
// the store, which re-checks the merged quantity inside its transaction.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	product, err := s.products.ProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > product.Stock {
		return ErrInsufficientStock
	}
	return s.store.AddItem(ctx, userID, productID, quantity, product.Stock, product.Price)
}

// UpdateItemQuantity replaces a line's quantity after re-validating stock.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	product, err := s.products.ProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > product.Stock {
		return ErrInsufficientStock
	}
	return s.store.SetItemQuantity(ctx, userID, productID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.store.RemoveItem(ctx, userID, productID)
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	return s.store.ClearCart(ctx, userID)
}

func (s *Service) GetCart(ctx context.Context, userID string) (Cart, error) {
	return s.store.ActiveCart(ctx, userID)
}

func (s *Service) ItemsByCartID(ctx context.Context, cartID string) ([]Item, error) {
	return s.store.ItemsByCartID(ctx, cartID)
}

// Checkout hands the cart off to the order service. Ordering matters: the
// status flip (with its defensive total recompute) is persisted first, the
// event is published second. A publish failure leaves the cart CHECKED_OUT
// and surfaces ErrPublishFailed to the caller; a retried checkout then finds
// no ACTIVE cart and is rejected. The gap between commit and publish is the
// documented at-least-once window.
func (s *Service) Checkout(ctx context.Context, userID string) error {
	cart, err := s.store.ActiveCart(ctx, userID)
	if err != nil {
		return err
	}
	if cart.IsEmpty() {
		return ErrCartEmpty
	}

	total, err := s.store.MarkCheckedOut(ctx, cart.ID)
	if err != nil {
		return err
	}

	event := kafka.CartCheckoutEvent{
		CartID:      cart.ID,
		UserID:      userID,
		TotalAmount: total,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling checkout event: %w", err)
	}

	if err := s.publisher.ProduceMessage(kafka.TopicCartCheckout, []byte(cart.ID), payload); err != nil {
		slog.Error("failed to publish cart checkout event",
			slog.String(logkey.CartID, cart.ID),
			slog.String(logkey.UserID, userID),
			slog.String(logkey.ERROR, err.Error()),
		)
		return ErrPublishFailed
	}

	slog.Info("cart checked out",
		slog.String(logkey.CartID, cart.ID),
		slog.String(logkey.UserID, userID),
		slog.String("total_amount", total.String()),
	)
	return nil
}

// SweepExpired runs the hourly cleanup until ctx is cancelled.
func (s *Service) SweepExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				slog.Error("expired cart sweep failed", slog.String(logkey.ERROR, err.Error()))
				continue
			}
			if n > 0 {
				slog.Info("expired carts purged", slog.Int64("count", n))
			}
		}
	}
}
