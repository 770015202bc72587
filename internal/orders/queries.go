package orders

import (
	"context"
	"log/slog"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// OrderWithItems is the read-model shape: the order row plus its lines
// fetched from the cart service.
type OrderWithItems struct {
	Order
	Items []Item `json:"items"`
}

// Page is one page of orders with pagination metadata.
type Page struct {
	Orders        []OrderWithItems `json:"orders"`
	PageNumber    int              `json:"page"`
	PageSize      int              `json:"size"`
	TotalElements int64            `json:"total_elements"`
	TotalPages    int              `json:"total_pages"`
}

// clampPage normalizes out-of-range pagination instead of erroring: negative
// pages become 0, sizes are pulled into [1, 100] with 10 as the default.
func clampPage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// UserOrders lists one user's orders, newest first.
func (s *Service) UserOrders(ctx context.Context, userID string, page, size int) (Page, error) {
	page, size = clampPage(page, size)
	rows, total, err := s.store.ListByUser(ctx, userID, size, page*size)
	if err != nil {
		return Page{}, err
	}
	return s.buildPage(ctx, rows, page, size, total), nil
}

// AllOrders lists every order across users. Admin view.
func (s *Service) AllOrders(ctx context.Context, page, size int) (Page, error) {
	page, size = clampPage(page, size)
	rows, total, err := s.store.ListAll(ctx, size, page*size)
	if err != nil {
		return Page{}, err
	}
	return s.buildPage(ctx, rows, page, size, total), nil
}

// SubmittedOrders lists orders waiting for review. Admin view.
func (s *Service) SubmittedOrders(ctx context.Context, page, size int) (Page, error) {
	page, size = clampPage(page, size)
	rows, total, err := s.store.ListByStatus(ctx, StatusSubmitted, size, page*size)
	if err != nil {
		return Page{}, err
	}
	return s.buildPage(ctx, rows, page, size, total), nil
}

// OrderForUser fetches one order with its items, scoped to the owner.
func (s *Service) OrderForUser(ctx context.Context, orderID, userID string) (OrderWithItems, error) {
	order, err := s.store.ByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return OrderWithItems{}, err
	}
	return s.withItems(ctx, order), nil
}

// buildPage enriches each row with its cart lines. Enrichment is
// best-effort: a cart service hiccup yields an order with empty items, not a
// failed listing.
func (s *Service) buildPage(ctx context.Context, rows []Order, page, size int, total int64) Page {
	result := Page{
		Orders:        make([]OrderWithItems, 0, len(rows)),
		PageNumber:    page,
		PageSize:      size,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
	}
	for _, row := range rows {
		result.Orders = append(result.Orders, s.withItems(ctx, row))
	}
	return result
}

func (s *Service) withItems(ctx context.Context, order Order) OrderWithItems {
	items, err := s.cart.ItemsByCartID(ctx, order.CartID)
	if err != nil {
		slog.Warn("could not fetch items for order listing",
			slog.String(logkey.OrderID, order.ID),
			slog.String(logkey.ERROR, err.Error()),
		)
		items = []Item{}
	}
	return OrderWithItems{Order: order, Items: items}
}
