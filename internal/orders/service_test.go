package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
)

type fakeStore struct {
	orders map[string]Order

	lastLimit  int
	lastOffset int
}

func newFakeStore(seed ...Order) *fakeStore {
	s := &fakeStore{orders: map[string]Order{}}
	for _, o := range seed {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeStore) Insert(ctx context.Context, o Order) error {
	for _, existing := range s.orders {
		if existing.CartID == o.CartID {
			return ErrOrderAlreadyExists
		}
	}
	s.orders[o.ID] = o
	return nil
}

func (s *fakeStore) ByCartID(ctx context.Context, cartID string) (Order, error) {
	for _, o := range s.orders {
		if o.CartID == cartID {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (s *fakeStore) ByID(ctx context.Context, orderID string) (Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeStore) ByIDAndUser(ctx context.Context, orderID, userID string) (Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, orderID string, from, to Status) (bool, error) {
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	s.orders[orderID] = o
	return true, nil
}

func (s *fakeStore) MarkSubmitted(ctx context.Context, orderID, paymentMethod, address, giftMessage string) (bool, error) {
	o, ok := s.orders[orderID]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	o.Status = StatusSubmitted
	o.PaymentMethod = paymentMethod
	o.ShippingAddress = address
	o.GiftMessage = giftMessage
	s.orders[orderID] = o
	return true, nil
}

func (s *fakeStore) MarkDelivered(ctx context.Context, orderID string) (bool, error) {
	return s.UpdateStatus(ctx, orderID, StatusShipped, StatusDelivered)
}

func (s *fakeStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	s.lastLimit, s.lastOffset = limit, offset
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, int64, error) {
	s.lastLimit, s.lastOffset = limit, offset
	var out []Order
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) ListAll(ctx context.Context, limit, offset int) ([]Order, int64, error) {
	s.lastLimit, s.lastOffset = limit, offset
	var out []Order
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, int64(len(out)), nil
}

// fakeCatalog keeps a real stock ledger so tests can assert conservation.
type fakeCatalog struct {
	stock   map[string]int
	names   map[string]string
	nameErr error
	calls   []string
}

func (f *fakeCatalog) SetStock(ctx context.Context, productID string, quantity int, action string) error {
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%d", action, productID, quantity))
	current, ok := f.stock[productID]
	if !ok {
		return errors.New("product.not_found")
	}
	delta := quantity
	if action == "decrease" {
		delta = -quantity
	}
	if current+delta < 0 {
		return errors.New("product.insufficient_stock")
	}
	f.stock[productID] = current + delta
	return nil
}

func (f *fakeCatalog) NameByID(ctx context.Context, productID string) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	name, ok := f.names[productID]
	if !ok {
		return "", errors.New("product.not_found")
	}
	return name, nil
}

type fakeCart struct {
	items map[string][]Item
	err   error
}

func (f *fakeCart) ItemsByCartID(ctx context.Context, cartID string) ([]Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[cartID], nil
}

type fakeUsers struct {
	email string
	err   error
}

func (f *fakeUsers) EmailByID(ctx context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.email, nil
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) ProduceMessage(topic string, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, value)
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testItems() []Item {
	return []Item{
		{ProductID: "p1", Quantity: 2, Price: price("10.00"), Subtotal: price("20.00")},
		{ProductID: "p2", Quantity: 1, Price: price("5.50"), Subtotal: price("5.50")},
	}
}

func testFixture(seed ...Order) (*Service, *fakeStore, *fakeCatalog, *fakePublisher) {
	store := newFakeStore(seed...)
	catalog := &fakeCatalog{
		stock: map[string]int{"p1": 10, "p2": 10},
		names: map[string]string{"p1": "Keyboard", "p2": "Mouse"},
	}
	cartSvc := &fakeCart{items: map[string][]Item{"cart-1": testItems()}}
	users := &fakeUsers{email: "buyer@example.com"}
	publisher := &fakePublisher{}
	svc := NewService(store, catalog, cartSvc, users, publisher)
	return svc, store, catalog, publisher
}

func pendingOrder() Order {
	return Order{
		ID:              "o1",
		OrderNumber:     "ORD-20260828-120000-0001",
		UserID:          "u1",
		CartID:          "cart-1",
		Status:          StatusPending,
		TotalAmount:     price("25.50"),
		PaymentMethod:   DefaultPaymentMethod,
		ShippingAddress: DefaultShippingAddress,
	}
}

func TestCreateFromCheckoutIsIdempotent(t *testing.T) {
	svc, store, _, _ := testFixture()
	event := kafka.CartCheckoutEvent{CartID: "cart-1", UserID: "u1", TotalAmount: price("25.50")}

	first, err := svc.CreateFromCheckout(context.Background(), event)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Status != StatusPending {
		t.Fatalf("new order status = %s, want PENDING", first.Status)
	}
	if first.PaymentMethod != DefaultPaymentMethod || first.ShippingAddress != DefaultShippingAddress {
		t.Fatalf("defaults not applied: %+v", first)
	}

	second, err := svc.CreateFromCheckout(context.Background(), event)
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate event created a second order: %s vs %s", second.ID, first.ID)
	}
	if len(store.orders) != 1 {
		t.Fatalf("store holds %d orders, want 1", len(store.orders))
	}
}

func TestHandleCartCheckoutDropsMalformedEvent(t *testing.T) {
	svc, store, _, _ := testFixture()

	if err := svc.HandleCartCheckout(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("malformed event should be dropped, got %v", err)
	}
	if err := svc.HandleCartCheckout(context.Background(), []byte(`{"cart_id":""}`)); err != nil {
		t.Fatalf("event without ids should be dropped, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Fatalf("dropped events must not create orders, got %d", len(store.orders))
	}
}

func TestSubmitHappyPath(t *testing.T) {
	svc, store, catalog, publisher := testFixture(pendingOrder())

	got, err := svc.Submit(context.Background(), "o1", "u1", "CREDIT_CARD", "1 Main St")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != StatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", got.Status)
	}
	if got.PaymentMethod != "CREDIT_CARD" || got.ShippingAddress != "1 Main St" {
		t.Fatalf("payment details not recorded: %+v", got)
	}
	if store.orders["o1"].Status != StatusSubmitted {
		t.Fatalf("persisted status = %s", store.orders["o1"].Status)
	}

	// Validation probes net to zero; only the real decrease sticks.
	if catalog.stock["p1"] != 8 || catalog.stock["p2"] != 9 {
		t.Fatalf("stock after submit = %v, want p1=8 p2=9", catalog.stock)
	}

	if len(publisher.topics) != 1 || publisher.topics[0] != kafka.TopicOrderPlaced {
		t.Fatalf("published topics = %v", publisher.topics)
	}
	var event kafka.OrderPlacedEvent
	if err := json.Unmarshal(publisher.payloads[0], &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.UserEmail != "buyer@example.com" {
		t.Fatalf("event email = %q", event.UserEmail)
	}
	if len(event.Items) != 2 || event.Items[0].ProductName != "Keyboard" {
		t.Fatalf("event items = %+v", event.Items)
	}
}

func TestSubmitInsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	svc, store, catalog, publisher := testFixture(pendingOrder())
	catalog.stock["p2"] = 0

	_, err := svc.Submit(context.Background(), "o1", "u1", "CREDIT_CARD", "1 Main St")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if store.orders["o1"].Status != StatusPending {
		t.Fatalf("failed submit changed status to %s", store.orders["o1"].Status)
	}
	// p1's probe was decreased then restored; p2's never went through.
	if catalog.stock["p1"] != 10 || catalog.stock["p2"] != 0 {
		t.Fatalf("stock after failed validation = %v, want p1=10 p2=0", catalog.stock)
	}
	if len(publisher.topics) != 0 {
		t.Fatalf("failed submit must not publish, got %v", publisher.topics)
	}
}

func TestSubmitGuards(t *testing.T) {
	for _, status := range []Status{StatusSubmitted, StatusUnderReview, StatusShipped, StatusDelivered, StatusCancelled} {
		o := pendingOrder()
		o.Status = status
		svc, _, _, _ := testFixture(o)

		_, err := svc.Submit(context.Background(), "o1", "u1", "CREDIT_CARD", "1 Main St")
		if !errors.Is(err, ErrCannotSubmitStatus) {
			t.Errorf("submit from %s: err = %v, want ErrCannotSubmitStatus", status, err)
		}
	}
}

func TestSubmitWrongUser(t *testing.T) {
	svc, _, _, _ := testFixture(pendingOrder())

	_, err := svc.Submit(context.Background(), "o1", "someone-else", "CREDIT_CARD", "1 Main St")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestSubmitEmptyCart(t *testing.T) {
	svc, _, _, _ := testFixture(pendingOrder())
	svc.cart = &fakeCart{items: map[string][]Item{}}

	_, err := svc.Submit(context.Background(), "o1", "u1", "CREDIT_CARD", "1 Main St")
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("err = %v, want ErrNoItems", err)
	}
}

func TestSubmitSurvivesPublishFailure(t *testing.T) {
	svc, store, _, publisher := testFixture(pendingOrder())
	publisher.err = errors.New("broker down")

	got, err := svc.Submit(context.Background(), "o1", "u1", "CREDIT_CARD", "1 Main St")
	if err != nil {
		t.Fatalf("publish failure must not fail the submit, got %v", err)
	}
	if got.Status != StatusSubmitted || store.orders["o1"].Status != StatusSubmitted {
		t.Fatalf("submit did not stick: %s", got.Status)
	}
}

func TestSubmitDegradesEnrichment(t *testing.T) {
	svc, _, catalog, publisher := testFixture(pendingOrder())
	svc.users = &fakeUsers{err: errors.New("users down")}
	svc.cart = &fakeCart{items: map[string][]Item{
		"cart-1": {{ProductID: "p1", Quantity: 1, Price: price("10.00"), Subtotal: price("10.00")}},
	}}
	catalog.nameErr = errors.New("products down")

	if _, err := svc.Submit(context.Background(), "o1", "u1", "CREDIT_CARD", "1 Main St"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var event kafka.OrderPlacedEvent
	if err := json.Unmarshal(publisher.payloads[0], &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.UserEmail != "" {
		t.Fatalf("email should degrade to empty, got %q", event.UserEmail)
	}
	if event.Items[0].ProductName != unknownProductName {
		t.Fatalf("name should degrade to %q, got %q", unknownProductName, event.Items[0].ProductName)
	}
}

func TestCancelPendingDoesNotRestoreStock(t *testing.T) {
	svc, store, catalog, _ := testFixture(pendingOrder())

	got, err := svc.Cancel(context.Background(), "o1", "u1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled || store.orders["o1"].Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}
	// A pending order never decreased stock, so nothing may be credited back.
	if len(catalog.calls) != 0 {
		t.Fatalf("pending cancel touched stock: %v", catalog.calls)
	}
}

func TestCancelSubmittedRestoresStock(t *testing.T) {
	o := pendingOrder()
	o.Status = StatusSubmitted
	svc, store, catalog, _ := testFixture(o)
	// Simulate stock already reserved by the earlier submit.
	catalog.stock["p1"] = 8
	catalog.stock["p2"] = 9

	if _, err := svc.Cancel(context.Background(), "o1", "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if store.orders["o1"].Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", store.orders["o1"].Status)
	}
	if catalog.stock["p1"] != 10 || catalog.stock["p2"] != 10 {
		t.Fatalf("stock after cancel = %v, want restored to 10/10", catalog.stock)
	}
}

func TestCancelGuards(t *testing.T) {
	cases := []struct {
		status Status
		want   error
	}{
		{StatusShipped, ErrCannotCancelShipped},
		{StatusDelivered, ErrCannotCancelShipped},
		{StatusCancelled, ErrAlreadyCancelled},
	}
	for _, tc := range cases {
		o := pendingOrder()
		o.Status = tc.status
		svc, store, _, _ := testFixture(o)

		_, err := svc.Cancel(context.Background(), "o1", "u1")
		if !errors.Is(err, tc.want) {
			t.Errorf("cancel from %s: err = %v, want %v", tc.status, err, tc.want)
		}
		if store.orders["o1"].Status != tc.status {
			t.Errorf("cancel from %s mutated status to %s", tc.status, store.orders["o1"].Status)
		}
	}
}

func TestAdminTransitionsAreClosed(t *testing.T) {
	type transition struct {
		name string
		call func(svc *Service) error
		from Status
	}
	transitions := []transition{
		{"under-review", func(svc *Service) error {
			_, err := svc.MarkUnderReview(context.Background(), "o1")
			return err
		}, StatusSubmitted},
		{"ship", func(svc *Service) error {
			_, err := svc.MarkShipped(context.Background(), "o1")
			return err
		}, StatusUnderReview},
		{"deliver", func(svc *Service) error {
			_, err := svc.MarkDelivered(context.Background(), "o1")
			return err
		}, StatusShipped},
	}
	statuses := []Status{StatusPending, StatusSubmitted, StatusUnderReview, StatusShipped, StatusDelivered, StatusCancelled}

	for _, tr := range transitions {
		for _, status := range statuses {
			o := pendingOrder()
			o.Status = status
			svc, _, _, _ := testFixture(o)

			err := tr.call(svc)
			if status == tr.from {
				if err != nil {
					t.Errorf("%s from %s: unexpected error %v", tr.name, status, err)
				}
			} else if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s from %s: err = %v, want ErrInvalidTransition", tr.name, status, err)
			}
		}
	}
}

func TestMarkDeliveredStampsViaStore(t *testing.T) {
	o := pendingOrder()
	o.Status = StatusShipped
	svc, store, _, _ := testFixture(o)

	got, err := svc.MarkDelivered(context.Background(), "o1")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.Status != StatusDelivered || store.orders["o1"].Status != StatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", got.Status)
	}
}

func TestPaginationClamping(t *testing.T) {
	svc, store, _, _ := testFixture(pendingOrder())

	if _, err := svc.UserOrders(context.Background(), "u1", -3, 1000); err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.lastLimit != 100 || store.lastOffset != 0 {
		t.Fatalf("limit/offset = %d/%d, want 100/0", store.lastLimit, store.lastOffset)
	}

	if _, err := svc.UserOrders(context.Background(), "u1", 2, 0); err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.lastLimit != 10 || store.lastOffset != 20 {
		t.Fatalf("limit/offset = %d/%d, want 10/20", store.lastLimit, store.lastOffset)
	}
}

func TestUserOrdersEnrichesItems(t *testing.T) {
	svc, _, _, _ := testFixture(pendingOrder())

	page, err := svc.UserOrders(context.Background(), "u1", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalElements != 1 || page.TotalPages != 1 {
		t.Fatalf("page meta = %+v", page)
	}
	if len(page.Orders) != 1 || len(page.Orders[0].Items) != 2 {
		t.Fatalf("orders not enriched: %+v", page.Orders)
	}
}

func TestUserOrdersSurvivesCartOutage(t *testing.T) {
	svc, _, _, _ := testFixture(pendingOrder())
	svc.cart = &fakeCart{err: errors.New("cart down")}

	page, err := svc.UserOrders(context.Background(), "u1", 0, 10)
	if err != nil {
		t.Fatalf("listing must survive a cart outage, got %v", err)
	}
	if len(page.Orders) != 1 || len(page.Orders[0].Items) != 0 {
		t.Fatalf("expected order with empty items, got %+v", page.Orders)
	}
}
