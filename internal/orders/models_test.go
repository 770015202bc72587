package orders

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 5, 9, 123456789, time.UTC)
	got := GenerateOrderNumber(now)

	want := regexp.MustCompile(`^ORD-\d{8}-\d{6}-\d{4}$`)
	if !want.MatchString(got) {
		t.Fatalf("order number %q does not match %s", got, want)
	}
	if got[:19] != "ORD-20260828-140509" {
		t.Fatalf("date/time part wrong: %q", got)
	}
	// 123456789ns / 100000 % 10000 = 1234
	if got[20:] != "1234" {
		t.Fatalf("suffix = %q, want 1234", got[20:])
	}
}

func TestCanSubmit(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusSubmitted, StatusUnderReview, StatusShipped, StatusDelivered, StatusCancelled} {
		o := Order{Status: status}
		if got, want := o.CanSubmit(), status == StatusPending; got != want {
			t.Errorf("CanSubmit from %s = %v, want %v", status, got, want)
		}
	}
}

func TestCanCancel(t *testing.T) {
	cancellable := map[Status]bool{
		StatusPending:     true,
		StatusSubmitted:   true,
		StatusUnderReview: true,
		StatusShipped:     false,
		StatusDelivered:   false,
		StatusCancelled:   false,
	}
	for status, want := range cancellable {
		o := Order{Status: status}
		if got := o.CanCancel(); got != want {
			t.Errorf("CanCancel from %s = %v, want %v", status, got, want)
		}
	}
}

func TestHoldsStockReservation(t *testing.T) {
	if (&Order{Status: StatusPending}).HoldsStockReservation() {
		t.Error("pending order must not hold a reservation")
	}
	for _, status := range []Status{StatusSubmitted, StatusUnderReview, StatusShipped, StatusDelivered, StatusCancelled} {
		o := Order{Status: status}
		if !o.HoldsStockReservation() {
			t.Errorf("%s order should hold a reservation", status)
		}
	}
}
