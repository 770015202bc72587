package cart

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeSubtotal(t *testing.T) {
	item := Item{ProductID: "p1", Quantity: 3, Price: dec("19.99")}
	item.ComputeSubtotal()

	if !item.Subtotal.Equal(dec("59.97")) {
		t.Fatalf("subtotal = %s, want 59.97", item.Subtotal)
	}
}

func TestComputeTotalIsSumOfSubtotals(t *testing.T) {
	c := Cart{
		Items: []Item{
			{Quantity: 2, Price: dec("10.00"), Subtotal: dec("20.00")},
			{Quantity: 1, Price: dec("5.50"), Subtotal: dec("5.50")},
			{Quantity: 3, Price: dec("0.99"), Subtotal: dec("2.97")},
		},
	}
	if total := c.ComputeTotal(); !total.Equal(dec("28.47")) {
		t.Fatalf("total = %s, want 28.47", total)
	}
}

func TestComputeTotalEmptyCart(t *testing.T) {
	var c Cart
	if total := c.ComputeTotal(); !total.Equal(decimal.Zero) {
		t.Fatalf("total of empty cart = %s, want 0", total)
	}
	if !c.IsEmpty() {
		t.Fatal("cart with no items should be empty")
	}
}
