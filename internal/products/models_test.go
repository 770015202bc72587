package products

import (
	"errors"
	"testing"
)

func TestDeltaFor(t *testing.T) {
	cases := []struct {
		action   string
		quantity int
		want     int
		wantErr  error
	}{
		{ActionIncrease, 5, 5, nil},
		{ActionDecrease, 5, -5, nil},
		{ActionIncrease, 0, 0, ErrInvalidQuantity},
		{ActionDecrease, -3, 0, ErrInvalidQuantity},
		{"restock", 5, 0, ErrInvalidAction},
		{"", 5, 0, ErrInvalidAction},
	}

	for _, tc := range cases {
		got, err := deltaFor(tc.action, tc.quantity)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("deltaFor(%q, %d): err = %v, want %v", tc.action, tc.quantity, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("deltaFor(%q, %d) = %d, want %d", tc.action, tc.quantity, got, tc.want)
		}
	}
}
