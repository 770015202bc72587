package orders

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsDuplicateCart(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "cart_id unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "orders_cart_id_key"},
			want: true,
		},
		{
			name: "wrapped cart_id violation",
			err:  fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_cart_id_key"}),
			want: true,
		},
		{
			name: "order_number collision is not a duplicate cart",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"},
			want: false,
		},
		{
			name: "other pg error",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "orders_cart_id_key"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDuplicateCart(tc.err); got != tc.want {
				t.Fatalf("isDuplicateCart(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
