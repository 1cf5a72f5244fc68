package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "not found error",
			err:  ErrOrderNotFound,
			want: true,
		},
		{
			name: "wrapped not found error",
			err:  fmt.Errorf("%w: order-1", ErrOrderNotFound),
			want: true,
		},
		{
			name: "other error",
			err:  ErrCatalogUnavailable,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCatalogFailure(t *testing.T) {
	if !IsCatalogFailure(fmt.Errorf("call: %w", ErrCatalogUnavailable)) {
		t.Error("expected unavailable to be a catalog failure")
	}
	if !IsCatalogFailure(ErrCatalogMalformedReply) {
		t.Error("expected malformed reply to be a catalog failure")
	}
	if IsCatalogFailure(&UnknownProductError{ProductID: "p1"}) {
		t.Error("unknown product is a referential error, not a catalog failure")
	}
}

func TestUnknownProductError(t *testing.T) {
	err := error(&UnknownProductError{ProductID: "p9"})
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatal("expected UnknownProductError to unwrap to ErrUnknownProduct")
	}
	if err.Error() != "unknown product: p9" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestCreateOrderError(t *testing.T) {
	err := error(&CreateOrderError{
		Kind:      CreateFailureUnknownProduct,
		ProductID: "p9",
		Err:       &UnknownProductError{ProductID: "p9"},
	})

	var createErr *CreateOrderError
	if !errors.As(err, &createErr) {
		t.Fatal("expected errors.As to find CreateOrderError")
	}
	if createErr.Kind != CreateFailureUnknownProduct {
		t.Fatalf("unexpected kind: %s", createErr.Kind)
	}
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatal("expected chain to contain ErrUnknownProduct")
	}
}

func TestInvalidStatusError(t *testing.T) {
	err := error(&InvalidStatusError{Value: "SHIPPED"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatal("expected InvalidStatusError to unwrap to ErrInvalidStatus")
	}
}
