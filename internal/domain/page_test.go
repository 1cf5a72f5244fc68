package domain

import (
	"errors"
	"testing"
)

func TestLastPage(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{total: 25, limit: 10, want: 3},
		{total: 20, limit: 10, want: 2},
		{total: 1, limit: 10, want: 1},
		{total: 0, limit: 10, want: 0},
		{total: 5, limit: 0, want: 0},
	}

	for _, tt := range tests {
		if got := LastPage(tt.total, tt.limit); got != tt.want {
			t.Errorf("LastPage(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestPageRequestSkip(t *testing.T) {
	if got := (PageRequest{Page: 1, Limit: 10}).Skip(); got != 0 {
		t.Fatalf("expected skip 0, got %d", got)
	}
	if got := (PageRequest{Page: 3, Limit: 10}).Skip(); got != 20 {
		t.Fatalf("expected skip 20, got %d", got)
	}
}

func TestOrderFilterMatches(t *testing.T) {
	order := Order{Status: OrderStatusPending}
	if !(OrderFilter{}).Matches(order) {
		t.Fatal("empty filter must match every order")
	}
	if !(OrderFilter{Status: OrderStatusPending}).Matches(order) {
		t.Fatal("expected status filter to match")
	}
	if (OrderFilter{Status: OrderStatusDelivered}).Matches(order) {
		t.Fatal("expected status filter to reject")
	}
}

func TestDistinctProductIDs(t *testing.T) {
	ids := DistinctProductIDs([]OrderLine{
		{ProductID: "p2"}, {ProductID: "p1"}, {ProductID: "p2"},
	})
	if len(ids) != 2 || ids[0] != "p2" || ids[1] != "p1" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestPageRequestNormalize(t *testing.T) {
	got, err := PageRequest{}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Page != DefaultPage || got.Limit != DefaultPageLimit {
		t.Fatalf("defaults not applied: %+v", got)
	}

	if _, err := (PageRequest{Page: -1, Limit: 10}).Normalize(); !errors.Is(err, ErrInvalidPagination) {
		t.Fatalf("expected ErrInvalidPagination, got %v", err)
	}
	if _, err := (PageRequest{Page: 1, Limit: -5}).Normalize(); !errors.Is(err, ErrInvalidPagination) {
		t.Fatalf("expected ErrInvalidPagination, got %v", err)
	}
	if _, err := (PageRequest{Status: "SHIPPED"}).Normalize(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
