package domain

import "testing"

func TestComputeTotals(t *testing.T) {
	policy := PricingPolicy{Currency: "USD", TaxRateBasisPoints: 1000, FlatShipping: 1000}

	tests := []struct {
		name     string
		items    []OrderLineItem
		discount int64
		want     OrderTotals
	}{
		{
			name: "two lines",
			items: []OrderLineItem{
				{UnitPrice: 1000, Quantity: 2, Total: LineTotal(1000, 2)},
				{UnitPrice: 500, Quantity: 1, Total: LineTotal(500, 1)},
			},
			want: OrderTotals{Subtotal: 2500, Tax: 250, Shipping: 1000, Discount: 0, Total: 3750},
		},
		{
			name:  "rounds tax half up",
			items: []OrderLineItem{{UnitPrice: 5, Quantity: 1, Total: 5}},
			want:  OrderTotals{Subtotal: 5, Tax: 1, Shipping: 1000, Total: 1006},
		},
		{
			name:     "negative discount ignored",
			items:    []OrderLineItem{{UnitPrice: 100, Quantity: 1, Total: 100}},
			discount: -50,
			want:     OrderTotals{Subtotal: 100, Tax: 10, Shipping: 1000, Total: 1110},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.items, policy, tc.discount)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			if !got.Consistent() {
				t.Fatalf("totals not consistent: %+v", got)
			}
		})
	}
}

func TestNewPageInfo(t *testing.T) {
	info := NewPageInfo(2, 10, 25)
	if info.TotalPages != 3 || !info.HasNext || !info.HasPrev {
		t.Fatalf("unexpected page info %+v", info)
	}
	last := NewPageInfo(3, 10, 25)
	if last.HasNext {
		t.Fatalf("expected last page, got %+v", last)
	}
	empty := NewPageInfo(1, 10, 0)
	if empty.TotalPages != 0 || empty.HasNext || empty.HasPrev {
		t.Fatalf("unexpected empty page info %+v", empty)
	}
}

func TestOrderStatsAdd(t *testing.T) {
	var stats OrderStats
	stats.Add(OrderStatusPending, 100)
	stats.Add(OrderStatusDelivered, 200)
	stats.Add(OrderStatusCancelled, 400)

	if stats.TotalOrders != 3 {
		t.Fatalf("expected 3 orders, got %d", stats.TotalOrders)
	}
	if stats.TotalRevenue != 300 {
		t.Fatalf("cancelled revenue must be excluded, got %d", stats.TotalRevenue)
	}
	if stats.Count(OrderStatusCancelled) != 1 {
		t.Fatalf("expected one cancelled order")
	}
}
