package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEncodeDecodeQueue_PreservesOrder(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	draft := OrderDraft{
		SupplierID:   "sup-1",
		SupplierName: "Spice Traders",
		Items:        []OrderItem{{Name: "Chilli", Quantity: decimal.RequireFromString("2.5"), Unit: "kg"}},
		TotalAmount:  decimal.RequireFromString("312.50"),
	}

	orders := []OfflineOrder{
		NewOfflineOrder("c", draft, now),
		NewOfflineOrder("a", draft, now.Add(time.Millisecond)),
		NewOfflineOrder("b", draft, now.Add(2*time.Millisecond)),
	}

	data, err := EncodeQueue(orders)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeQueue(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(decoded))
	}
	for i, id := range []string{"c", "a", "b"} {
		if decoded[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, decoded[i].ID)
		}
	}
	if !decoded[0].TotalAmount.Equal(draft.TotalAmount) {
		t.Fatalf("amount changed: %s", decoded[0].TotalAmount)
	}
	if !decoded[0].Items[0].Quantity.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("quantity changed: %s", decoded[0].Items[0].Quantity)
	}
}

func TestEncodeQueue_EmptyIsArray(t *testing.T) {
	data, err := EncodeQueue(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"orders":[]`) {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestDecodeQueue_LegacyArray(t *testing.T) {
	raw := `[{"id":"1700000000000","supplierId":"1","supplierName":"Fresh Vegetables Delhi",
		"items":[{"name":"Onions","quantity":10,"unit":"kg"}],"totalAmount":250,
		"timestamp":1700000000000,"status":"pending"}]`

	orders, err := DecodeQueue([]byte(raw))
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if len(orders) != 1 || orders[0].SupplierName != "Fresh Vegetables Delhi" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
	if !orders[0].TotalAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected amount: %s", orders[0].TotalAmount)
	}
}

func TestDecodeQueue_Empty(t *testing.T) {
	orders, err := DecodeQueue([]byte("   "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected empty queue, got %d", len(orders))
	}
}

func TestDecodeQueue_Corrupt(t *testing.T) {
	cases := map[string]string{
		"garbage":        `{not json`,
		"empty id":       `{"version":1,"orders":[{"id":"","status":"pending"}]}`,
		"unknown status": `{"version":1,"orders":[{"id":"x","status":"lost"}]}`,
		"duplicate id":   `{"version":1,"orders":[{"id":"x","status":"pending"},{"id":"x","status":"failed"}]}`,
		"future version": `{"version":99,"orders":[]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeQueue([]byte(raw)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}
