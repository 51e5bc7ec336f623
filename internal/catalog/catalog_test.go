package catalog

import (
	"testing"
	"time"

	"github.com/albapepper/orderpulse/internal/model"
)

func TestCatalogKeepsOrder(t *testing.T) {
	c := New([]model.Product{
		{Code: "b", Name: "B", Price: 2},
		{Code: "a", Name: "A", Price: 1},
		{Code: "b", Name: "B2", Price: 3},
	})
	got := c.Products()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Code != "b" || got[0].Name != "B2" || got[1].Code != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestCatalogUpdatePrice(t *testing.T) {
	c := NewDefault()
	if c.Len() != len(Default) {
		t.Fatalf("len = %d, want %d", c.Len(), len(Default))
	}
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	price, ok := c.UpdatePrice("123456", at, func(p float64) float64 { return p + 1 })
	if !ok {
		t.Fatalf("product not found")
	}
	p, _ := c.Get("123456")
	if p.Price != price || !p.UpdatedAt.Equal(at) {
		t.Fatalf("price not stored: %+v", p)
	}
	if _, ok := c.UpdatePrice("missing", at, func(p float64) float64 { return p }); ok {
		t.Fatalf("expected missing product to report false")
	}
}
