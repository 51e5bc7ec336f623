// Package catalog tracks the products whose orders are sampled and holds
// their current prices.
package catalog

import (
	"sync"
	"time"

	"github.com/albapepper/orderpulse/internal/model"
)

// Default is the built-in product list with starting prices.
var Default = []model.Product{
	{Code: "123456", Name: "Xiaomi Redmi Note 12 smartphone", Price: 19999.99},
	{Code: "789012", Name: "JBL Tune 510BT headphones", Price: 3499.99},
	{Code: "345678", Name: "ASUS VivoBook 15 laptop", Price: 54999.99},
	{Code: "901234", Name: "Apple Watch Series 9", Price: 42999.99},
	{Code: "567890", Name: "Samsung Galaxy Tab S9 tablet", Price: 72999.99},
	{Code: "234567", Name: "Huawei Band 8 fitness tracker", Price: 2999.99},
	{Code: "890123", Name: "Yandex Station Mini 2 speaker", Price: 8999.99},
	{Code: "456789", Name: "LG 24MP400-B monitor", Price: 12999.99},
	{Code: "012345", Name: "Logitech MX Keys keyboard", Price: 11999.99},
	{Code: "678901", Name: "Razer Viper wireless mouse", Price: 6999.99},
}

// Catalog is a thread-safe, insertion-ordered product table.
type Catalog struct {
	mu       sync.RWMutex
	order    []string
	products map[string]model.Product
}

// New creates a catalog from the given products. Later duplicates of a code
// replace earlier ones but keep the first position.
func New(products []model.Product) *Catalog {
	c := &Catalog{products: make(map[string]model.Product, len(products))}
	for _, p := range products {
		if _, ok := c.products[p.Code]; !ok {
			c.order = append(c.order, p.Code)
		}
		c.products[p.Code] = p
	}
	return c
}

// NewDefault creates a catalog seeded with Default.
func NewDefault() *Catalog {
	return New(Default)
}

// Products returns a copy of all products in catalog order.
func (c *Catalog) Products() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Product, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.products[code])
	}
	return out
}

// Get returns the product with the given code.
func (c *Catalog) Get(code string) (model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[code]
	return p, ok
}

// Len returns the number of tracked products.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// UpdatePrice applies fn to the current price of code and stores the result.
// Returns the new price and false if the product is not tracked.
func (c *Catalog) UpdatePrice(code string, at time.Time, fn func(float64) float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[code]
	if !ok {
		return 0, false
	}
	p.Price = fn(p.Price)
	p.UpdatedAt = at
	c.products[code] = p
	return p.Price, true
}
