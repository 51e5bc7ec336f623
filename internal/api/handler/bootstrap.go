package handler

import (
	"net/http"

	"github.com/albapepper/orderpulse/internal/cache"
)

const productsCacheKey = "products"

// GetProducts returns the tracked products with their latest prices.
// Served from storage once a cycle has persisted them, from the in-process
// catalog before that.
// @Summary List products
// @Description Returns every tracked product with its current price, used by the dashboard and chat front end.
// @Tags bootstrap
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /products [get]
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, productsCacheKey, cache.TTLProducts, func() (interface{}, error) {
		products, err := h.store.ListProducts(r.Context())
		if err != nil {
			h.logger.Warn("List products failed, using catalog", "error", err)
		}
		if len(products) == 0 {
			products = h.runner.Products()
		}
		return map[string]interface{}{"products": products}, nil
	})
}

// invalidateReads drops cached reads that a new cycle makes stale.
func (h *Handler) invalidateReads() {
	n := h.cache.InvalidatePrefix("snapshot:") +
		h.cache.InvalidatePrefix("daily:") +
		h.cache.InvalidatePrefix(productsCacheKey)
	if n > 0 {
		h.logger.Debug("Cache invalidated", "keys", n)
	}
}
