package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/catalog"
)

// Catalog is the product surface the handler needs.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Get(ctx context.Context, id int64) (*catalog.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (*catalog.Product, error)
}

type CatalogHandler struct {
	Repo Catalog
	Log  *zap.Logger
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/api/products", h.listProducts)
	r.Get("/api/products/{id}", h.getProduct)
	r.Put("/api/products/{id}/stock", h.adjustStock)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	out, err := h.Repo.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if out == nil {
		out = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type adjustStockReq struct {
	Adjustment int `json:"adjustment"`
}

// adjustStock applies a signed stock correction: positive restocks, negative
// writes off. Order submission never goes through here.
func (h *CatalogHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req adjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Adjustment == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "adjustment must be non-zero"})
		return
	}

	p, err := h.Repo.AdjustStock(r.Context(), id, req.Adjustment)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Info("stock adjusted",
		zap.Int64("product_id", id),
		zap.Int("adjustment", req.Adjustment),
		zap.Int("stock_quantity", p.StockQuantity))
	writeJSON(w, http.StatusOK, p)
}
