package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/invoice"
	"github.com/orumagideon/morine-gypsum/internal/orders"
)

type OrdersHandler struct {
	Service  *orders.Service
	Renderer *invoice.Renderer
	Log      *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
		r.Get("/{id}/invoice", h.orderInvoice)
	})
	r.Get("/api/invoices/{id}/download", h.downloadInvoice)
}

type orderItemReq struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type createOrderReq struct {
	CustomerName    string           `json:"customer_name"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerEmail   string           `json:"customer_email,omitempty"`
	DeliveryAddress string           `json:"delivery_address"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost,omitempty"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	Items           []orderItemReq   `json:"items"`

	SkipAdminEmail    bool `json:"skip_admin_email,omitempty"`
	SkipCustomerEmail bool `json:"skip_customer_email,omitempty"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	in := orders.NewOrder{
		CustomerName:          req.CustomerName,
		CustomerPhone:         req.CustomerPhone,
		CustomerEmail:         req.CustomerEmail,
		DeliveryAddress:       req.DeliveryAddress,
		PaymentMethod:         orders.PaymentMethod(req.PaymentMethod),
		Notes:                 req.Notes,
		ShippingCost:          req.ShippingCost,
		TotalOverride:         req.TotalAmount,
		SuppressAdminEmail:    req.SkipAdminEmail,
		SuppressCustomerEmail: req.SkipCustomerEmail,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, orders.NewItem{
			ProductID: it.ProductID, Quantity: it.Quantity, PriceOverride: it.Price,
		})
	}

	o, err := h.Service.SubmitOrder(r.Context(), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListOrders(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type updateOrderReq struct {
	Status           *string          `json:"status,omitempty"`
	PaymentStatus    *string          `json:"payment_status,omitempty"`
	CustomerName     *string          `json:"customer_name,omitempty"`
	CustomerPhone    *string          `json:"customer_phone,omitempty"`
	CustomerEmail    *string          `json:"customer_email,omitempty"`
	DeliveryAddress  *string          `json:"delivery_address,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
	TrackingNumber   *string          `json:"tracking_number,omitempty"`
	ShippingProvider *string          `json:"shipping_provider,omitempty"`
	TotalAmount      *decimal.Decimal `json:"total_amount,omitempty"`
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	patch := orders.Patch{
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		DeliveryAddress:  req.DeliveryAddress,
		Notes:            req.Notes,
		TrackingNumber:   req.TrackingNumber,
		ShippingProvider: req.ShippingProvider,
		TotalAmount:      req.TotalAmount,
	}
	if req.Status != nil {
		s := orders.Status(*req.Status)
		patch.Status = &s
	}
	if req.PaymentStatus != nil {
		s := orders.PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &s
	}

	o, err := h.Service.UpdateOrder(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteOrder(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"detail": fmt.Sprintf("Order ID %d deleted successfully", id),
	})
}

// orderInvoice streams the order's invoice PDF, regenerating the artifact if
// it went missing.
func (h *OrdersHandler) orderInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if o.Invoice == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no invoice record found for this order"})
		return
	}

	path := h.Renderer.Path(o.Invoice.ID)
	if !h.Renderer.Exists(o.Invoice.ID) {
		path, err = h.Renderer.Render(o)
		if err != nil {
			h.Log.Error("invoice render failed", zap.Int64("order_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not render invoice"})
			return
		}
	}
	servePDF(w, r, path, o.Invoice.ID)
}

func (h *OrdersHandler) downloadInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.Service.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if !h.Renderer.Exists(inv.ID) {
		o, err := h.Service.GetOrder(r.Context(), inv.OrderID)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		if _, err := h.Renderer.Render(o); err != nil {
			h.Log.Error("invoice render failed", zap.Int64("invoice_id", inv.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not render invoice"})
			return
		}
	}
	servePDF(w, r, h.Renderer.Path(inv.ID), inv.ID)
}

func servePDF(w http.ResponseWriter, r *http.Request, path string, invoiceID int64) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="invoice_%d.pdf"`, invoiceID))
	http.ServeFile(w, r, path)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
