package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/orders"
)

type PaymentsHandler struct {
	Reconciler *orders.Reconciler
	Log        *zap.Logger
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/orders/{id}/verify-payment", h.verifyPayment)
	r.Post("/api/orders/{id}/mpesa-push", h.initiatePush)
	r.Get("/api/orders/{id}/payment-status", h.paymentStatus)
	r.Post("/api/payments/mpesa/webhook", h.webhook)
}

type verifyPaymentReq struct {
	MpesaCode   string `json:"mpesa_code"`
	PhoneNumber string `json:"phone_number"`
}

func (h *PaymentsHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req verifyPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	o, err := h.Reconciler.VerifyPayment(r.Context(), id, req.MpesaCode, req.PhoneNumber)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detail": "payment verified",
		"order":  o,
	})
}

type initiatePushReq struct {
	PhoneNumber string           `json:"phone_number"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

func (h *PaymentsHandler) initiatePush(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req initiatePushReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	requestID, err := h.Reconciler.InitiatePush(r.Context(), id, req.PhoneNumber, req.Amount)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"detail":           "push initiated",
		"mpesa_request_id": requestID,
	})
}

func (h *PaymentsHandler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.Reconciler.PaymentStatus(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// webhook acknowledges every benign event so the provider stops retrying.
// Only a malformed payload or an unknown order is rejected.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var ev orders.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	res, err := h.Reconciler.HandleWebhook(r.Context(), ev)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	body := map[string]any{"detail": "received"}
	if res.Ignored {
		body["detail"] = "ignored"
	} else if !res.Applied {
		body["detail"] = "already verified"
	}
	writeJSON(w, http.StatusOK, body)
}
