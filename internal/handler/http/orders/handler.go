package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/app/orders"
	"github.com/SeanGareth505/JobAssessment/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	service orders.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(s orders.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateOrder", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOrder(w, res, http.StatusCreated)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOrder(w, res, http.StatusOK)
}

func (h *OrderHandler) UpdateLineItems(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	var req orders.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for UpdateLineItems", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.UpdateLineItems(r.Context(), orderID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOrder(w, res, http.StatusOK)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	var req orders.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for UpdateStatus", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	idempotencyKey := r.Header.Get(idempotencyKeyHeader)
	res, err := h.service.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status), idempotencyKey)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOrder(w, res, http.StatusOK)
}

// writeError maps the closed error kinds onto status codes so clients can
// tell a rejected transition (no retry) from a conflict (re-read and retry).
func (h *OrderHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		http.Error(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrCustomerNotFound):
		http.Error(w, "Customer not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, orders.ErrInvalidOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Unhandled error in order handler", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeOrder(w http.ResponseWriter, res *orders.OrderResponse, status int) {
	// The version doubles as an opaque ETag so callers can detect conflicts
	// before writing.
	w.Header().Set("ETag", fmt.Sprintf("%q", fmt.Sprintf("%d", res.Version)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}
