package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vhoang/stockguard/internal/core/service"
	"github.com/vhoang/stockguard/internal/lock"
)

type HTTPHandler struct {
	facade *service.Facade
	stocks *service.StockService
}

type DecrementRequest struct {
	ItemID   string `json:"item_id"`
	Amount   int    `json:"amount"`
	Strategy string `json:"strategy"`
}

type DecrementResponse struct {
	Success  bool   `json:"success"`
	Quantity int    `json:"quantity"`
	Message  string `json:"message,omitempty"`
}

func NewHTTPHandler(facade *service.Facade, stocks *service.StockService) *HTTPHandler {
	return &HTTPHandler{facade: facade, stocks: stocks}
}

func (h *HTTPHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DecrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, DecrementResponse{Message: "invalid request body"})
		return
	}
	if req.ItemID == "" || req.Amount <= 0 || req.Strategy == "" {
		writeJSON(w, http.StatusBadRequest, DecrementResponse{Message: "missing required fields"})
		return
	}

	qty, err := h.facade.Decrement(r.Context(), req.Strategy, req.ItemID, req.Amount)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		switch {
		case errors.Is(err, service.ErrUnknownStrategy):
			status = http.StatusBadRequest
			message = err.Error()
		case errors.Is(err, service.ErrItemNotFound):
			status = http.StatusNotFound
			message = "item not found"
		case errors.Is(err, service.ErrInsufficientStock):
			status = http.StatusConflict
			message = "insufficient stock"
		case errors.Is(err, service.ErrConcurrentModification):
			status = http.StatusConflict
			message = "concurrent modification, retry"
		case errors.Is(err, lock.ErrLockTimeout):
			status = http.StatusServiceUnavailable
			message = "lock timeout, retry"
		}

		writeJSON(w, status, DecrementResponse{Message: message})
		return
	}

	writeJSON(w, http.StatusOK, DecrementResponse{Success: true, Quantity: qty})
}

func (h *HTTPHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		writeJSON(w, http.StatusBadRequest, DecrementResponse{Message: "item_id is required"})
		return
	}

	qty, err := h.stocks.Quantity(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, DecrementResponse{Message: "item not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, DecrementResponse{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, DecrementResponse{Success: true, Quantity: qty})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
