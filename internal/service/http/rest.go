package httpsvc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

type healthResponse struct {
	Status      string  `json:"status"`
	FailureRate float64 `json:"failureRate"`
	TS          int64   `json:"ts"`
}

type toggleResponse struct {
	FailureRate float64 `json:"failureRate"`
}

type orderStatusResponse struct {
	ID     string             `json:"id"`
	Status domain.OrderStatus `json:"status"`
}

type payRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError отображает доменную ошибку в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var chargeErr *payment.ChargeError
	switch {
	case errors.As(err, &chargeErr):
		details := chargeErr.Reason
		if chargeErr.Err != nil {
			details = chargeErr.Err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "payment_failed_or_cb_open",
			Reason:  chargeErr.Reason,
			Details: details,
		})
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, domain.ErrMalformedRequest), errors.Is(err, domain.ErrAmountNegative):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Details: err.Error()})
	case errors.Is(err, domain.ErrOrderAlreadyPaid), errors.Is(err, domain.ErrOrderVersionConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Details: err.Error()})
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "UP",
		FailureRate: h.runtime.FailureRate(),
		TS:          h.now().UnixMilli(),
	})
}

// toggle меняет failure rate; значение вне [0,1] или нечисловое игнорируется.
func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("rate"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			err = h.runtime.SetFailureRate(rate)
		}
		if err != nil {
			h.logger.WithField("rate", raw).Warn("failure rate toggle ignored")
		} else {
			h.logger.WithField("rate", rate).Info("failure rate changed")
		}
	}
	writeJSON(w, http.StatusOK, toggleResponse{FailureRate: h.runtime.FailureRate()})
}

// charge вызывает «сырой» платёж без breaker и повторов.
func (h *Handler) charge(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Charge(r.Context(), "", decimal.Zero); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "random_fail"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "CHARGED"})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CreateOrder(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderStatusResponse{ID: order.ID, Status: order.Status})
}

// payOrder принимает необязательное тело {"amount": N}; без суммы (или с нулевой) списывается DefaultPayAmount.
func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	amount, err := decodeAmount(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.PayOrder(r.Context(), id, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{ID: order.ID, Status: order.Status})
}

func decodeAmount(r *http.Request) (decimal.Decimal, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return decimal.Decimal{}, errors.Join(domain.ErrMalformedRequest, err)
	}
	if len(body) == 0 {
		return domain.DefaultPayAmount, nil
	}

	var req payRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return decimal.Decimal{}, errors.Join(domain.ErrMalformedRequest, err)
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return domain.DefaultPayAmount, nil
	}
	return *req.Amount, nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.reader.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
