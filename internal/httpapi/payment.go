package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/middleware"
	"automedic-booking/internal/model"
)

const msgInvalidPay = "Invalid request. Add items with valid prices to proceed."

// payRequest takes the amount in minor units, the unit the payment provider
// charges in. Clients that used to post dollars (and had the server multiply
// by 100) must send cents now: {"amount": 2500} is $25.00. A fractional
// amount such as 25.5 fails to decode and is rejected with 400 rather than
// being rounded.
type payRequest struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type payResponse struct {
	Message      string `json:"message"`
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"intentId"`
}

func (s *server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidPay)
		return
	}

	pi, err := s.payments.CreateIntent(r.Context(), req.Amount, model.IntentMetadata{
		OrderName:  req.Name,
		CustomerID: middleware.IdentityFrom(r.Context()).UserID,
	})
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			writeMessage(w, http.StatusBadRequest, msgInvalidPay)
		case apperr.KindInfrastructure:
			writeMessage(w, http.StatusServiceUnavailable, apperr.MessageOf(err))
		default:
			s.log.Error("create intent", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, payResponse{
		Message:      "Payment Initiated",
		ClientSecret: pi.ClientSecret,
		IntentID:     pi.ID,
	})
}

// webhook hands the exact request bytes to the coordinator; signature
// verification needs them unparsed.
func (s *server) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeMessage(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	err = s.payments.HandleWebhookEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, apperr.ErrInvalidSignature), errors.Is(err, apperr.ErrInvalidPayload):
		writeMessage(w, http.StatusBadRequest, apperr.MessageOf(err))
	default:
		// non-2xx makes the provider deliver again
		s.log.Error("webhook", zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, apperr.MessageOf(err))
	}
}
