package offer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type offerResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HandleStartOffer runs one full exchange and answers with the assistant
// reply.
func (h *Handler) HandleStartOffer(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	req, err := h.svc.Validate(payload)
	if err != nil {
		writeError(w, err)
		return
	}

	// the router's request id when there is one, so access logs and the
	// ledger share a key; clients may resend an id, the ledger does not
	// treat it as unique
	id := middleware.GetReqID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Exchange-Id", id)

	reply, err := h.svc.Execute(WithExchangeID(r.Context(), id), req)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) && oe.Code == ErrorCancelled {
			// caller is gone, nobody to answer
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, offerResponse{Response: reply.Text})
}

func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("assistant offer bridge is running"))
}

func writeError(w http.ResponseWriter, err error) {
	var oe *Error
	if !errors.As(err, &oe) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
		return
	}
	writeJSON(w, statusFor(oe.Code), errorResponse{Error: oe.Reason, Details: oe.Details})
}

func statusFor(code ErrorCode) int {
	switch code {
	case ErrorBadRequest:
		return http.StatusBadRequest
	case ErrorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Str("component", "offer").Err(err).Msg("write response failed")
	}
}
