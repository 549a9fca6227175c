package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"go.uber.org/zap"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindEmptyCart:           http.StatusBadRequest,
	apperr.KindPaymentVerification: http.StatusBadRequest,
	apperr.KindUnauthorized:        http.StatusForbidden,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindInvalidTransition:   http.StatusConflict,
	apperr.KindConflict:            http.StatusConflict,
	apperr.KindInsufficientStock:   http.StatusUnprocessableEntity,
	apperr.KindInsufficientFunds:   http.StatusUnprocessableEntity,
	apperr.KindPaymentInitiation:   http.StatusBadGateway,
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err by kind. Anything without a known kind is a 500
// whose cause is logged but never echoed to the caller.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if code, ok := statusByKind[ae.Kind]; ok {
			writeJSON(w, code, errorBody{Error: errorDetail{Kind: ae.Kind, Message: ae.Message, Details: ae.Details}})
			return
		}
	}
	logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Kind:    apperr.KindInternal,
		Message: "internal error",
	}})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: apperr.KindValidation, Message: msg}})
}
