package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/idempotency"
)

type errorResponse struct {
	Error string `json:"error"`
}

// noticeResponse — ответ "нечего делать": не ошибка, а сообщение для пользователя.
type noticeResponse struct {
	Notice string `json:"notice"`
}

func encodeJSON(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := encodeJSON(payload)
	if err != nil {
		log.WithError(err).Error("failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	writeRaw(w, code, body)
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if len(body) == 0 {
		return
	}
	if _, err := w.Write(body); err != nil {
		log.WithError(err).Warn("failed to write JSON response")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithDomainError отвечает уведомлением для "нечего делать" и ошибкой
// с кодом из mapErrorToStatusCode для остального.
func respondWithDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	code, payload := errorPayload(err)
	if code >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	}
	respondWithJSON(w, code, payload)
}

func errorPayload(err error) (int, any) {
	if domain.IsNotice(err) {
		return http.StatusOK, noticeResponse{Notice: err.Error()}
	}
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		return code, errorResponse{Error: "internal error"}
	}
	return code, errorResponse{Error: err.Error()}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProductIDConflict),
		errors.Is(err, domain.ErrOrderDateConflict),
		errors.Is(err, domain.ErrIdempotencyHashMismatch),
		errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
