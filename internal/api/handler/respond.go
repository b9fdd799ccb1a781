// Package handler maps service results and domain errors onto the HTTP
// surface. Handlers never leak raw errors; every failure is a structured
// {code, message} body.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/grabvid/grabvid/internal/domain"
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope{Code: 0, Data: data})
}

func respErr(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Code: -1, Message: message})
}

// respDomainErr maps domain errors onto HTTP statuses with user-safe
// messages. Unknown errors become a generic 500; detail stays in logs.
func respDomainErr(w http.ResponseWriter, err error) {
	if ice, ok := domain.IsInsufficientCredits(err); ok {
		respErr(w, http.StatusPaymentRequired, ice.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrBatchTooLarge),
		errors.Is(err, domain.ErrNoValidURLs):
		respErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidVideoURL):
		respErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAuthRequired):
		respErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrPremiumRequired):
		respErr(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUpstreamResolution),
		errors.Is(err, domain.ErrNoMediaFound):
		respErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		respErr(w, http.StatusBadGateway, err.Error())
	default:
		respErr(w, http.StatusInternalServerError, "internal server error")
	}
}
