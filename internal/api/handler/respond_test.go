package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grabvid/grabvid/internal/domain"
)

func TestRespDomainErr_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid url", domain.ErrInvalidURL, http.StatusBadRequest},
		{"batch too large", domain.ErrBatchTooLarge, http.StatusBadRequest},
		{"no valid urls", domain.ErrNoValidURLs, http.StatusBadRequest},
		{"invalid token", domain.ErrInvalidToken, http.StatusBadRequest},
		{"invalid video url", domain.ErrInvalidVideoURL, http.StatusBadRequest},
		{"auth required", domain.ErrAuthRequired, http.StatusUnauthorized},
		{"premium required", domain.ErrPremiumRequired, http.StatusForbidden},
		{"resolution exhausted", domain.ErrUpstreamResolution, http.StatusUnprocessableEntity},
		{"no media", domain.ErrNoMediaFound, http.StatusUnprocessableEntity},
		{"upstream gone", domain.ErrUpstreamUnavailable, http.StatusBadGateway},
		{"insufficient credits", &domain.InsufficientCreditsError{Available: 1, Required: 2}, http.StatusPaymentRequired},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respDomainErr(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var env envelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if env.Code != -1 {
				t.Errorf("code = %d, want -1", env.Code)
			}
			if env.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

func TestRespDomainErr_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	respDomainErr(w, errors.New("pq: connection reset by peer"))

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Message != "internal server error" {
		t.Errorf("message = %q, internal detail must not leak", env.Message)
	}
}

func TestRespDomainErr_WrappedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	respDomainErr(w, errors.Join(domain.ErrAuthRequired, errors.New("no session cookie")))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
