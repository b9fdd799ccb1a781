package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/grabvid/grabvid/internal/auth"
	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/internal/ledger"
)

// AdminHandler serves the operator surface: credit grants, purchase
// settlement, and API key provisioning. All routes sit behind the
// static admin key.
type AdminHandler struct {
	credits          *ledger.Service
	keys             *auth.APIKeyService
	grantValidMonths int
	logger           *slog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(credits *ledger.Service, keys *auth.APIKeyService, grantValidMonths int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		credits:          credits,
		keys:             keys,
		grantValidMonths: grantValidMonths,
		logger:           logger,
	}
}

// GrantRequest is the JSON body for credit grants.
type GrantRequest struct {
	UserUUID    string `json:"user_uuid"`
	Credits     int64  `json:"credits"`
	Description string `json:"description"`
	ValidMonths int    `json:"valid_months,omitempty"`
}

// Grant handles POST /api/admin/credits/grant.
func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserUUID == "" || req.Credits <= 0 {
		respErr(w, http.StatusBadRequest, "user_uuid and positive credits are required")
		return
	}

	months := req.ValidMonths
	if months == 0 {
		months = h.grantValidMonths
	}

	if err := h.credits.Grant(r.Context(), req.UserUUID, req.Credits, req.Description, months); err != nil {
		h.logger.Error("credit grant failed", "user_uuid", req.UserUUID, "error", err)
		respErr(w, http.StatusInternalServerError, "failed to grant credits")
		return
	}
	respData(w, map[string]any{"granted": req.Credits})
}

// ChargeRequest is the JSON body for settled purchase orders.
type ChargeRequest struct {
	UserUUID    string `json:"user_uuid"`
	Credits     int64  `json:"credits"`
	OrderNo     string `json:"order_no"`
	Description string `json:"description"`
	ValidMonths int    `json:"valid_months,omitempty"`
}

// Charge handles POST /api/admin/credits/charge. The order number must
// not have been applied before; the settlement flow transitions each
// order exactly once.
func (h *AdminHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserUUID == "" || req.Credits <= 0 || req.OrderNo == "" {
		respErr(w, http.StatusBadRequest, "user_uuid, order_no and positive credits are required")
		return
	}

	if _, err := h.credits.FindByOrderNo(r.Context(), req.OrderNo); err == nil {
		respErr(w, http.StatusConflict, "order already applied")
		return
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		h.logger.Error("order lookup failed", "order_no", req.OrderNo, "error", err)
		respErr(w, http.StatusInternalServerError, "failed to apply charge")
		return
	}

	months := req.ValidMonths
	if months == 0 {
		months = h.grantValidMonths
	}

	if err := h.credits.Charge(r.Context(), req.UserUUID, req.Credits, req.OrderNo, req.Description, months); err != nil {
		h.logger.Error("credit charge failed", "order_no", req.OrderNo, "error", err)
		respErr(w, http.StatusInternalServerError, "failed to apply charge")
		return
	}
	respData(w, map[string]any{"charged": req.Credits, "order_no": req.OrderNo})
}

// ProvisionKeyRequest is the JSON body for API key provisioning.
type ProvisionKeyRequest struct {
	UserUUID string `json:"user_uuid"`
	Title    string `json:"title"`
	Premium  bool   `json:"premium"`
}

// ProvisionKey handles POST /api/admin/apikeys. The plaintext key is
// returned exactly once.
func (h *AdminHandler) ProvisionKey(w http.ResponseWriter, r *http.Request) {
	var req ProvisionKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserUUID == "" {
		respErr(w, http.StatusBadRequest, "user_uuid is required")
		return
	}

	plaintext, key, err := h.keys.Provision(r.Context(), req.UserUUID, req.Title, req.Premium)
	if err != nil {
		h.logger.Error("api key provisioning failed", "user_uuid", req.UserUUID, "error", err)
		respErr(w, http.StatusInternalServerError, "failed to provision API key")
		return
	}

	respData(w, map[string]any{
		"api_key": plaintext,
		"key_id":  key.KeyID,
		"premium": key.Premium,
	})
}

// RevokeKeyRequest is the JSON body for key revocation.
type RevokeKeyRequest struct {
	KeyID string `json:"key_id"`
}

// RevokeKey handles DELETE /api/admin/apikeys.
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	var req RevokeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.KeyID == "" {
		respErr(w, http.StatusBadRequest, "key_id is required")
		return
	}

	if err := h.keys.Revoke(r.Context(), req.KeyID); err != nil {
		h.logger.Error("api key revocation failed", "key_id", req.KeyID, "error", err)
		respErr(w, http.StatusInternalServerError, "failed to revoke API key")
		return
	}
	respData(w, map[string]any{"revoked": req.KeyID})
}
