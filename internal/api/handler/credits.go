package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/grabvid/grabvid/internal/api/middleware"
	"github.com/grabvid/grabvid/internal/ledger"
	"github.com/grabvid/grabvid/internal/repository"
)

// CreditsHandler serves the signed-in user's balance, ledger history,
// and download history.
type CreditsHandler struct {
	credits *ledger.Service
	history repository.DownloadHistoryRepository
	logger  *slog.Logger
}

// NewCreditsHandler creates a credits handler.
func NewCreditsHandler(credits *ledger.Service, history repository.DownloadHistoryRepository, logger *slog.Logger) *CreditsHandler {
	return &CreditsHandler{credits: credits, history: history, logger: logger}
}

// BalanceResponse is the derived balance projection.
type BalanceResponse struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Expired   int64 `json:"expired"`
}

// Balance handles GET /api/credits/balance.
func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.credits.Balance(r.Context(), middleware.UserUUID(r))
	if err != nil {
		h.logger.Error("balance query failed", "error", err)
		respDomainErr(w, err)
		return
	}
	respData(w, BalanceResponse{
		Total:     balance.Total,
		Available: balance.Available,
		Expired:   balance.Expired,
	})
}

// TransactionResponse is one ledger row in history responses.
type TransactionResponse struct {
	TransNo     string     `json:"trans_no"`
	TransType   string     `json:"trans_type"`
	Credits     int64      `json:"credits"`
	OrderNo     string     `json:"order_no,omitempty"`
	Description string     `json:"description,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// History handles GET /api/credits/history.
func (h *CreditsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	txs, err := h.credits.History(r.Context(), middleware.UserUUID(r), limit, offset)
	if err != nil {
		h.logger.Error("credit history query failed", "error", err)
		respDomainErr(w, err)
		return
	}

	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			TransNo:     tx.TransNo,
			TransType:   string(tx.TransType),
			Credits:     tx.Credits,
			OrderNo:     tx.OrderNo,
			Description: tx.Description,
			ExpiredAt:   tx.ExpiredAt,
			CreatedAt:   tx.CreatedAt,
		})
	}
	respData(w, map[string]any{"transactions": out, "limit": limit, "offset": offset})
}

// DownloadResponse is one download-history row.
type DownloadResponse struct {
	DownloadNo      string    `json:"download_no"`
	Platform        string    `json:"platform"`
	OriginalURL     string    `json:"original_url,omitempty"`
	Resolution      string    `json:"resolution"`
	Quality         string    `json:"quality"`
	FileName        string    `json:"file_name"`
	FileSize        int64     `json:"file_size,omitempty"`
	CreditsConsumed int64     `json:"credits_consumed"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Downloads handles GET /api/downloads/history.
func (h *CreditsHandler) Downloads(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	rows, err := h.history.ListByUser(r.Context(), middleware.UserUUID(r), limit, offset)
	if err != nil {
		h.logger.Error("download history query failed", "error", err)
		respErr(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]DownloadResponse, 0, len(rows))
	for _, rec := range rows {
		out = append(out, DownloadResponse{
			DownloadNo:      rec.DownloadNo,
			Platform:        string(rec.Platform),
			OriginalURL:     rec.OriginalURL,
			Resolution:      rec.Resolution,
			Quality:         rec.Quality,
			FileName:        rec.FileName,
			FileSize:        rec.FileSize,
			CreditsConsumed: rec.CreditsConsumed,
			Status:          string(rec.Status),
			CreatedAt:       rec.CreatedAt,
		})
	}
	respData(w, map[string]any{"downloads": out, "limit": limit, "offset": offset})
}

// StatsResponse aggregates completed downloads for a user.
type StatsResponse struct {
	TotalDownloads       int64 `json:"total_downloads"`
	TotalCreditsConsumed int64 `json:"total_credits_consumed"`
	HDDownloads          int64 `json:"hd_downloads"`
	SDDownloads          int64 `json:"sd_downloads"`
}

// Stats handles GET /api/downloads/stats.
func (h *CreditsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.Stats(r.Context(), middleware.UserUUID(r))
	if err != nil {
		h.logger.Error("download stats query failed", "error", err)
		respErr(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respData(w, StatsResponse{
		TotalDownloads:       stats.TotalDownloads,
		TotalCreditsConsumed: stats.TotalCreditsConsumed,
		HDDownloads:          stats.HDDownloads,
		SDDownloads:          stats.SDDownloads,
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
