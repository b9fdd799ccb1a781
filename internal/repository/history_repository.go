package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

// SQLiteDownloadHistoryRepository implements DownloadHistoryRepository
// over SQLite.
type SQLiteDownloadHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteDownloadHistoryRepository creates a history repository.
func NewSQLiteDownloadHistoryRepository(db *sql.DB) *SQLiteDownloadHistoryRepository {
	return &SQLiteDownloadHistoryRepository{db: db}
}

// Insert appends one history row.
func (r *SQLiteDownloadHistoryRepository) Insert(ctx context.Context, rec *domain.DownloadHistoryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO download_history (
			download_no, user_uuid, platform, video_url, original_url,
			resolution, quality, file_name, file_size, credits_consumed,
			status, username, status_id, video_id, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DownloadNo, nullString(rec.UserUUID), string(rec.Platform),
		rec.VideoURL, nullString(rec.OriginalURL),
		nullString(rec.Resolution), nullString(rec.Quality),
		nullString(rec.FileName), rec.FileSize, rec.CreditsConsumed,
		string(rec.Status), nullString(rec.Username), nullString(rec.StatusID),
		nullString(rec.VideoID), nullString(rec.Description),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert download history: %w", err)
	}
	return nil
}

// ListByUser returns history rows newest-first.
func (r *SQLiteDownloadHistoryRepository) ListByUser(ctx context.Context, userUUID string, limit, offset int) ([]*domain.DownloadHistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, download_no, user_uuid, platform, video_url, original_url,
			resolution, quality, file_name, file_size, credits_consumed,
			status, username, status_id, video_id, description, created_at
		 FROM download_history
		 WHERE user_uuid = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userUUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query download history: %w", err)
	}
	defer rows.Close()

	var result []*domain.DownloadHistoryRecord
	for rows.Next() {
		var rec domain.DownloadHistoryRecord
		var platform, status, createdAt string
		var userID, originalURL, resolution, quality, fileName, username, statusID, videoID, description sql.NullString
		var fileSize sql.NullInt64

		err := rows.Scan(&rec.ID, &rec.DownloadNo, &userID, &platform, &rec.VideoURL,
			&originalURL, &resolution, &quality, &fileName, &fileSize,
			&rec.CreditsConsumed, &status, &username, &statusID, &videoID,
			&description, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		rec.UserUUID = userID.String
		rec.Platform = domain.Platform(platform)
		rec.OriginalURL = originalURL.String
		rec.Resolution = resolution.String
		rec.Quality = quality.String
		rec.FileName = fileName.String
		rec.FileSize = fileSize.Int64
		rec.Status = domain.DownloadStatus(status)
		rec.Username = username.String
		rec.StatusID = statusID.String
		rec.VideoID = videoID.String
		rec.Description = description.String
		rec.CreatedAt = parseTime(createdAt)

		result = append(result, &rec)
	}
	return result, rows.Err()
}

// Stats derives per-user download statistics over completed rows.
func (r *SQLiteDownloadHistoryRepository) Stats(ctx context.Context, userUUID string) (*domain.DownloadStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT resolution, credits_consumed FROM download_history
		 WHERE user_uuid = ? AND status = ?`,
		userUUID, string(domain.DownloadCompleted))
	if err != nil {
		return nil, fmt.Errorf("query download stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.DownloadStats{}
	for rows.Next() {
		var resolution sql.NullString
		var consumed int64
		if err := rows.Scan(&resolution, &consumed); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}

		stats.TotalDownloads++
		stats.TotalCreditsConsumed += consumed
		if domain.ResolutionHeight(resolution.String) >= domain.HDThresholdHeight {
			stats.HDDownloads++
		} else {
			stats.SDDownloads++
		}
	}
	return stats, rows.Err()
}
