package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"contentmod/api/internal/models"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, entry *models.NotificationLog) error {
	const query = `
		INSERT INTO notification_logs (request_id, channel, status, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	return r.pool.QueryRow(ctx, query,
		entry.RequestID,
		entry.Channel,
		entry.Status,
		entry.SentAt,
	).Scan(&entry.ID)
}

// ListByEmail returns every delivery attempt across the submitter's
// requests, newest first.
func (r *NotificationRepository) ListByEmail(ctx context.Context, email string) ([]models.NotificationLog, error) {
	const query = `
		SELECT nl.id, nl.request_id, nl.channel, nl.status, nl.sent_at
		FROM notification_logs nl
		JOIN moderation_requests req ON req.id = nl.request_id
		WHERE req.email = $1
		ORDER BY nl.sent_at DESC
	`

	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.NotificationLog
	for rows.Next() {
		var entry models.NotificationLog
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.Channel,
			&entry.Status,
			&entry.SentAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
