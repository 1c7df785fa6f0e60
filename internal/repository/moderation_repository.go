package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contentmod/api/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("moderation request not found")
	ErrAlreadyCompleted = errors.New("moderation request already completed")
)

type ModerationRepository struct {
	pool *pgxpool.Pool
}

func NewModerationRepository(pool *pgxpool.Pool) *ModerationRepository {
	return &ModerationRepository{pool: pool}
}

func (r *ModerationRepository) CreateRequest(ctx context.Context, req *models.ModerationRequest) error {
	const query = `
		INSERT INTO moderation_requests (email, content_type, content_url, content_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	row := r.pool.QueryRow(ctx, query,
		req.Email,
		req.ContentType,
		req.ContentURL,
		req.ContentHash,
		req.Status,
	)
	return row.Scan(&req.ID, &req.CreatedAt)
}

func (r *ModerationRepository) GetRequest(ctx context.Context, id int64) (models.ModerationRequest, error) {
	const query = `
		SELECT id, email, content_type, content_url, content_hash, status, created_at
		FROM moderation_requests WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var req models.ModerationRequest
	if err := row.Scan(
		&req.ID,
		&req.Email,
		&req.ContentType,
		&req.ContentURL,
		&req.ContentHash,
		&req.Status,
		&req.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ModerationRequest{}, ErrRequestNotFound
		}
		return models.ModerationRequest{}, err
	}
	return req, nil
}

func (r *ModerationRepository) GetRequestWithResults(ctx context.Context, id int64) (models.ModerationRequest, error) {
	req, err := r.GetRequest(ctx, id)
	if err != nil {
		return models.ModerationRequest{}, err
	}

	const query = `
		SELECT id, request_id, classification, confidence, reasoning, llm_response
		FROM moderation_results
		WHERE request_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return models.ModerationRequest{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var result models.ModerationResult
		if err := rows.Scan(
			&result.ID,
			&result.RequestID,
			&result.Classification,
			&result.Confidence,
			&result.Reasoning,
			&result.LLMResponse,
		); err != nil {
			return models.ModerationRequest{}, err
		}
		req.Results = append(req.Results, result)
	}
	return req, rows.Err()
}

// CompleteWithResult flips the request to completed and inserts its result
// in one transaction, so status and result can never diverge. The UPDATE
// predicate keeps the pending -> completed transition one-way.
func (r *ModerationRepository) CompleteWithResult(ctx context.Context, requestID int64, contentURL *string, result models.ModerationResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE moderation_requests
		SET status = $2,
		    content_url = COALESCE($3, content_url)
		WHERE id = $1 AND status = $4
	`
	tag, err := tx.Exec(ctx, update,
		requestID,
		models.RequestStatusCompleted,
		contentURL,
		models.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetRequest(ctx, requestID); err != nil {
			return err
		}
		return ErrAlreadyCompleted
	}

	const insert = `
		INSERT INTO moderation_results (request_id, classification, confidence, reasoning, llm_response)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insert,
		requestID,
		result.Classification,
		result.Confidence,
		result.Reasoning,
		result.LLMResponse,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *ModerationRepository) CountRequestsByEmail(ctx context.Context, email string) (int64, error) {
	const query = `SELECT COUNT(*) FROM moderation_requests WHERE email = $1`

	var total int64
	if err := r.pool.QueryRow(ctx, query, email).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ModerationRepository) CountsByClassification(ctx context.Context, email string, contentType models.ContentType) (map[models.Classification]int64, error) {
	const query = `
		SELECT mr.classification, COUNT(mr.classification)
		FROM moderation_results mr
		JOIN moderation_requests req ON req.id = mr.request_id
		WHERE req.email = $1 AND req.content_type = $2
		GROUP BY mr.classification
	`

	rows, err := r.pool.Query(ctx, query, email, contentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Classification]int64)
	for rows.Next() {
		var classification models.Classification
		var count int64
		if err := rows.Scan(&classification, &count); err != nil {
			return nil, err
		}
		counts[classification] = count
	}
	return counts, rows.Err()
}

// ListStuckPending returns requests that have sat in pending beyond the
// cutoff. The sweep only reports them; nothing retries or mutates them.
func (r *ModerationRepository) ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]models.ModerationRequest, error) {
	const query = `
		SELECT id, email, content_type, content_url, content_hash, status, created_at
		FROM moderation_requests
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, models.RequestStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.ModerationRequest
	for rows.Next() {
		var req models.ModerationRequest
		if err := rows.Scan(
			&req.ID,
			&req.Email,
			&req.ContentType,
			&req.ContentURL,
			&req.ContentHash,
			&req.Status,
			&req.CreatedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// LastRequest returns the id and timestamp of the submitter's most recent
// request; found is false when they have none.
func (r *ModerationRepository) LastRequest(ctx context.Context, email string) (id int64, createdAt time.Time, found bool, err error) {
	const query = `
		SELECT id, created_at
		FROM moderation_requests
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, email)
	if err := row.Scan(&id, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, time.Time{}, false, nil
		}
		return 0, time.Time{}, false, err
	}
	return id, createdAt, true, nil
}
