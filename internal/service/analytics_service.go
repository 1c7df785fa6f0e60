package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/mailer"
	"contentmod/api/internal/models"
)

// AnalyticsStore is the read side the aggregator rolls up over.
type AnalyticsStore interface {
	CountRequestsByEmail(ctx context.Context, email string) (int64, error)
	CountsByClassification(ctx context.Context, email string, contentType models.ContentType) (map[models.Classification]int64, error)
	LastRequest(ctx context.Context, email string) (id int64, createdAt time.Time, found bool, err error)
}

// NotificationHistory reads and appends delivery records for the summary.
type NotificationHistory interface {
	NotificationStore
	ListByEmail(ctx context.Context, email string) ([]models.NotificationLog, error)
}

type Summary struct {
	User                   string                            `json:"user"`
	TotalRequests          int64                             `json:"total_requests"`
	CountsByClassification map[models.Classification]int64   `json:"counts_by_classification"`
	TextCounts             map[models.Classification]int64   `json:"text_counts"`
	ImageCounts            map[models.Classification]int64   `json:"image_counts"`
	LastRequestAt          *time.Time                        `json:"last_request_at"`
	LastRequestID          *int64                            `json:"last_request_id"`
	NotificationLogs       []notificationLogView             `json:"notification_logs"`
}

type notificationLogView struct {
	RequestID int64                      `json:"request_id"`
	Channel   models.NotificationChannel `json:"channel"`
	Status    models.NotificationStatus  `json:"status"`
	SentAt    time.Time                  `json:"sent_at"`
}

// AnalyticsService aggregates a submitter's moderation history and, as a
// deliberate side effect, emails them the digest. Any failure along the
// way collapses into a single AnalyticsError.
type AnalyticsService struct {
	store         AnalyticsStore
	notifications NotificationHistory
	mail          mailer.Mailer
	log           zerolog.Logger
}

func NewAnalyticsService(store AnalyticsStore, notifications NotificationHistory, mail mailer.Mailer, log zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:         store,
		notifications: notifications,
		mail:          mail,
		log:           log,
	}
}

func (s *AnalyticsService) Summarize(ctx context.Context, user string) (Summary, error) {
	if err := validateEmail(user); err != nil {
		return Summary{}, err
	}

	total, err := s.store.CountRequestsByEmail(ctx, user)
	if err != nil {
		return Summary{}, &apierr.AnalyticsError{Err: err}
	}

	textCounts, err := s.store.CountsByClassification(ctx, user, models.ContentTypeText)
	if err != nil {
		return Summary{}, &apierr.AnalyticsError{Err: err}
	}
	imageCounts, err := s.store.CountsByClassification(ctx, user, models.ContentTypeImage)
	if err != nil {
		return Summary{}, &apierr.AnalyticsError{Err: err}
	}

	lastID, lastAt, hasRequests, err := s.store.LastRequest(ctx, user)
	if err != nil {
		return Summary{}, &apierr.AnalyticsError{Err: err}
	}

	logs, err := s.notifications.ListByEmail(ctx, user)
	if err != nil {
		return Summary{}, &apierr.AnalyticsError{Err: err}
	}

	summary := Summary{
		User:                   user,
		TotalRequests:          total,
		CountsByClassification: mergeCounts(textCounts, imageCounts),
		TextCounts:             textCounts,
		ImageCounts:            imageCounts,
		NotificationLogs:       make([]notificationLogView, 0, len(logs)),
	}
	if hasRequests {
		summary.LastRequestAt = &lastAt
		summary.LastRequestID = &lastID
	}
	for _, entry := range logs {
		summary.NotificationLogs = append(summary.NotificationLogs, notificationLogView{
			RequestID: entry.RequestID,
			Channel:   entry.Channel,
			Status:    entry.Status,
			SentAt:    entry.SentAt,
		})
	}

	if err := s.sendDigest(ctx, summary); err != nil {
		return Summary{}, &apierr.AnalyticsError{Err: err}
	}

	s.log.Info().Str("user", user).Int64("total_requests", total).Msg("analytics summary generated")
	return summary, nil
}

// sendDigest dispatches the summary email and records the attempt against
// the submitter's most recent request. The log row is written whether or
// not delivery succeeded. Delivery failure is contained here; it never
// fails the read path.
func (s *AnalyticsService) sendDigest(ctx context.Context, summary Summary) error {
	html, err := mailer.RenderSummaryEmail(summary.User, summary.TotalRequests, summary.TextCounts, summary.ImageCounts, summary.LastRequestAt)
	if err != nil {
		return err
	}

	sendErr := s.mail.Send(ctx, "Your Moderation Analytics Summary", html, summary.User)
	if sendErr != nil {
		s.log.Error().Err(sendErr).Str("user", summary.User).Msg("summary email delivery failed")
	}

	if summary.LastRequestID != nil {
		status := models.NotificationStatusSent
		if sendErr != nil {
			status = models.NotificationStatusPending
		}
		entry := models.NotificationLog{
			RequestID: *summary.LastRequestID,
			Channel:   models.ChannelEmail,
			Status:    status,
			SentAt:    time.Now().UTC(),
		}
		if err := s.notifications.Create(ctx, &entry); err != nil {
			s.log.Error().Err(err).Int64("request_id", *summary.LastRequestID).Msg("notification log insert failed")
		}
	}

	return nil
}

func mergeCounts(maps ...map[models.Classification]int64) map[models.Classification]int64 {
	merged := make(map[models.Classification]int64)
	for _, counts := range maps {
		for label, count := range counts {
			merged[label] += count
		}
	}
	return merged
}
