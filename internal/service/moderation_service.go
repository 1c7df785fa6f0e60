package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/classifier"
	"contentmod/api/internal/hashing"
	"contentmod/api/internal/mailer"
	"contentmod/api/internal/models"
	"contentmod/api/internal/repository"
	"contentmod/api/internal/storage"
	"contentmod/api/internal/tasks"
)

const maxTextLength = 5000

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ModerationStore is the slice of the persistence layer the pipeline
// drives. The pgx repository satisfies it in production; tests substitute
// an in-memory store.
type ModerationStore interface {
	CreateRequest(ctx context.Context, req *models.ModerationRequest) error
	GetRequest(ctx context.Context, id int64) (models.ModerationRequest, error)
	GetRequestWithResults(ctx context.Context, id int64) (models.ModerationRequest, error)
	CompleteWithResult(ctx context.Context, requestID int64, contentURL *string, result models.ModerationResult) error
}

// NotificationStore appends delivery-attempt records.
type NotificationStore interface {
	Create(ctx context.Context, entry *models.NotificationLog) error
}

// ModerationService sequences request creation, classification,
// persistence, and notification for both submission flows.
type ModerationService struct {
	store         ModerationStore
	notifications NotificationStore
	classify      classifier.Classifier
	uploader      storage.Uploader
	mail          mailer.Mailer
	runner        *tasks.Runner
	log           zerolog.Logger
}

func NewModerationService(
	store ModerationStore,
	notifications NotificationStore,
	classify classifier.Classifier,
	uploader storage.Uploader,
	mail mailer.Mailer,
	runner *tasks.Runner,
	log zerolog.Logger,
) *ModerationService {
	return &ModerationService{
		store:         store,
		notifications: notifications,
		classify:      classify,
		uploader:      uploader,
		mail:          mail,
		runner:        runner,
		log:           log,
	}
}

// ModerateText runs the synchronous flow: the caller gets back the
// completed request with its result, or an error. A classification failure
// leaves the request pending; nothing retries it.
func (s *ModerationService) ModerateText(ctx context.Context, email, text string) (models.ModerationRequest, error) {
	if err := validateEmail(email); err != nil {
		return models.ModerationRequest{}, err
	}
	if strings.TrimSpace(text) == "" {
		return models.ModerationRequest{}, &apierr.ValidationError{Reason: "text content cannot be empty"}
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return models.ModerationRequest{}, &apierr.ValidationError{Reason: "text content exceeds 5000 characters"}
	}

	fingerprint := hashing.Fingerprint(text)
	req := models.ModerationRequest{
		Email:       email,
		ContentType: models.ContentTypeText,
		ContentHash: &fingerprint,
		Status:      models.RequestStatusPending,
	}
	if err := s.store.CreateRequest(ctx, &req); err != nil {
		return models.ModerationRequest{}, &apierr.PersistenceError{Op: "create request", Err: err}
	}
	s.log.Info().Int64("request_id", req.ID).Msg("moderation request created for text content")

	verdict, err := s.classify.ClassifyText(ctx, text)
	if err != nil {
		s.log.Error().Err(err).Int64("request_id", req.ID).Msg("text classification failed")
		return models.ModerationRequest{}, err
	}

	result := models.ModerationResult{
		RequestID:      req.ID,
		Classification: verdict.Classification,
		Confidence:     verdict.Confidence,
		Reasoning:      verdict.Reason,
		LLMResponse:    verdict.Raw,
	}
	if err := s.store.CompleteWithResult(ctx, req.ID, nil, result); err != nil {
		return models.ModerationRequest{}, completeError(req.ID, err)
	}
	s.log.Info().Int64("request_id", req.ID).Msg("moderation result saved and request completed")

	// Re-fetch so the response reflects committed state.
	completed, err := s.store.GetRequestWithResults(ctx, req.ID)
	if err != nil {
		return models.ModerationRequest{}, completeError(req.ID, err)
	}
	if len(completed.Results) == 0 {
		return models.ModerationRequest{}, &apierr.NotFoundError{Entity: "moderation result", ID: req.ID}
	}
	return completed, nil
}

// ModerateImage runs the asynchronous flow: it persists the pending
// request, schedules the detached processing task, and returns before
// classification starts. Background failures are never visible here.
func (s *ModerationService) ModerateImage(ctx context.Context, email string, data []byte) (requestID int64, taskID string, err error) {
	if err := validateEmail(email); err != nil {
		return 0, "", err
	}
	if len(data) == 0 {
		return 0, "", &apierr.ValidationError{Reason: "no image file provided"}
	}

	req := models.ModerationRequest{
		Email:       email,
		ContentType: models.ContentTypeImage,
		Status:      models.RequestStatusPending,
	}
	if err := s.store.CreateRequest(ctx, &req); err != nil {
		return 0, "", &apierr.PersistenceError{Op: "create request", Err: err}
	}
	s.log.Info().Int64("request_id", req.ID).Msg("moderation request created for image content")

	taskID = s.runner.Submit("image_moderation", req.ID, s.imageTask(req.ID, data))
	s.log.Info().
		Int64("request_id", req.ID).
		Str("task_id", taskID).
		Msg("background task scheduled for image moderation")

	return req.ID, taskID, nil
}

// imageTask is the detached portion of the image flow. Its stages run in
// strict order; a failure at any stage before the commit leaves the
// request pending, which the stuck-request sweep reports.
func (s *ModerationService) imageTask(requestID int64, data []byte) tasks.Func {
	return func(ctx context.Context) error {
		contentURL, err := s.uploader.Upload(ctx, data)
		if err != nil {
			return err
		}
		s.log.Info().Int64("request_id", requestID).Str("content_url", contentURL).Msg("image uploaded")

		verdict, err := s.classify.ClassifyImage(ctx, contentURL)
		if err != nil {
			return err
		}
		s.log.Info().Int64("request_id", requestID).Msg("image classified")

		req, err := s.store.GetRequest(ctx, requestID)
		if err != nil {
			return completeError(requestID, err)
		}

		result := models.ModerationResult{
			RequestID:      requestID,
			Classification: verdict.Classification,
			Confidence:     verdict.Confidence,
			Reasoning:      verdict.Reason,
			LLMResponse:    verdict.Raw,
		}
		if err := s.store.CompleteWithResult(ctx, requestID, &contentURL, result); err != nil {
			return completeError(requestID, err)
		}
		s.log.Info().Int64("request_id", requestID).Msg("moderation result saved and request completed in background")

		// Notification failure must never undo the completed result.
		s.notifyResult(ctx, requestID, req.Email, verdict)
		return nil
	}
}

func (s *ModerationService) notifyResult(ctx context.Context, requestID int64, email string, verdict classifier.Verdict) {
	status := models.NotificationStatusSent

	html, err := mailer.RenderResultEmail(requestID, verdict.Classification, verdict.Confidence, verdict.Reason)
	if err != nil {
		s.log.Error().Err(err).Int64("request_id", requestID).Msg("result email render failed")
		status = models.NotificationStatusPending
	} else if err := s.mail.Send(ctx, "Your content moderation result is ready", html, email); err != nil {
		s.log.Error().Err(err).Int64("request_id", requestID).Str("to", email).Msg("result email delivery failed")
		status = models.NotificationStatusPending
	} else {
		s.log.Info().Int64("request_id", requestID).Str("to", email).Msg("result email sent")
	}

	entry := models.NotificationLog{
		RequestID: requestID,
		Channel:   models.ChannelEmail,
		Status:    status,
		SentAt:    time.Now().UTC(),
	}
	if err := s.notifications.Create(ctx, &entry); err != nil {
		s.log.Error().Err(err).Int64("request_id", requestID).Msg("notification log insert failed")
	}
}

func completeError(requestID int64, err error) error {
	if errors.Is(err, repository.ErrRequestNotFound) {
		return &apierr.NotFoundError{Entity: "moderation request", ID: requestID}
	}
	return &apierr.PersistenceError{Op: "complete request", Err: err}
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &apierr.ValidationError{Reason: "invalid email address"}
	}
	return nil
}
