package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/classifier"
	"contentmod/api/internal/config"
	"contentmod/api/internal/models"
	"contentmod/api/internal/tasks"
)

func safeVerdict() classifier.Verdict {
	return classifier.Verdict{
		ContentType:    "text",
		Classification: models.ClassificationSafe,
		Confidence:     0.97,
		Reason:         "nothing objectionable",
		Description:    "a greeting",
		Raw:            []byte(`{"classification":"safe"}`),
	}
}

type pipelineFixture struct {
	store    *memStore
	classify *fakeClassifier
	uploader *fakeUploader
	mail     *fakeMailer
	runner   *tasks.Runner
	svc      *ModerationService
}

func newPipelineFixture() *pipelineFixture {
	store := newMemStore()
	classify := &fakeClassifier{verdict: safeVerdict()}
	uploader := &fakeUploader{url: "https://cdn.test/uploads/abc"}
	mail := &fakeMailer{}
	runner := tasks.NewRunner(nil, config.TasksConfig{Workers: 2}, zerolog.Nop())

	return &pipelineFixture{
		store:    store,
		classify: classify,
		uploader: uploader,
		mail:     mail,
		runner:   runner,
		svc:      NewModerationService(store, store, classify, uploader, mail, runner, zerolog.Nop()),
	}
}

func (f *pipelineFixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.runner.Drain(ctx))
}

func TestModerateTextCompletes(t *testing.T) {
	f := newPipelineFixture()

	req, err := f.svc.ModerateText(context.Background(), "user@example.com", "hello there")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusCompleted, req.Status)
	assert.Equal(t, models.ContentTypeText, req.ContentType)
	require.NotNil(t, req.ContentHash)
	assert.Len(t, *req.ContentHash, 64)
	require.Len(t, req.Results, 1)
	assert.True(t, models.ValidClassification(req.Results[0].Classification))

	// Text flow sends no notification.
	assert.Zero(t, f.mail.sentCount())
	assert.Empty(t, f.store.notificationLogs())
}

func TestModerateTextBlankRejectedBeforePersist(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.ModerateText(context.Background(), "user@example.com", "   \n\t ")

	var validationErr *apierr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, f.store.requestCount())
}

func TestModerateTextTooLong(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.ModerateText(context.Background(), "user@example.com", strings.Repeat("a", 5001))

	var validationErr *apierr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, f.store.requestCount())
}

func TestModerateTextInvalidEmail(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.ModerateText(context.Background(), "not-an-address", "hello")

	var validationErr *apierr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, f.store.requestCount())
}

func TestModerateTextClassifierFailureLeavesPending(t *testing.T) {
	f := newPipelineFixture()
	f.classify.err = &apierr.ClassificationError{Err: errors.New("model unavailable")}

	_, err := f.svc.ModerateText(context.Background(), "user@example.com", "hello")

	var classErr *apierr.ClassificationError
	require.ErrorAs(t, err, &classErr)

	// The request row is visible and stuck pending, with no result.
	require.Equal(t, 1, f.store.requestCount())
	req := f.store.request(1)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Zero(t, f.store.resultCount(1))
}

func TestModerateTextCreateFailure(t *testing.T) {
	f := newPipelineFixture()
	f.store.failCreate = errors.New("insert failed")

	_, err := f.svc.ModerateText(context.Background(), "user@example.com", "hello")

	var persistErr *apierr.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Zero(t, f.classify.textCalls)
}

func TestModerateTextCompleteFailure(t *testing.T) {
	f := newPipelineFixture()
	f.store.failComplete = errors.New("commit failed")

	_, err := f.svc.ModerateText(context.Background(), "user@example.com", "hello")

	var persistErr *apierr.PersistenceError
	require.ErrorAs(t, err, &persistErr)

	// The failed commit leaves no half-written result.
	assert.Equal(t, models.RequestStatusPending, f.store.request(1).Status)
	assert.Zero(t, f.store.resultCount(1))
}

func TestModerateImageAcknowledgesBeforeClassification(t *testing.T) {
	f := newPipelineFixture()
	f.classify.gate = make(chan struct{})

	requestID, taskID, err := f.svc.ModerateImage(context.Background(), "user@example.com", []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.NotZero(t, requestID)
	assert.NotEmpty(t, taskID)

	// Classification has not happened yet; the caller already has its id.
	assert.Equal(t, models.RequestStatusPending, f.store.request(requestID).Status)

	close(f.classify.gate)
	f.drain(t)
	assert.Equal(t, models.RequestStatusCompleted, f.store.request(requestID).Status)
}

func TestModerateImageBackgroundCompletes(t *testing.T) {
	f := newPipelineFixture()
	f.classify.verdict.ContentType = "image"

	requestID, _, err := f.svc.ModerateImage(context.Background(), "user@example.com", []byte("image-bytes"))
	require.NoError(t, err)
	f.drain(t)

	req := f.store.request(requestID)
	assert.Equal(t, models.RequestStatusCompleted, req.Status)
	require.NotNil(t, req.ContentURL)
	assert.Equal(t, "https://cdn.test/uploads/abc", *req.ContentURL)
	assert.Equal(t, 1, f.store.resultCount(requestID))
	assert.Equal(t, []string{"https://cdn.test/uploads/abc"}, f.classify.imageURLs)

	require.Equal(t, 1, f.mail.sentCount())
	sent := f.mail.lastSent()
	assert.Equal(t, "user@example.com", sent.to)
	assert.Contains(t, sent.html, "Content Moderation Result")

	logs := f.store.notificationLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, requestID, logs[0].RequestID)
	assert.Equal(t, models.ChannelEmail, logs[0].Channel)
	assert.Equal(t, models.NotificationStatusSent, logs[0].Status)
}

func TestModerateImageEmptyFileRejected(t *testing.T) {
	f := newPipelineFixture()

	_, _, err := f.svc.ModerateImage(context.Background(), "user@example.com", nil)

	var validationErr *apierr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, f.store.requestCount())
}

func TestModerateImageUploadFailureLeavesPending(t *testing.T) {
	f := newPipelineFixture()
	f.uploader.err = &apierr.UploadError{Err: errors.New("bucket unavailable")}

	requestID, _, err := f.svc.ModerateImage(context.Background(), "user@example.com", []byte("image-bytes"))
	require.NoError(t, err) // failure is invisible to the caller
	f.drain(t)

	req := f.store.request(requestID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Nil(t, req.ContentURL)
	assert.Zero(t, f.store.resultCount(requestID))
	assert.Zero(t, f.mail.sentCount())
}

func TestModerateImageClassifierFailureLeavesPending(t *testing.T) {
	f := newPipelineFixture()
	f.classify.err = &apierr.ClassificationError{Err: errors.New("model unavailable")}

	requestID, _, err := f.svc.ModerateImage(context.Background(), "user@example.com", []byte("image-bytes"))
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, models.RequestStatusPending, f.store.request(requestID).Status)
	assert.Zero(t, f.store.resultCount(requestID))
}

func TestModerateImageDeliveryFailureIsolated(t *testing.T) {
	f := newPipelineFixture()
	f.mail.err = &apierr.DeliveryError{Err: errors.New("smtp relay down")}

	requestID, _, err := f.svc.ModerateImage(context.Background(), "user@example.com", []byte("image-bytes"))
	require.NoError(t, err)
	f.drain(t)

	// Completed state and the result survive the failed notification.
	req := f.store.request(requestID)
	assert.Equal(t, models.RequestStatusCompleted, req.Status)
	assert.Equal(t, 1, f.store.resultCount(requestID))

	logs := f.store.notificationLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusPending, logs[0].Status)
}

func TestModerateTextRoundTripIncludesResult(t *testing.T) {
	f := newPipelineFixture()

	req, err := f.svc.ModerateText(context.Background(), "user@example.com", "round trip")
	require.NoError(t, err)

	fetched, err := f.store.GetRequestWithResults(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Results, 1)
	assert.Equal(t, req.Results[0].Classification, fetched.Results[0].Classification)
}
