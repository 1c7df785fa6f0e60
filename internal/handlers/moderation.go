package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/models"
	"contentmod/api/internal/response"
)

type textModerationRequest struct {
	Email string `json:"email" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

type moderationResultView struct {
	Classification models.Classification `json:"classification"`
	Confidence     float64               `json:"confidence"`
	Reasoning      string                `json:"reasoning"`
}

type moderationRequestView struct {
	ID          int64                  `json:"id"`
	ContentType models.ContentType     `json:"content_type"`
	ContentURL  *string                `json:"content_url,omitempty"`
	ContentHash *string                `json:"content_hash,omitempty"`
	Status      models.RequestStatus   `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	Results     []moderationResultView `json:"results"`
}

func requestView(req models.ModerationRequest) moderationRequestView {
	view := moderationRequestView{
		ID:          req.ID,
		ContentType: req.ContentType,
		ContentURL:  req.ContentURL,
		ContentHash: req.ContentHash,
		Status:      req.Status,
		CreatedAt:   req.CreatedAt,
		Results:     make([]moderationResultView, 0, len(req.Results)),
	}
	for _, result := range req.Results {
		view.Results = append(view.Results, moderationResultView{
			Classification: result.Classification,
			Confidence:     result.Confidence,
			Reasoning:      result.Reasoning,
		})
	}
	return view
}

func (h HandlerSet) ModerateText(c *gin.Context) {
	var payload textModerationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Fail(c, "Validation error", &apierr.ValidationError{Reason: err.Error()}, h.includeStack())
		return
	}

	req, err := h.moderation.ModerateText(c.Request.Context(), payload.Email, payload.Text)
	if err != nil {
		response.Fail(c, failureMessage(err, "Text moderation failed"), err, h.includeStack())
		return
	}

	response.OK(c, http.StatusOK, "Success", requestView(req))
}

func (h HandlerSet) ModerateImage(c *gin.Context) {
	email := c.PostForm("email")

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, "No image file provided", &apierr.ValidationError{Reason: "file is required"}, h.includeStack())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Fail(c, "Failed to read image file", &apierr.ValidationError{Reason: err.Error()}, h.includeStack())
		return
	}

	requestID, taskID, err := h.moderation.ModerateImage(c.Request.Context(), email, data)
	if err != nil {
		response.Fail(c, failureMessage(err, "Image moderation failed"), err, h.includeStack())
		return
	}

	response.OK(c, http.StatusOK, "Moderation processing started", gin.H{
		"request_id": requestID,
		"task_id":    taskID,
	})
}

// failureMessage picks the envelope message for an error: validation and
// not-found errors explain themselves, everything else gets the generic
// server-fault text.
func failureMessage(err error, fallback string) string {
	var validation *apierr.ValidationError
	if errors.As(err, &validation) {
		return validation.Reason
	}
	var notFound *apierr.NotFoundError
	if errors.As(err, &notFound) {
		return notFound.Error()
	}
	return fallback
}
