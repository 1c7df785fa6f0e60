package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/response"
)

func (h HandlerSet) AnalyticsSummary(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		response.Fail(c, "Missing user parameter", &apierr.ValidationError{Reason: "user query parameter is required"}, h.includeStack())
		return
	}

	summary, err := h.analytics.Summarize(c.Request.Context(), user)
	if err != nil {
		response.Fail(c, failureMessage(err, "Analytics summary failed"), err, h.includeStack())
		return
	}

	response.OK(c, http.StatusOK, "Success", summary)
}
