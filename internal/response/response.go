// Package response implements the uniform API envelope shared by every
// endpoint: {status_code, success, message, data} on success and
// {success, message, errors, stack} on failure.
package response

import (
	"github.com/gin-gonic/gin"

	"contentmod/api/internal/apierr"
)

type Envelope struct {
	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
	Stack   string   `json:"stack,omitempty"`
}

func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		StatusCode: status,
		Success:    true,
		Message:    message,
		Data:       data,
	})
}

// Fail maps err through the apierr taxonomy and writes the failure
// envelope. includeStack controls whether the raw error chain is echoed
// back; production keeps it off.
func Fail(c *gin.Context, message string, err error, includeStack bool) {
	status := apierr.Status(err)

	env := ErrorEnvelope{
		Success: false,
		Message: message,
		Errors:  []string{},
	}
	if err != nil {
		env.Errors = append(env.Errors, err.Error())
		if includeStack {
			env.Stack = err.Error()
		}
	}

	c.AbortWithStatusJSON(status, env)
}
