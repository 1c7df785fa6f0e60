package models

import "time"

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
)

type Classification string

const (
	ClassificationToxic      Classification = "toxic"
	ClassificationSpam       Classification = "spam"
	ClassificationHarassment Classification = "harassment"
	ClassificationSafe       Classification = "safe"
)

// ValidClassification reports whether c belongs to the closed label set.
func ValidClassification(c Classification) bool {
	switch c {
	case ClassificationToxic, ClassificationSpam, ClassificationHarassment, ClassificationSafe:
		return true
	}
	return false
}

type ModerationRequest struct {
	ID          int64
	Email       string
	ContentType ContentType
	ContentURL  *string
	ContentHash *string
	Status      RequestStatus
	CreatedAt   time.Time
	Results     []ModerationResult
}

type ModerationResult struct {
	ID             int64
	RequestID      int64
	Classification Classification
	Confidence     float64
	Reasoning      string
	LLMResponse    []byte
}
