// Package classifier wraps the external generative-model call that turns
// submitted content into a moderation verdict.
package classifier

import (
	"context"

	"contentmod/api/internal/models"
)

// Verdict is the normalized outcome of one classification call.
type Verdict struct {
	ContentType    string                `json:"content_type"`
	Classification models.Classification `json:"classification"`
	Confidence     float64               `json:"confidence"`
	Reason         string                `json:"reason"`
	Description    string                `json:"description"`

	// Raw holds the cleaned JSON payload the model returned, kept for
	// auditing alongside the parsed fields.
	Raw []byte `json:"-"`
}

type Classifier interface {
	ClassifyText(ctx context.Context, text string) (Verdict, error)
	ClassifyImage(ctx context.Context, imageURL string) (Verdict, error)
}
