package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/config"
	"contentmod/api/internal/models"
)

const textPrompt = `You are a strict content moderator.
Classify the following text into one of: toxic, spam, harassment, safe.
Give a confidence score (0-1), explain your reasoning, and summarize what it says.
Respond strictly in JSON with keys: content_type, classification, confidence, reason, description.

Text: %s`

const imagePrompt = `You are a strict content moderator.
Look at this image and:
1. Classify it into one of: toxic, spam, harassment, safe.
2. Give a confidence score (0-1).
3. Explain your reasoning.
4. Describe what is shown in the image.
Respond strictly in JSON with keys: content_type, classification, confidence, reason, description.`

// Models wrap their JSON in markdown fences more often than not.
var fencePattern = regexp.MustCompile("(?m)^```json|```$")

type GeminiClassifier struct {
	cfg    config.GeminiConfig
	client *http.Client
	log    zerolog.Logger
}

func NewGeminiClassifier(cfg config.GeminiConfig, log zerolog.Logger) *GeminiClassifier {
	return &GeminiClassifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GeminiClassifier) ClassifyText(ctx context.Context, text string) (Verdict, error) {
	parts := []geminiPart{{Text: fmt.Sprintf(textPrompt, text)}}
	return g.generate(ctx, parts)
}

func (g *GeminiClassifier) ClassifyImage(ctx context.Context, imageURL string) (Verdict, error) {
	data, mimeType, err := g.fetchImage(ctx, imageURL)
	if err != nil {
		return Verdict{}, err
	}
	g.log.Debug().Str("mime", mimeType).Int("size_bytes", len(data)).Msg("image fetched for classification")

	parts := []geminiPart{
		{Text: imagePrompt},
		{InlineData: &geminiInlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}
	return g.generate(ctx, parts)
}

func (g *GeminiClassifier) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", &apierr.FetchError{URL: imageURL, Err: err}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", &apierr.FetchError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &apierr.FetchError{URL: imageURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &apierr.FetchError{URL: imageURL, Err: err}
	}

	// Validate the bytes really are an image before shipping them to the
	// model; DecodeConfig reads only the header.
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, "", &apierr.DecodeError{Err: err}
	}

	return data, http.DetectContentType(data), nil
}

func (g *GeminiClassifier) generate(ctx context.Context, parts []geminiPart) (Verdict, error) {
	var payload geminiRequest
	payload.Contents = append(payload.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: parts})

	body, err := json.Marshal(payload)
	if err != nil {
		return Verdict{}, &apierr.ClassificationError{Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, &apierr.ClassificationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Verdict{}, &apierr.ClassificationError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, &apierr.ClassificationError{Err: err}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Verdict{}, &apierr.ClassificationError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return Verdict{}, &apierr.ClassificationError{
			Err: fmt.Errorf("model error %d: %s", parsed.Error.Code, parsed.Error.Message),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, &apierr.ClassificationError{Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Verdict{}, &apierr.ClassificationError{Err: fmt.Errorf("empty candidate set")}
	}

	return ParseVerdict(parsed.Candidates[0].Content.Parts[0].Text)
}

// CleanFences strips markdown code-fence wrapping from a model response.
func CleanFences(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// ParseVerdict validates a raw model reply against the expected shape and
// the closed classification set.
func ParseVerdict(raw string) (Verdict, error) {
	cleaned := CleanFences(raw)

	var v Verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return Verdict{}, &apierr.ParseError{Raw: cleaned, Err: err}
	}
	if !models.ValidClassification(v.Classification) {
		return Verdict{}, &apierr.ParseError{
			Raw: cleaned,
			Err: fmt.Errorf("classification %q outside closed set", v.Classification),
		}
	}
	v.Raw = []byte(cleaned)
	return v, nil
}
