package mailer

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"contentmod/api/internal/models"
)

var resultTemplate = template.Must(template.New("moderation_result").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; color: #333; margin: 0; padding: 20px;">
  <div style="max-width: 600px; margin: auto; background-color: #ffffff; padding: 20px; border-radius: 8px;">
    <h2 style="color: #007bff;">Content Moderation Result</h2>
    <p>Dear User,</p>
    <p>Your content moderation request has been processed successfully. Below are the details:</p>
    <div style="margin-top: 20px; line-height: 1.5;">
      <p><strong>Request ID:</strong> {{.RequestID}}</p>
      <p><strong>Classification:</strong> <span style="display: inline-block; padding: 5px 10px; background-color: #007bff; color: white; border-radius: 12px; font-weight: bold;">{{.Classification}}</span></p>
      <p><strong>Confidence:</strong> {{.Confidence}}</p>
      <p><strong>Reasoning:</strong> {{.Reasoning}}</p>
    </div>
    <p>If you have any questions or need assistance, please reply to this email.</p>
    <div style="margin-top: 30px; font-size: 0.9em; color: #777; text-align: center;">&copy; 2025 Moderation AI Team</div>
  </div>
</body>
</html>`))

var summaryTemplate = template.Must(template.New("analytics_summary").Parse(`<html>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #2c3e50; background-color: #f9f9f9; padding: 20px;">
  <div style="max-width: 600px; margin: auto; background: white; border-radius: 8px; padding: 30px;">
    <h2 style="color: #34495e;">Moderation Analytics Summary</h2>
    <p style="font-size: 18px;">Hello <strong>{{.User}}</strong>, here is your latest moderation analytics report:</p>
    <p style="font-size: 20px; font-weight: 700; color: #2980b9;">Total Requests: {{.TotalRequests}}</p>
    <p style="color: #7f8c8d; font-size: 14px;">Last Request At: {{.LastRequestAt}}</p>
    <h3 style="color: #34495e; margin-top: 40px;">Text Moderation Breakdown</h3>
    <table style="width: 100%; border-collapse: collapse;"><tbody>
      {{range .TextRows}}<tr>
        <td style="padding: 8px 12px;">{{.Label}}</td>
        <td style="padding: 8px 12px; text-align: right; white-space: nowrap;">{{.Count}} ({{.Percent}})</td>
        <td style="width: 70%; padding: 8px 0;"><div style="background-color: #ecf0f1; border-radius: 4px; height: 14px;"><div style="background-color: {{.Color}}; height: 100%; width: {{.Percent}}; border-radius: 4px;"></div></div></td>
      </tr>{{end}}
    </tbody></table>
    <h3 style="color: #34495e; margin-top: 40px;">Image Moderation Breakdown</h3>
    <table style="width: 100%; border-collapse: collapse;"><tbody>
      {{range .ImageRows}}<tr>
        <td style="padding: 8px 12px;">{{.Label}}</td>
        <td style="padding: 8px 12px; text-align: right; white-space: nowrap;">{{.Count}} ({{.Percent}})</td>
        <td style="width: 70%; padding: 8px 0;"><div style="background-color: #ecf0f1; border-radius: 4px; height: 14px;"><div style="background-color: {{.Color}}; height: 100%; width: {{.Percent}}; border-radius: 4px;"></div></div></td>
      </tr>{{end}}
    </tbody></table>
    <p style="margin-top: 40px; font-size: 14px; color: #7f8c8d;">Best regards,<br><strong>Moderation AI Team</strong></p>
  </div>
</body>
</html>`))

var chartColors = map[models.Classification]string{
	models.ClassificationSafe:       "#2ecc71",
	models.ClassificationToxic:      "#e74c3c",
	models.ClassificationSpam:       "#f1c40f",
	models.ClassificationHarassment: "#9b59b6",
}

type resultEmailData struct {
	RequestID      int64
	Classification string
	Confidence     string
	Reasoning      string
}

// RenderResultEmail builds the per-request completion notification body.
func RenderResultEmail(requestID int64, classification models.Classification, confidence float64, reasoning string) (string, error) {
	var out strings.Builder
	err := resultTemplate.Execute(&out, resultEmailData{
		RequestID:      requestID,
		Classification: titleCase(string(classification)),
		Confidence:     fmt.Sprintf("%.2f%%", confidence*100),
		Reasoning:      reasoning,
	})
	if err != nil {
		return "", fmt.Errorf("render result email: %w", err)
	}
	return out.String(), nil
}

type chartRow struct {
	Label   string
	Count   int64
	Percent string
	Color   string
}

type summaryEmailData struct {
	User          string
	TotalRequests int64
	LastRequestAt string
	TextRows      []chartRow
	ImageRows     []chartRow
}

// RenderSummaryEmail builds the analytics digest body.
func RenderSummaryEmail(user string, totalRequests int64, textCounts, imageCounts map[models.Classification]int64, lastRequestAt *time.Time) (string, error) {
	lastAt := "N/A"
	if lastRequestAt != nil {
		lastAt = lastRequestAt.UTC().Format(time.RFC1123)
	}

	var out strings.Builder
	err := summaryTemplate.Execute(&out, summaryEmailData{
		User:          user,
		TotalRequests: totalRequests,
		LastRequestAt: lastAt,
		TextRows:      buildChartRows(textCounts),
		ImageRows:     buildChartRows(imageCounts),
	})
	if err != nil {
		return "", fmt.Errorf("render summary email: %w", err)
	}
	return out.String(), nil
}

func buildChartRows(counts map[models.Classification]int64) []chartRow {
	var total int64
	for _, count := range counts {
		total += count
	}
	if total == 0 {
		total = 1
	}

	labels := make([]models.Classification, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	rows := make([]chartRow, 0, len(labels))
	for _, label := range labels {
		color, ok := chartColors[label]
		if !ok {
			color = "#7f8c8d"
		}
		rows = append(rows, chartRow{
			Label:   titleCase(string(label)),
			Count:   counts[label],
			Percent: fmt.Sprintf("%.1f%%", float64(counts[label])/float64(total)*100),
			Color:   color,
		})
	}
	return rows
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
