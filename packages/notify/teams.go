package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsClient replaces the HTTP client used for the webhook
func WithTeamsClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     http.NewClient(http.WithTimeout(10 * time.Second)),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the name of the notifier
func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage is an Adaptive Card message
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Notify sends a notification to Microsoft Teams
func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color, title, _ := headline(summary)

	facts := []teamsFact{
		{Title: "Features", Value: fmt.Sprintf("%d", summary.TotalTests)},
		{Title: "Passed", Value: fmt.Sprintf("%d", summary.PassedTests)},
		{Title: "Failed", Value: fmt.Sprintf("%d", summary.FailedTests)},
		{Title: "Skipped", Value: fmt.Sprintf("%d", summary.SkippedTests)},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
	}
	if summary.Environment != "" {
		facts = append(facts, teamsFact{Title: "Environment", Value: summary.Environment})
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: title, Color: color},
		{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"},
	}

	for _, ft := range summary.FailedResults {
		text := fmt.Sprintf("- `%s`", ft.Name)
		if ft.File != "" {
			text += fmt.Sprintf(" (%s)", ft.File)
		}
		if ft.Error != "" {
			text += ": " + ft.Error
		}
		body = append(body, teamsBlock{Type: "TextBlock", Text: text, Wrap: true})
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_suiterun %s - %s_", summary.RunID, time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body:    body,
			},
		}},
	}

	return postJSON(ctx, t.client, t.webhookURL, "teams", msg)
}
