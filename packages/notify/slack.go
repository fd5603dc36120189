package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// WithSlackClient replaces the HTTP client used for the webhook
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "suiterun",
		iconEmoji:  ":test_tube:",
		client:     http.NewClient(http.WithTimeout(10 * time.Second)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color, title, emoji := headline(summary)
	if color == "attention" {
		color = "danger"
	}

	fields := []slackField{
		{Title: "Features", Value: fmt.Sprintf("%d", summary.TotalTests), Short: true},
		{Title: "Passed", Value: fmt.Sprintf("%d", summary.PassedTests), Short: true},
		{Title: "Failed", Value: fmt.Sprintf("%d", summary.FailedTests), Short: true},
		{Title: "Skipped", Value: fmt.Sprintf("%d", summary.SkippedTests), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}

	if summary.Environment != "" {
		fields = append(fields, slackField{
			Title: "Environment",
			Value: summary.Environment,
			Short: true,
		})
	}

	var text strings.Builder
	if len(summary.FailedResults) > 0 {
		text.WriteString("*Failed features:*\n")
		for _, ft := range summary.FailedResults {
			fmt.Fprintf(&text, "• `%s`", ft.Name)
			if ft.File != "" {
				fmt.Fprintf(&text, " (%s)", ft.File)
			}
			text.WriteString("\n")
			if ft.Error != "" {
				fmt.Fprintf(&text, "  - %s\n", ft.Error)
			}
		}
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, title),
			Text:   text.String(),
			Fields: fields,
			Footer: "suiterun " + summary.RunID,
			TS:     time.Now().Unix(),
		}},
	}

	return postJSON(ctx, s.client, s.webhookURL, "slack", msg)
}

// headline picks the color, title and emoji for a summary
func headline(summary *RunSummary) (color, title, emoji string) {
	switch {
	case summary.FailedTests > 0:
		return "attention", fmt.Sprintf("%d feature(s) failed", summary.FailedTests), ":x:"
	case !summary.Complete:
		return "attention", "Run stopped before every feature finished", ":warning:"
	case summary.IsRecovery:
		return "good", "Suite recovered!", ":tada:"
	default:
		return "good", "All features passed!", ":white_check_mark:"
	}
}

func postJSON(ctx context.Context, client *http.Client, url, service string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", service, err)
	}

	resp, err := client.Post(ctx, url, string(data), map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", service, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%s webhook returned status %d: %s", service, resp.StatusCode, resp.BodyString())
	}
	return nil
}
