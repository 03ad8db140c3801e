package observability

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Notifier sends alert notifications to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that posts to a Slack incoming webhook.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// slackBlock covers the header, section, divider and context block kinds.
type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(format string, args ...any) slackText {
	return slackText{Type: "mrkdwn", Text: fmt.Sprintf(format, args...)}
}

// Notify posts alerts as a single message grouped by condition, most
// severe first. An empty slice sends nothing.
func (s *slackNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildSlackMessage(alerts))
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func buildSlackMessage(alerts []Alert) slackMessage {
	sorted := slices.Clone(alerts)
	slices.SortStableFunc(sorted, func(a, b Alert) int {
		return cmp.Or(
			cmp.Compare(severityRank(a.Severity), severityRank(b.Severity)),
			cmp.Compare(a.Condition, b.Condition),
			cmp.Compare(a.ID, b.ID),
		)
	})

	msg := slackMessage{
		Text: fmt.Sprintf("v3t: %d task graph alert(s), highest severity %s", len(sorted), sorted[0].Severity),
		Blocks: []slackBlock{{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "Task graph alerts"},
		}},
	}

	condition := ""
	for i, alert := range sorted {
		if i == 0 || alert.Condition != condition {
			if i > 0 {
				msg.Blocks = append(msg.Blocks, slackBlock{Type: "divider"})
			}
			condition = alert.Condition
			title := mrkdwn("*%s*", conditionTitle(condition))
			msg.Blocks = append(msg.Blocks, slackBlock{Type: "section", Text: &title})
		}
		text := mrkdwn("%s %s", severityEmoji(alert.Severity), alert.Message)
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:   "section",
			Text:   &text,
			Fields: alertFields(alert),
		})
	}

	msg.Blocks = append(msg.Blocks, slackBlock{
		Type:     "context",
		Elements: []slackText{mrkdwn("Run `v3t alerts` in the workspace for the full list.")},
	})
	return msg
}

func alertFields(alert Alert) []slackText {
	fields := []slackText{mrkdwn("*Severity*\n%s", strings.ToUpper(string(alert.Severity)))}
	if alert.TaskID != "" {
		fields = append(fields, mrkdwn("*Task*\n`%s`", alert.TaskID))
	}
	if alert.Limit > 0 {
		fields = append(fields, mrkdwn("*Observed*\n%d (limit %d)", alert.Observed, alert.Limit))
	}
	if !alert.TriggeredAt.IsZero() {
		fields = append(fields, mrkdwn("*Triggered*\n%s", alert.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")))
	}
	return fields
}

func conditionTitle(condition string) string {
	switch condition {
	case ConditionTaskStale:
		return "Stale in-progress tasks"
	case ConditionDependencyRejections:
		return "Rejected dependency edges"
	case ConditionOpenTasks:
		return "Open task backlog"
	default:
		return condition
	}
}

func severityRank(severity AlertSeverity) int {
	switch severity {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
