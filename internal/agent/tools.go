package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	calendarintegration "github.com/taskline/taskline/pkg/integrations/google/calendar"
	gmailintegration "github.com/taskline/taskline/pkg/integrations/google/gmail"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	toolSendEmail         = "send_email"
	toolCreateEvent       = "create_event"
	toolGetUpcomingEvents = "get_upcoming_events"
	toolGetCurrentDate    = "get_current_date"
)

func agentTools() []anthropic.ToolUnionParam {
	sendEmail := anthropic.ToolParam{
		Name:        toolSendEmail,
		Description: anthropic.String("Send an email through the user's mail account. Content must be HTML."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: "object",
			Properties: map[string]any{
				"to":      map[string]any{"type": "string", "description": "Recipient email address"},
				"from":    map[string]any{"type": "string", "description": "Sender email address"},
				"subject": map[string]any{"type": "string"},
				"content": map[string]any{"type": "string", "description": "HTML body, using tags like <h2>, <p>, <strong>, <ul>, <li>"},
			},
			Required: []string{"to", "from", "subject", "content"},
		},
	}

	createEvent := anthropic.ToolParam{
		Name:        toolCreateEvent,
		Description: anthropic.String("Create an event on the user's calendar."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: "object",
			Properties: map[string]any{
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"location":    map[string]any{"type": "string"},
				"start_date":  map[string]any{"type": "string", "description": "ISO 8601 with offset, e.g. 2026-05-28T09:00:00+07:00"},
				"end_date":    map[string]any{"type": "string", "description": "ISO 8601 with offset"},
				"timezone":    map[string]any{"type": "string", "description": "IANA timezone name, e.g. Asia/Jakarta"},
				"attendees":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"recurrence":  map[string]any{"type": "string", "description": "Optional RRULE, e.g. RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR"},
			},
			Required: []string{"title", "start_date", "end_date", "timezone"},
		},
	}

	upcomingEvents := anthropic.ToolParam{
		Name:        toolGetUpcomingEvents,
		Description: anthropic.String("List the user's upcoming calendar events, soonest first."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: "object",
			Properties: map[string]any{
				"max_results": map[string]any{"type": "integer", "description": "Maximum number of events to return, default 10"},
			},
		},
	}

	currentDate := anthropic.ToolParam{
		Name:        toolGetCurrentDate,
		Description: anthropic.String("Get the current date and time. Use before any relative date calculation."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	return []anthropic.ToolUnionParam{
		{OfTool: &sendEmail},
		{OfTool: &createEvent},
		{OfTool: &upcomingEvents},
		{OfTool: &currentDate},
	}
}

type sendEmailInput struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

type createEventInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Timezone    string   `json:"timezone"`
	Attendees   []string `json:"attendees"`
	Recurrence  string   `json:"recurrence"`
}

func (a *Agent) executeTool(ctx context.Context, userID, name string, input json.RawMessage) (string, error) {
	switch name {
	case toolSendEmail:
		var params sendEmailInput
		if err := json.Unmarshal(input, &params); err != nil {
			return "", fmt.Errorf("invalid %s input: %w", name, err)
		}

		messageID, err := a.mail.SendMail(ctx, gmailintegration.SendMailParams{
			UserID:      userID,
			To:          params.To,
			From:        params.From,
			Subject:     params.Subject,
			HTMLContent: params.Content,
		})
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("Email sent, message id %s", messageID), nil

	case toolCreateEvent:
		var params createEventInput
		if err := json.Unmarshal(input, &params); err != nil {
			return "", fmt.Errorf("invalid %s input: %w", name, err)
		}

		link, err := a.calendar.CreateEvent(ctx, calendarintegration.CreateEventParams{
			UserID:      userID,
			Title:       params.Title,
			Description: params.Description,
			Location:    params.Location,
			StartDate:   params.StartDate,
			EndDate:     params.EndDate,
			Timezone:    params.Timezone,
			Attendees:   params.Attendees,
			Recurrence:  params.Recurrence,
		})
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("Event created: %s", link), nil

	case toolGetUpcomingEvents:
		var params struct {
			MaxResults int64 `json:"max_results"`
		}
		if err := json.Unmarshal(input, &params); err != nil {
			return "", fmt.Errorf("invalid %s input: %w", name, err)
		}
		if params.MaxResults <= 0 {
			params.MaxResults = 10
		}

		events, err := a.calendar.ListUpcomingEvents(ctx, userID, params.MaxResults)
		if err != nil {
			return "", err
		}
		if len(events) == 0 {
			return "No upcoming events.", nil
		}

		var summary strings.Builder
		for _, event := range events {
			start := event.Start.DateTime
			if start == "" {
				start = event.Start.Date
			}
			fmt.Fprintf(&summary, "- %s at %s\n", event.Summary, start)
		}

		return summary.String(), nil

	case toolGetCurrentDate:
		now := time.Now()
		return fmt.Sprintf("Current date: %s. Current time: %s.", now.Format("2006-01-02"), now.Format("15:04:05")), nil

	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}
