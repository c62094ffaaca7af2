package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/taskline/taskline/internal/domain"

	"github.com/rs/zerolog/log"
	calendarapi "google.golang.org/api/calendar/v3"
)

type CalendarIntegration struct {
	clientFactory domain.ServiceClientFactory
}

type CalendarIntegrationDependencies struct {
	ClientFactory domain.ServiceClientFactory
}

func NewCalendarIntegration(deps CalendarIntegrationDependencies) *CalendarIntegration {
	return &CalendarIntegration{
		clientFactory: deps.ClientFactory,
	}
}

type CreateEventParams struct {
	UserID      string
	Title       string
	Description string
	Location    string
	// StartDate and EndDate are ISO 8601 with offset, e.g.
	// 2026-05-28T09:00:00+07:00.
	StartDate string
	EndDate   string
	// Timezone is an IANA name like Asia/Jakarta.
	Timezone  string
	Attendees []string
	// Recurrence is an optional RRULE, e.g. RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR.
	Recurrence string
}

// CreateEvent inserts one event into the user's primary calendar and returns
// the event's HTML link.
func (c *CalendarIntegration) CreateEvent(ctx context.Context, params CreateEventParams) (string, error) {
	service, err := c.clientFactory.GetCalendarService(ctx, params.UserID)
	if err != nil {
		return "", err
	}

	event := &calendarapi.Event{
		Summary:     params.Title,
		Description: params.Description,
		Location:    params.Location,
		Start: &calendarapi.EventDateTime{
			DateTime: params.StartDate,
			TimeZone: params.Timezone,
		},
		End: &calendarapi.EventDateTime{
			DateTime: params.EndDate,
			TimeZone: params.Timezone,
		},
	}

	for _, attendee := range params.Attendees {
		event.Attendees = append(event.Attendees, &calendarapi.EventAttendee{Email: attendee})
	}

	if params.Recurrence != "" {
		event.Recurrence = []string{params.Recurrence}
	}

	created, err := service.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}

	log.Info().
		Str("user_id", params.UserID).
		Str("event_id", created.Id).
		Msg("Calendar event created")

	return created.HtmlLink, nil
}

// ListUpcomingEvents returns up to maxResults events starting after now,
// soonest first.
func (c *CalendarIntegration) ListUpcomingEvents(ctx context.Context, userID string, maxResults int64) ([]*calendarapi.Event, error) {
	service, err := c.clientFactory.GetCalendarService(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, err := service.Events.List("primary").
		TimeMin(time.Now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	return events.Items, nil
}
