// Package gcal implements the calendar capability over the Google
// Calendar API.
package gcal

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"inboxmind/internal/capability"
)

// Client is the Calendar-backed capability.Calendar implementation.
type Client struct {
	svc        *calendarapi.Service
	calendarID string
	logger     *zap.Logger
}

var _ capability.Calendar = (*Client)(nil)

// NewClient builds a calendar client. calendarID is usually "primary".
func NewClient(ctx context.Context, httpClient *http.Client, calendarID string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	svc, err := calendarapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID, logger: logger}, nil
}

// FreeSlots queries free/busy for the window and returns every gap of at
// least minMinutes.
func (c *Client) FreeSlots(ctx context.Context, start, end time.Time, minMinutes int) ([]capability.TimeSlot, error) {
	resp, err := c.svc.Freebusy.Query(&calendarapi.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: "UTC",
		Items:    []*calendarapi.FreeBusyRequestItem{{Id: c.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	var busy []capability.TimeSlot
	if cal, ok := resp.Calendars[c.calendarID]; ok {
		for _, p := range cal.Busy {
			bs, err := time.Parse(time.RFC3339, p.Start)
			if err != nil {
				return nil, fmt.Errorf("parse busy start %q: %w", p.Start, err)
			}
			be, err := time.Parse(time.RFC3339, p.End)
			if err != nil {
				return nil, fmt.Errorf("parse busy end %q: %w", p.End, err)
			}
			busy = append(busy, capability.TimeSlot{Start: bs, End: be})
		}
	}

	slots := freeGaps(start, end, busy, minMinutes)
	c.logger.Debug("availability computed",
		zap.Int("busy_periods", len(busy)),
		zap.Int("free_slots", len(slots)))
	return slots, nil
}

// CreateEvent creates an event with attendees on the operator's calendar.
func (c *Client) CreateEvent(ctx context.Context, p capability.EventParams) (capability.EventResult, error) {
	event := &calendarapi.Event{
		Summary:     p.Title,
		Description: p.Description,
		Start:       &calendarapi.EventDateTime{DateTime: p.Start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendarapi.EventDateTime{DateTime: p.End.Format(time.RFC3339), TimeZone: "UTC"},
	}
	for _, a := range p.Attendees {
		event.Attendees = append(event.Attendees, &calendarapi.EventAttendee{Email: a})
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return capability.EventResult{}, fmt.Errorf("insert event: %w", err)
	}
	c.logger.Info("calendar event created",
		zap.String("id", created.Id),
		zap.String("title", p.Title))
	return capability.EventResult{EventID: created.Id, Link: created.HtmlLink}, nil
}

// freeGaps walks the window and collects every gap between busy periods
// of at least minMinutes. Busy periods may overlap or arrive unsorted.
func freeGaps(start, end time.Time, busy []capability.TimeSlot, minMinutes int) []capability.TimeSlot {
	if minMinutes <= 0 {
		minMinutes = 30
	}
	sorted := append([]capability.TimeSlot(nil), busy...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var out []capability.TimeSlot
	cursor := start
	for _, b := range sorted {
		if cursor.Before(b.Start) {
			gap := capability.TimeSlot{Start: cursor, End: b.Start}
			if gap.Minutes() >= minMinutes {
				out = append(out, gap)
			}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(end) {
		gap := capability.TimeSlot{Start: cursor, End: end}
		if gap.Minutes() >= minMinutes {
			out = append(out, gap)
		}
	}
	return out
}
