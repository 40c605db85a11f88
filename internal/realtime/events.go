// Package realtime fans appointment and notification events out to live dashboard sessions over
// Redis pub/sub.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
)

// EventType tags a realtime message.
type EventType string

const (
	EventAppointmentsChanged EventType = "appointments.changed"
	EventNotification        EventType = "notification"
)

// Event is the JSON body published on a realtime channel.
type Event struct {
	Type           EventType           `json:"type"`
	SalonID        string              `json:"salonId,omitempty"`
	AppointmentID  string              `json:"appointmentId,omitempty"`
	Status         string              `json:"status,omitempty"`
	UserID         string              `json:"userId,omitempty"`
	NotificationID string              `json:"notificationId,omitempty"`
	Payload        *models.PushPayload `json:"payload,omitempty"`
	OccurredAt     time.Time           `json:"occurredAt"`
}

// DecodeEvent parses a channel message body.
func DecodeEvent(raw []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Event{}, fmt.Errorf("decode realtime event: %w", err)
	}
	switch evt.Type {
	case EventAppointmentsChanged, EventNotification:
	default:
		return Event{}, fmt.Errorf("unknown realtime event type %q", evt.Type)
	}
	return evt, nil
}
