package outbox

import (
	"encoding/json"
	"time"
)

// Event types. The Kafka topic name equals the event type.
const (
	TypeAppointmentBooked      = "booking.appointment.booked.v1"
	TypeAppointmentCancelled   = "booking.appointment.cancelled.v1"
	TypeAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	TypeAppointmentStatus      = "booking.appointment.status_changed.v1"
	TypeNotificationRequested  = "booking.notification.requested.v1"
)

// Event is the envelope written to the outbox table.
type Event struct {
	BusinessID    string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type AppointmentPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	BusinessID     string    `json:"business_id"`
	StaffID        string    `json:"staff_id"`
	ClientID       string    `json:"client_id,omitempty"`
	CustomerEmail  string    `json:"customer_email,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RecurringGroup string    `json:"recurring_group,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type NotificationPayload struct {
	Kind          string            `json:"kind"`
	BusinessID    string            `json:"business_id"`
	AppointmentID string            `json:"appointment_id,omitempty"`
	ClientID      string            `json:"client_id,omitempty"`
	Channel       string            `json:"channel"`
	Recipient     string            `json:"recipient"`
	Variables     map[string]string `json:"variables,omitempty"`
	RequestedAt   time.Time         `json:"requested_at"`
}

func NewAppointmentEvent(eventType string, p AppointmentPayload) (Event, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		BusinessID:    p.BusinessID,
		AggregateType: "appointment",
		AggregateID:   p.AppointmentID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}

func NewNotificationEvent(p NotificationPayload) (Event, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	aggregate := p.AppointmentID
	if aggregate == "" {
		aggregate = p.ClientID
	}
	return Event{
		BusinessID:    p.BusinessID,
		AggregateType: "notification",
		AggregateID:   aggregate,
		EventType:     TypeNotificationRequested,
		Payload:       b,
	}, nil
}
