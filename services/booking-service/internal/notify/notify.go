package notify

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindReschedule   Kind = "reschedule"
	KindReminder     Kind = "reminder"
	KindBlacklist    Kind = "blacklist"
)

type Notification struct {
	Kind          Kind
	BusinessID    string
	AppointmentID string
	ClientID      string
	Recipient     string
	Variables     map[string]string
}

// Channel picks email for addresses and sms for anything else.
func (n Notification) Channel() string {
	if strings.Contains(n.Recipient, "@") {
		return "email"
	}
	return "sms"
}

// Sink delivers one notification. Errors are retried by the Dispatcher.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

type EventAppender interface {
	AppendEvent(ctx context.Context, evt outbox.Event) error
}

// OutboxSink hands notifications to the notification service through the outbox.
type OutboxSink struct {
	events EventAppender
	now    func() time.Time
}

func NewOutboxSink(events EventAppender) *OutboxSink {
	return &OutboxSink{events: events, now: time.Now}
}

func (s *OutboxSink) Deliver(ctx context.Context, n Notification) error {
	evt, err := outbox.NewNotificationEvent(outbox.NotificationPayload{
		Kind:          string(n.Kind),
		BusinessID:    n.BusinessID,
		AppointmentID: n.AppointmentID,
		ClientID:      n.ClientID,
		Channel:       n.Channel(),
		Recipient:     n.Recipient,
		Variables:     n.Variables,
		RequestedAt:   s.now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.events.AppendEvent(ctx, evt)
}
