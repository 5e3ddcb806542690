package lifecycle

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// Tx is the transactional view of storage. Every method runs in the same transaction.
type Tx interface {
	availability.OccupancyStore

	// LockStaffDay serialises writers for one staff member's day until the transaction ends.
	LockStaffDay(ctx context.Context, businessID, staffID string, day time.Time) error

	// ClaimIdempotencyKey locks key and returns the appointment already created with it,
	// or "" when the key is new.
	ClaimIdempotencyKey(ctx context.Context, businessID, key string) (string, error)
	SaveIdempotencyKey(ctx context.Context, businessID, key, appointmentID string) error

	InsertAppointment(ctx context.Context, appt *model.Appointment) error
	AppointmentForUpdate(ctx context.Context, businessID, id string) (model.Appointment, error)
	SetStatus(ctx context.Context, appt model.Appointment) error
	SetSchedule(ctx context.Context, appt model.Appointment) error

	ClientForUpdate(ctx context.Context, businessID, id string) (model.Client, bool, error)
	ClientByEmailForUpdate(ctx context.Context, businessID, email string) (model.Client, bool, error)
	SaveClientStanding(ctx context.Context, c model.Client) error

	AppendEvent(ctx context.Context, evt outbox.Event) error
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Client(ctx context.Context, businessID, id string) (model.Client, bool, error)
	ClientByEmail(ctx context.Context, businessID, email string) (model.Client, bool, error)
	Appointment(ctx context.Context, businessID, id string) (model.Appointment, error)
	// IdempotentAppointment returns the appointment committed under key, or "".
	IdempotentAppointment(ctx context.Context, businessID, key string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}
