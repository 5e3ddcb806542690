package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// Tx works on a private copy of the state. Store.InTx serialises transactions, so the
// staff-day lock is implied.
type Tx struct {
	st  *state
	now func() time.Time
}

func (t *Tx) ActiveIntervals(_ context.Context, businessID, staffID string, span availability.Interval, excludeID string) ([]availability.Interval, error) {
	return activeIntervals(t.st, businessID, staffID, span, excludeID), nil
}

func (t *Tx) BlockedSlots(_ context.Context, businessID, staffID string, day time.Time) ([]model.BlockedSlot, error) {
	return blockedSlots(t.st, businessID, staffID, day), nil
}

func (t *Tx) LockStaffDay(context.Context, string, string, time.Time) error { return nil }

func (t *Tx) ClaimIdempotencyKey(_ context.Context, businessID, key string) (string, error) {
	return t.st.idem[businessID+"|"+key], nil
}

func (t *Tx) SaveIdempotencyKey(_ context.Context, businessID, key, appointmentID string) error {
	t.st.idem[businessID+"|"+key] = appointmentID
	return nil
}

// InsertAppointment rejects overlapping active occupancy the way the exclusion constraint does.
func (t *Tx) InsertAppointment(_ context.Context, appt *model.Appointment) error {
	span := availability.Interval{Start: appt.StartTime, End: appt.BufferedEnd}
	if appt.Status.Active() && len(activeIntervals(t.st, appt.BusinessID, appt.StaffID, span, "")) > 0 {
		return apperr.New(apperr.KindConflict, "time slot already booked")
	}
	now := t.now().UTC()
	appt.ID = uuid.NewString()
	appt.CreatedAt, appt.UpdatedAt = now, now
	t.st.appts[appt.ID] = *appt
	return nil
}

func (t *Tx) AppointmentForUpdate(_ context.Context, businessID, id string) (model.Appointment, error) {
	return appointment(t.st, businessID, id)
}

func (t *Tx) SetStatus(_ context.Context, appt model.Appointment) error {
	cur, err := appointment(t.st, appt.BusinessID, appt.ID)
	if err != nil {
		return err
	}
	cur.Status, cur.CancelledAt, cur.CancelReason, cur.UpdatedAt = appt.Status, appt.CancelledAt, appt.CancelReason, appt.UpdatedAt
	t.st.appts[appt.ID] = cur
	return nil
}

func (t *Tx) SetSchedule(_ context.Context, appt model.Appointment) error {
	cur, err := appointment(t.st, appt.BusinessID, appt.ID)
	if err != nil {
		return err
	}
	span := availability.Interval{Start: appt.StartTime, End: appt.BufferedEnd}
	if len(activeIntervals(t.st, appt.BusinessID, appt.StaffID, span, appt.ID)) > 0 {
		return apperr.New(apperr.KindConflict, "time slot already booked")
	}
	cur.StaffID, cur.Date, cur.StartTime, cur.EndTime, cur.BufferedEnd, cur.UpdatedAt =
		appt.StaffID, appt.Date, appt.StartTime, appt.EndTime, appt.BufferedEnd, appt.UpdatedAt
	t.st.appts[appt.ID] = cur
	return nil
}

func (t *Tx) ClientForUpdate(_ context.Context, businessID, id string) (model.Client, bool, error) {
	return clientByID(t.st, businessID, id)
}

func (t *Tx) ClientByEmailForUpdate(_ context.Context, businessID, email string) (model.Client, bool, error) {
	return clientByEmail(t.st, businessID, email)
}

func (t *Tx) SaveClientStanding(_ context.Context, c model.Client) error {
	t.st.clients[c.ID] = c
	return nil
}

func (t *Tx) AppendEvent(_ context.Context, evt outbox.Event) error {
	t.st.events = append(t.st.events, evt)
	return nil
}
