package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// CreateRequest books ServiceIDs, in order, starting at StartMinute on the calendar day of
// Date in the tenant timezone. Either ClientID or CustomerName identifies the client.
type CreateRequest struct {
	StaffID        string
	ClientID       string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	ServiceIDs     []string
	Date           time.Time
	StartMinute    int
	Notes          string
	Confirmed      bool
	IdempotencyKey string
}

type Booking struct {
	Appointment model.Appointment
	Replayed    bool
}

func (r *CreateRequest) normalize() error {
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.ToLower(strings.TrimSpace(r.CustomerEmail))
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)

	if len(r.ServiceIDs) == 0 {
		return apperr.New(apperr.KindInvalidRequest, "at least one service is required")
	}
	if r.ClientID == "" && r.CustomerName == "" {
		return apperr.New(apperr.KindInvalidRequest, "client_id or customer_name is required")
	}
	if r.Date.IsZero() {
		return apperr.New(apperr.KindInvalidRequest, "date is required")
	}
	if r.StartMinute < 0 || r.StartMinute >= 24*60 {
		return apperr.New(apperr.KindInvalidRequest, "start time must be within the day")
	}
	return nil
}

// Create validates and commits one appointment. The staff-day lock is held while hours,
// blocks and existing bookings are re-checked and the row is written. A request carrying an
// idempotency key that already produced an appointment returns that appointment without
// re-validating, even once its slot is taken or its start has passed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Booking, error) {
	biz, err := businessID(ctx)
	if err != nil {
		return Booking{}, err
	}
	if err := req.normalize(); err != nil {
		return Booking{}, err
	}

	if req.IdempotencyKey != "" {
		if b, ok, err := s.replay(ctx, biz, req.IdempotencyKey); err != nil || ok {
			return b, err
		}
	}

	b, err := s.create(ctx, biz, req)
	if err != nil && req.IdempotencyKey != "" {
		// A concurrent request with the same key may have committed while this one was
		// validating against the slot it now occupies.
		if prior, ok, rerr := s.replay(ctx, biz, req.IdempotencyKey); rerr == nil && ok {
			return prior, nil
		}
	}
	return b, err
}

func (s *Service) replay(ctx context.Context, biz, key string) (Booking, bool, error) {
	id, err := s.store.IdempotentAppointment(ctx, biz, key)
	if err != nil {
		return Booking{}, false, fmt.Errorf("look up idempotency key: %w", err)
	}
	if id == "" {
		return Booking{}, false, nil
	}
	appt, err := s.store.Appointment(ctx, biz, id)
	if err != nil {
		return Booking{}, false, err
	}
	return Booking{Appointment: appt, Replayed: true}, true, nil
}

func (s *Service) create(ctx context.Context, biz string, req CreateRequest) (Booking, error) {
	client, err := s.resolveClient(ctx, biz, &req)
	if err != nil {
		return Booking{}, err
	}
	if client != nil && client.Blacklisted {
		return Booking{}, apperr.New(apperr.KindClientBlacklisted, "client is not allowed to book")
	}

	settings, err := s.calc.Settings(ctx, biz)
	if err != nil {
		return Booking{}, fmt.Errorf("load settings: %w", err)
	}
	loc := settings.Location()

	services, err := s.calc.Services(ctx, biz, req.ServiceIDs)
	if err != nil {
		return Booking{}, err
	}
	items := make([]model.LineItem, len(services))
	for i, svc := range services {
		items[i] = svc.Snapshot(i)
	}

	sch := place(req.Date, req.StartMinute, items, loc)
	if err := s.notBefore(sch, loc); err != nil {
		return Booking{}, err
	}

	staffID := req.StaffID
	if staffID != "" {
		if _, err := s.calc.Staff(ctx, biz, staffID); err != nil {
			return Booking{}, err
		}
	} else {
		id, ok, err := s.calc.FindAvailableStaff(ctx, biz, sch.day, sch.service, sch.buffered)
		if err != nil {
			return Booking{}, err
		}
		if !ok {
			return Booking{}, apperr.New(apperr.KindNoCapacity, "no staff member is available at %s", sch.service.Start.Format("15:04"))
		}
		staffID = id
	}

	dur, price, _ := model.Totals(items)
	status := model.StatusPending
	if req.Confirmed {
		status = model.StatusConfirmed
	}
	appt := model.Appointment{
		BusinessID:      biz,
		StaffID:         staffID,
		ClientID:        req.ClientID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Items:           items,
		Date:            sch.day,
		StartTime:       sch.service.Start,
		EndTime:         sch.service.End,
		BufferedEnd:     sch.buffered.End,
		DurationMinutes: dur,
		PriceCents:      price,
		Status:          status,
		Notes:           strings.TrimSpace(req.Notes),
	}

	var replayed bool
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.ClaimIdempotencyKey(ctx, biz, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("claim idempotency key: %w", err)
			}
			if existing != "" {
				prior, err := tx.AppointmentForUpdate(ctx, biz, existing)
				if err != nil {
					return err
				}
				appt, replayed = prior, true
				return nil
			}
		}

		if err := tx.LockStaffDay(ctx, biz, staffID, sch.day); err != nil {
			return fmt.Errorf("lock staff day: %w", err)
		}
		if err := s.calc.WithOccupancy(tx).CheckBookable(ctx, biz, staffID, sch.day, sch.service, sch.buffered, ""); err != nil {
			return err
		}
		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(outbox.TypeAppointmentBooked, appointmentPayload(appt, "", "", s.now()))
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		if req.IdempotencyKey != "" {
			return tx.SaveIdempotencyKey(ctx, biz, req.IdempotencyKey, appt.ID)
		}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	if !replayed {
		s.logger.Info("appointment booked", "business_id", biz, "appointment_id", appt.ID, "staff_id", staffID,
			"start_time", appt.StartTime.Format(time.RFC3339))
		s.notifier.Notify(ctx, AppointmentNotification(notify.KindConfirmation, appt, settings))
	}
	return Booking{Appointment: appt, Replayed: replayed}, nil
}

// resolveClient loads the registered client, or the client whose email matches a walk-in
// booking. A matched walk-in is linked to that client.
func (s *Service) resolveClient(ctx context.Context, biz string, req *CreateRequest) (*model.Client, error) {
	if req.ClientID != "" {
		c, ok, err := s.store.Client(ctx, biz, req.ClientID)
		if err != nil {
			return nil, fmt.Errorf("load client: %w", err)
		}
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "client %s not found", req.ClientID)
		}
		if req.CustomerName == "" {
			req.CustomerName = c.Name
		}
		if req.CustomerEmail == "" {
			req.CustomerEmail = c.Email
		}
		if req.CustomerPhone == "" {
			req.CustomerPhone = c.Phone
		}
		return &c, nil
	}
	if req.CustomerEmail == "" {
		return nil, nil
	}
	c, ok, err := s.store.ClientByEmail(ctx, biz, req.CustomerEmail)
	if err != nil {
		return nil, fmt.Errorf("load client by email: %w", err)
	}
	if !ok {
		return nil, nil
	}
	req.ClientID = c.ID
	return &c, nil
}
