package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurring"
)

type Availability interface {
	AvailableSlots(ctx context.Context, businessID string, date time.Time, serviceIDs []string, staffID string) ([]availability.StaffSlots, error)
}

type Bookings interface {
	Create(ctx context.Context, req lifecycle.CreateRequest) (lifecycle.Booking, error)
	UpdateStatus(ctx context.Context, id string, next model.Status, reason string) (model.Appointment, error)
	ClientCancel(ctx context.Context, id, reason string) (model.Appointment, error)
	Reschedule(ctx context.Context, req lifecycle.RescheduleRequest) (model.Appointment, error)
	ClearBlacklist(ctx context.Context, clientID string) (model.Client, error)
}

type Recurring interface {
	CreateRecurring(ctx context.Context, template lifecycle.CreateRequest, rule recurring.Rule, count int) (recurring.Result, error)
}

type Store interface {
	Appointment(ctx context.Context, businessID, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	ReplaceWorkingHours(ctx context.Context, businessID, staffID string, week []model.WorkingHours) error
	CreateBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, businessID, id string) error
}

type SettingsStore interface {
	Settings(ctx context.Context, businessID string) (model.Settings, error)
	SaveSettings(ctx context.Context, v model.Settings) error
}

type Deps struct {
	Availability Availability
	Bookings     Bookings
	Recurring    Recurring
	Store        Store
	Settings     SettingsStore
	Logger       *slog.Logger
}

type BookingHandler struct {
	avail     Availability
	bookings  Bookings
	recurring Recurring
	store     Store
	settings  SettingsStore
	logger    *slog.Logger
}

func NewBookingHandler(d Deps) *BookingHandler {
	return &BookingHandler{
		avail:     d.Availability,
		bookings:  d.Bookings,
		recurring: d.Recurring,
		store:     d.Store,
		settings:  d.Settings,
		logger:    d.Logger,
	}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/appointments", h.List)
	mux.HandleFunc("/api/v1/appointments/get", h.Get)
	mux.HandleFunc("/api/v1/appointments/recurring", h.BookRecurring)
	mux.HandleFunc("/api/v1/appointments/status", h.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/admin/working-hours", h.WorkingHours)
	mux.HandleFunc("/api/v1/admin/blocked-slots", h.BlockedSlots)
	mux.HandleFunc("/api/v1/admin/clients/unblacklist", h.Unblacklist)
	mux.HandleFunc("/api/v1/admin/settings", h.Settings)
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}

// writeErr maps a domain error to its status. Untyped errors are logged and answered
// with a generic 500.
func (h *BookingHandler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
	}
	httpx.WriteError(w, status, strings.ToLower(string(kind)), apperr.Message(err))
}

func badRequest(format string, args ...any) error {
	return apperr.New(apperr.KindInvalidRequest, format, args...)
}

func (h *BookingHandler) decode(r *http.Request, v any) error {
	if err := httpx.DecodeJSON(r, v); err != nil {
		return badRequest("%s", err.Error())
	}
	return nil
}

// scope returns the tenant id and its settings.
func (h *BookingHandler) scope(ctx context.Context) (string, model.Settings, error) {
	biz, err := tenant.Require(ctx)
	if err != nil {
		return "", model.Settings{}, apperr.Wrap(apperr.KindNoTenantContext, err, "tenant context is required")
	}
	settings, err := h.settings.Settings(ctx, biz)
	if err != nil {
		return "", model.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return biz, settings, nil
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, badRequest("date must be YYYY-MM-DD")
	}
	return d, nil
}

// parseClock reads "HH:MM" as minutes from midnight. "24:00" is accepted as an end bound.
func parseClock(field, raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if !ok || errH != nil || errM != nil || h < 0 || m < 0 || m > 59 || h*60+m > 24*60 {
		return 0, badRequest("%s must be HH:MM", field)
	}
	return h*60 + m, nil
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
