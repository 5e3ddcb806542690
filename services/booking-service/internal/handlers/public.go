package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
)

type slotsResponse struct {
	Date     string                    `json:"date"`
	Timezone string                    `json:"timezone"`
	Staff    []availability.StaffSlots `json:"staff"`
}

// Slots lists every candidate slot of the day per bookable staff member.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()
	biz, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	date, err := parseDate(q.Get("date"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	serviceIDs := splitList(strings.Join(q["service_ids"], ","))
	if len(serviceIDs) == 0 {
		serviceIDs = splitList(q.Get("service_id"))
	}
	if len(serviceIDs) == 0 {
		h.writeErr(w, r, badRequest("service_ids is required"))
		return
	}

	staff, err := h.avail.AvailableSlots(ctx, biz, date, serviceIDs, strings.TrimSpace(q.Get("staff_id")))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		Date:     date.Format(time.DateOnly),
		Timezone: settings.Location().String(),
		Staff:    staff,
	})
}

func (body bookingRequest) toCreate() (lifecycle.CreateRequest, error) {
	date, err := parseDate(body.Date)
	if err != nil {
		return lifecycle.CreateRequest{}, err
	}
	start, err := parseClock("start_time", body.StartTime)
	if err != nil {
		return lifecycle.CreateRequest{}, err
	}
	return lifecycle.CreateRequest{
		StaffID:       body.StaffID,
		ClientID:      body.ClientID,
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		CustomerPhone: body.CustomerPhone,
		ServiceIDs:    body.ServiceIDs,
		Date:          date,
		StartMinute:   start,
		Notes:         strings.TrimSpace(body.Notes),
	}, nil
}

// Book creates a PENDING appointment. A repeated Idempotency-Key answers with the
// appointment created the first time.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	_, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body bookingRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	req, err := body.toCreate()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	b, err := h.bookings.Create(ctx, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if b.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, toAppointment(b.Appointment, settings.Location()))
}
