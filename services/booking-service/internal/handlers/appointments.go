package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurring"
)

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
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
	f := model.AppointmentFilter{
		BusinessID: biz,
		StaffID:    strings.TrimSpace(q.Get("staff_id")),
		ClientID:   strings.TrimSpace(q.Get("client_id")),
		Limit:      50,
	}
	for _, raw := range splitList(strings.Join(q["status"], ",")) {
		st, err := model.ParseStatus(raw)
		if err != nil {
			h.writeErr(w, r, badRequest("%s", err.Error()))
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	loc := settings.Location()
	if raw := q.Get("from"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		y, m, day := d.Date()
		f.From = time.Date(y, m, day, 0, 0, 0, 0, loc)
	}
	if raw := q.Get("to"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		// to is inclusive of the whole day
		y, m, day := d.Date()
		f.To = time.Date(y, m, day+1, 0, 0, 0, 0, loc)
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}

	appts, err := h.store.ListAppointments(ctx, f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": toAppointments(appts, loc)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()
	biz, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		h.writeErr(w, r, badRequest("id is required"))
		return
	}
	appt, err := h.store.Appointment(ctx, biz, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt, settings.Location()))
}

// BookRecurring books a series as staff; instances start CONFIRMED.
func (h *BookingHandler) BookRecurring(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	_, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body recurringRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	rule, err := recurring.ParseRule(body.Rule)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	template, err := body.toCreate()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	template.Confirmed = true
	template.IdempotencyKey = r.Header.Get("Idempotency-Key")

	res, err := h.recurring.CreateRecurring(ctx, template, rule, body.Count)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Created == 0 {
		status = http.StatusConflict
	}
	httpx.WriteJSON(w, status, recurringResponse{
		GroupID:      res.GroupID,
		Rule:         string(res.Rule),
		Requested:    res.Requested,
		Created:      res.Created,
		Appointments: toAppointments(res.Appointments, settings.Location()),
		Skipped:      res.Skipped,
	})
}

// UpdateStatus is the staff-side transition. NO_SHOW escalates the client.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	_, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body statusRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	next, err := model.ParseStatus(body.Status)
	if err != nil {
		h.writeErr(w, r, badRequest("%s", err.Error()))
		return
	}
	if strings.TrimSpace(body.AppointmentID) == "" {
		h.writeErr(w, r, badRequest("appointment_id is required"))
		return
	}
	appt, err := h.bookings.UpdateStatus(ctx, strings.TrimSpace(body.AppointmentID), next, strings.TrimSpace(body.Reason))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt, settings.Location()))
}

// Cancel is the client-side cancellation and honours the cancellation policy.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	_, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body cancelRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(body.AppointmentID) == "" {
		h.writeErr(w, r, badRequest("appointment_id is required"))
		return
	}
	appt, err := h.bookings.ClientCancel(ctx, strings.TrimSpace(body.AppointmentID), strings.TrimSpace(body.Reason))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt, settings.Location()))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	_, settings, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body rescheduleRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	start, err := parseClock("start_time", body.StartTime)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	appt, err := h.bookings.Reschedule(ctx, lifecycle.RescheduleRequest{
		ID:          strings.TrimSpace(body.AppointmentID),
		StaffID:     strings.TrimSpace(body.StaffID),
		Date:        date,
		StartMinute: start,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt, settings.Location()))
}
