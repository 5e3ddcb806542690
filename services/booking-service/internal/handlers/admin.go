package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func (d dayHours) toModel() (model.WorkingHours, error) {
	if d.Weekday < 0 || d.Weekday > 6 {
		return model.WorkingHours{}, badRequest("weekday must be 0 (Sunday) to 6")
	}
	wh := model.WorkingHours{Weekday: time.Weekday(d.Weekday), IsOpen: d.IsOpen}
	if !d.IsOpen {
		return wh, nil
	}
	open, err := parseClock("open", d.Open)
	if err != nil {
		return wh, err
	}
	closing, err := parseClock("close", d.Close)
	if err != nil {
		return wh, err
	}
	wh.Open = model.MinuteRange{Start: open, End: closing}
	if !wh.Open.Valid() {
		return wh, badRequest("%s: open must be before close", time.Weekday(d.Weekday))
	}
	if d.BreakStart == "" && d.BreakEnd == "" {
		return wh, nil
	}
	bs, err := parseClock("break_start", d.BreakStart)
	if err != nil {
		return wh, err
	}
	be, err := parseClock("break_end", d.BreakEnd)
	if err != nil {
		return wh, err
	}
	brk := model.MinuteRange{Start: bs, End: be}
	if !brk.Valid() || brk.Start < wh.Open.Start || brk.End > wh.Open.End {
		return wh, badRequest("%s: break must lie inside opening hours", time.Weekday(d.Weekday))
	}
	wh.Break = &brk
	return wh, nil
}

// WorkingHours replaces the week of one scope: a staff member, or the facility when
// staff_id is empty. Weekdays left out have no record and fall back to the facility.
func (h *BookingHandler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	ctx := r.Context()
	biz, _, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body workingHoursRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	seen := map[int]bool{}
	week := make([]model.WorkingHours, 0, len(body.Days))
	for _, d := range body.Days {
		if seen[d.Weekday] {
			h.writeErr(w, r, badRequest("weekday %d listed twice", d.Weekday))
			return
		}
		seen[d.Weekday] = true
		wh, err := d.toModel()
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		week = append(week, wh)
	}
	staffID := strings.TrimSpace(body.StaffID)
	if err := h.store.ReplaceWorkingHours(ctx, biz, staffID, week); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"staff_id": staffID, "days": len(week)})
}

func (h *BookingHandler) BlockedSlots(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	ctx := r.Context()
	biz, _, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	if r.Method == http.MethodDelete {
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			h.writeErr(w, r, badRequest("id is required"))
			return
		}
		if err := h.store.DeleteBlockedSlot(ctx, biz, id); err != nil {
			h.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var body blockedSlotRequest
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
	end, err := parseClock("end_time", body.EndTime)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	rng := model.MinuteRange{Start: start, End: end}
	if !rng.Valid() {
		h.writeErr(w, r, badRequest("start_time must be before end_time"))
		return
	}
	b, err := h.store.CreateBlockedSlot(ctx, model.BlockedSlot{
		BusinessID: biz,
		StaffID:    strings.TrimSpace(body.StaffID),
		Date:       date,
		Range:      rng,
		Reason:     strings.TrimSpace(body.Reason),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, blockedSlotResponse{
		ID:        b.ID,
		StaffID:   b.StaffID,
		Date:      b.Date.Format(time.DateOnly),
		StartTime: clock(b.Range.Start),
		EndTime:   clock(b.Range.End),
		Reason:    b.Reason,
	})
}

// Unblacklist is the only way a blacklist flag is cleared.
func (h *BookingHandler) Unblacklist(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var body unblacklistRequest
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.bookings.ClearBlacklist(r.Context(), strings.TrimSpace(body.ClientID))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clientResponse{
		ClientID:    c.ID,
		Name:        c.Name,
		NoShowCount: c.NoShowCount,
		Blacklisted: c.Blacklisted,
	})
}

func (h *BookingHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	ctx := r.Context()
	biz, current, err := h.scope(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if r.Method == http.MethodGet {
		httpx.WriteJSON(w, http.StatusOK, settingsBody{
			BusinessName:            current.BusinessName,
			Timezone:                current.Timezone,
			CancellationPolicyHours: current.CancellationPolicyHours,
			SlotStepMinutes:         current.SlotStepMinutes,
		})
		return
	}

	var body settingsBody
	if err := h.decode(r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if _, err := time.LoadLocation(body.Timezone); err != nil || body.Timezone == "" {
		h.writeErr(w, r, badRequest("unknown timezone %q", body.Timezone))
		return
	}
	if body.CancellationPolicyHours < 0 || body.SlotStepMinutes <= 0 || body.SlotStepMinutes > 24*60 {
		h.writeErr(w, r, badRequest("cancellation_policy_hours must be >= 0 and slot_step_minutes > 0"))
		return
	}
	next := model.Settings{
		BusinessID:              biz,
		BusinessName:            strings.TrimSpace(body.BusinessName),
		Timezone:                body.Timezone,
		CancellationPolicyHours: body.CancellationPolicyHours,
		SlotStepMinutes:         body.SlotStepMinutes,
	}
	if err := h.settings.SaveSettings(ctx, next); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}
