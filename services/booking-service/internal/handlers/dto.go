package handlers

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurring"
)

type lineItemResponse struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
}

type appointmentResponse struct {
	AppointmentID   string             `json:"appointment_id"`
	StaffID         string             `json:"staff_id"`
	ClientID        string             `json:"client_id,omitempty"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	CustomerPhone   string             `json:"customer_phone,omitempty"`
	Services        []lineItemResponse `json:"services"`
	Date            string             `json:"date"`
	StartTime       string             `json:"start_time"`
	EndTime         string             `json:"end_time"`
	DurationMinutes int                `json:"duration_minutes"`
	PriceCents      int64              `json:"price_cents"`
	Status          model.Status       `json:"status"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	RecurringGroup  string             `json:"recurring_group,omitempty"`
	RecurringRule   string             `json:"recurring_rule,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	CreatedAt       string             `json:"created_at"`
}

// toAppointment renders times in the tenant timezone. The buffered end stays internal.
func toAppointment(a model.Appointment, loc *time.Location) appointmentResponse {
	items := make([]lineItemResponse, 0, len(a.Items))
	for _, it := range a.Items {
		items = append(items, lineItemResponse{
			ServiceID:       it.ServiceID,
			Name:            it.Name,
			PriceCents:      it.PriceCents,
			DurationMinutes: it.DurationMinutes,
			BufferMinutes:   it.BufferMinutes,
		})
	}
	resp := appointmentResponse{
		AppointmentID:   a.ID,
		StaffID:         a.StaffID,
		ClientID:        a.ClientID,
		CustomerName:    a.CustomerName,
		CustomerEmail:   a.CustomerEmail,
		CustomerPhone:   a.CustomerPhone,
		Services:        items,
		Date:            a.Date.Format(time.DateOnly),
		StartTime:       a.StartTime.In(loc).Format(time.RFC3339),
		EndTime:         a.EndTime.In(loc).Format(time.RFC3339),
		DurationMinutes: a.DurationMinutes,
		PriceCents:      a.PriceCents,
		Status:          a.Status,
		CancelReason:    a.CancelReason,
		RecurringGroup:  a.RecurringGroup,
		RecurringRule:   a.RecurringRule,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toAppointments(appts []model.Appointment, loc *time.Location) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointment(a, loc))
	}
	return out
}

type bookingRequest struct {
	StaffID       string   `json:"staff_id"`
	ClientID      string   `json:"client_id"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
	ServiceIDs    []string `json:"service_ids"`
	Date          string   `json:"date"`
	StartTime     string   `json:"start_time"`
	Notes         string   `json:"notes"`
}

type recurringRequest struct {
	bookingRequest
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

type recurringResponse struct {
	GroupID      string                `json:"group_id,omitempty"`
	Rule         string                `json:"rule"`
	Requested    int                   `json:"requested"`
	Created      int                   `json:"created"`
	Appointments []appointmentResponse `json:"appointments"`
	Skipped      []recurring.Skipped   `json:"skipped"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
}

type dayHours struct {
	Weekday    int    `json:"weekday"`
	IsOpen     bool   `json:"is_open"`
	Open       string `json:"open,omitempty"`
	Close      string `json:"close,omitempty"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

type workingHoursRequest struct {
	StaffID string     `json:"staff_id"`
	Days    []dayHours `json:"days"`
}

type blockedSlotRequest struct {
	StaffID   string `json:"staff_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

type blockedSlotResponse struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

type unblacklistRequest struct {
	ClientID string `json:"client_id"`
}

type clientResponse struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	NoShowCount int    `json:"no_show_count"`
	Blacklisted bool   `json:"blacklisted"`
}

type settingsBody struct {
	BusinessName            string `json:"business_name"`
	Timezone                string `json:"timezone"`
	CancellationPolicyHours int    `json:"cancellation_policy_hours"`
	SlotStepMinutes         int    `json:"slot_step_minutes"`
}
