package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

func appointmentPayload(appt model.Appointment, previous model.Status, reason string, now time.Time) outbox.AppointmentPayload {
	return outbox.AppointmentPayload{
		AppointmentID:  appt.ID,
		BusinessID:     appt.BusinessID,
		StaffID:        appt.StaffID,
		ClientID:       appt.ClientID,
		CustomerEmail:  appt.CustomerEmail,
		StartTime:      appt.StartTime.UTC(),
		EndTime:        appt.EndTime.UTC(),
		Status:         string(appt.Status),
		PreviousStatus: string(previous),
		Reason:         reason,
		RecurringGroup: appt.RecurringGroup,
		OccurredAt:     now.UTC(),
	}
}

// AppointmentNotification renders the template variables for an appointment notice in the
// tenant's timezone.
func AppointmentNotification(kind notify.Kind, appt model.Appointment, settings model.Settings) notify.Notification {
	loc := settings.Location()
	names := make([]string, 0, len(appt.Items))
	for _, it := range appt.Items {
		names = append(names, it.Name)
	}
	vars := map[string]string{
		"customer_name":  appt.CustomerName,
		"business_name":  settings.BusinessName,
		"date":           appt.StartTime.In(loc).Format("Mon, 02 Jan 2006"),
		"start_time":     appt.StartTime.In(loc).Format("15:04"),
		"end_time":       appt.EndTime.In(loc).Format("15:04"),
		"services":       strings.Join(names, ", "),
		"total_price":    formatCents(appt.PriceCents),
		"appointment_id": appt.ID,
	}
	if appt.CancelReason != "" {
		vars["reason"] = appt.CancelReason
	}
	return notify.Notification{
		Kind:          kind,
		BusinessID:    appt.BusinessID,
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		Recipient:     appt.Recipient(),
		Variables:     vars,
	}
}

func blacklistNotification(c model.Client, settings model.Settings) notify.Notification {
	recipient := c.Email
	if recipient == "" {
		recipient = c.Phone
	}
	return notify.Notification{
		Kind:       notify.KindBlacklist,
		BusinessID: c.BusinessID,
		ClientID:   c.ID,
		Recipient:  recipient,
		Variables: map[string]string{
			"customer_name": c.Name,
			"business_name": settings.BusinessName,
			"no_show_count": strconv.Itoa(c.NoShowCount),
			"reason":        c.BlacklistReason,
		},
	}
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	cents := strconv.FormatInt(c%100, 10)
	if len(cents) == 1 {
		cents = "0" + cents
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + cents
}
