package lifecycle

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// checkLeadTime enforces the cancellation policy: clients may cancel or reschedule only while
// at least CancellationPolicyHours remain before the appointment starts.
func checkLeadTime(appt model.Appointment, settings model.Settings, now time.Time) error {
	if settings.CancellationPolicyHours <= 0 {
		return nil
	}
	required := time.Duration(settings.CancellationPolicyHours) * time.Hour
	if lead := appt.StartTime.Sub(now); lead < required {
		return apperr.New(apperr.KindPolicyViolation,
			"changes require at least %d hours notice before %s",
			settings.CancellationPolicyHours, appt.StartTime.In(settings.Location()).Format("2006-01-02 15:04"))
	}
	return nil
}

func checkTransition(appt model.Appointment, next model.Status) error {
	if !appt.Status.CanTransitionTo(next) {
		return apperr.New(apperr.KindInvalidTransition, "cannot move appointment from %s to %s", appt.Status, next)
	}
	return nil
}
