package monitor

import "github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"

type Failure struct {
	BusinessID    string
	AppointmentID string
	Kind          apperr.Kind
	Err           error
}

// Report folds per-item results of one batch run.
type Report struct {
	Processed int
	Succeeded int
	Skipped   int
	Failures  []Failure
}

func (r *Report) ok() {
	r.Processed++
	r.Succeeded++
}

func (r *Report) skip() {
	r.Processed++
	r.Skipped++
}

func (r *Report) fail(businessID, appointmentID string, err error) {
	r.Processed++
	r.Failures = append(r.Failures, Failure{
		BusinessID:    businessID,
		AppointmentID: appointmentID,
		Kind:          apperr.KindOf(err),
		Err:           err,
	})
}
