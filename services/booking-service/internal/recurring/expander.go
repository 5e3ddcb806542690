package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type Creator interface {
	Create(ctx context.Context, req lifecycle.CreateRequest) (lifecycle.Booking, error)
}

type Stamper interface {
	StampRecurring(ctx context.Context, businessID string, ids []string, groupID, rule string) error
}

type Skipped struct {
	Date   string      `json:"date"`
	Kind   apperr.Kind `json:"kind"`
	Reason string      `json:"reason"`
}

type Result struct {
	GroupID      string              `json:"group_id,omitempty"`
	Rule         Rule                `json:"rule"`
	Requested    int                 `json:"requested"`
	Created      int                 `json:"created"`
	Appointments []model.Appointment `json:"-"`
	Skipped      []Skipped           `json:"skipped"`
}

// outcome is the per-instance result folded into Result.
type outcome struct {
	date time.Time
	appt model.Appointment
	err  error
}

func (r *Result) fold(o outcome) {
	if o.err != nil {
		r.Skipped = append(r.Skipped, Skipped{
			Date:   o.date.Format(time.DateOnly),
			Kind:   apperr.KindOf(o.err),
			Reason: apperr.Message(o.err),
		})
		return
	}
	r.Created++
	r.Appointments = append(r.Appointments, o.appt)
}

type Expander struct {
	creator Creator
	stamper Stamper
	logger  *slog.Logger
	newID   func() string
}

func NewExpander(creator Creator, stamper Stamper, logger *slog.Logger) *Expander {
	return &Expander{
		creator: creator,
		stamper: stamper,
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}
}

// CreateRecurring books count instances of template, each as its own Create. A failed
// instance is reported as skipped and never undoes the ones already booked.
func (e *Expander) CreateRecurring(ctx context.Context, template lifecycle.CreateRequest, rule Rule, count int) (Result, error) {
	biz, err := tenant.Require(ctx)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindNoTenantContext, err, "tenant context is required")
	}
	if _, err := ParseRule(string(rule)); err != nil {
		return Result{}, err
	}
	if count < 1 || count > MaxCount {
		return Result{}, apperr.New(apperr.KindInvalidRequest, "count must be between 1 and %d", MaxCount)
	}

	res := Result{Rule: rule, Requested: count, Skipped: []Skipped{}}
	for i, date := range Dates(template.Date, rule, count) {
		req := template
		req.Date = date
		if template.IdempotencyKey != "" {
			req.IdempotencyKey = fmt.Sprintf("%s:%d", template.IdempotencyKey, i)
		}
		b, err := e.creator.Create(ctx, req)
		if err != nil {
			e.logger.Info("recurring instance skipped", "business_id", biz, "date", date.Format(time.DateOnly), "err", err)
		}
		res.fold(outcome{date: date, appt: b.Appointment, err: err})
	}

	if res.Created == 0 {
		return res, nil
	}
	// A replayed series keeps the group its instances were first stamped with.
	var ids []string
	for _, a := range res.Appointments {
		if a.RecurringGroup == "" {
			ids = append(ids, a.ID)
		} else if res.GroupID == "" {
			res.GroupID = a.RecurringGroup
		}
	}
	if res.GroupID == "" {
		res.GroupID = e.newID()
	}
	for i := range res.Appointments {
		res.Appointments[i].RecurringGroup = res.GroupID
		res.Appointments[i].RecurringRule = string(rule)
	}
	if len(ids) > 0 {
		if err := e.stamper.StampRecurring(ctx, biz, ids, res.GroupID, string(rule)); err != nil {
			return res, fmt.Errorf("stamp recurring group: %w", err)
		}
	}
	e.logger.Info("recurring series booked", "business_id", biz, "group_id", res.GroupID, "rule", rule,
		"requested", res.Requested, "created", res.Created)
	return res, nil
}
