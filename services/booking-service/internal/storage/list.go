package storage

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

var dialect = goqu.Dialect("postgres")

// appointmentListQuery renders the filter as a prepared statement with $n placeholders.
func appointmentListQuery(f model.AppointmentFilter) (string, []any, error) {
	where := []exp.Expression{goqu.C("business_id").Eq(f.BusinessID)}
	if f.StaffID != "" {
		where = append(where, goqu.L("staff_id::text").Eq(f.StaffID))
	}
	if f.ClientID != "" {
		where = append(where, goqu.L("client_id::text").Eq(f.ClientID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, goqu.C("status").In(statuses))
	}
	if !f.From.IsZero() {
		where = append(where, goqu.C("start_time").Gte(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, goqu.C("start_time").Lt(f.To))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return dialect.From("appointments").
		Prepared(true).
		Select(goqu.L(appointmentColumns)).
		Where(where...).
		Order(goqu.C("start_time").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
}
