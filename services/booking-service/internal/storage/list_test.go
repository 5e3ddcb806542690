package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func TestAppointmentListQueryTenantOnly(t *testing.T) {
	sql, args, err := appointmentListQuery(model.AppointmentFilter{BusinessID: "biz-1"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(sql, `"business_id" = $1`) {
		t.Fatalf("expected tenant predicate, got %s", sql)
	}
	if !strings.Contains(sql, `ORDER BY "start_time" ASC, "id" ASC`) {
		t.Fatalf("expected stable order, got %s", sql)
	}
	if !strings.Contains(sql, "LIMIT $2") {
		t.Fatalf("expected default limit placeholder, got %s", sql)
	}
	if len(args) != 2 || args[0] != "biz-1" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestAppointmentListQueryAllFilters(t *testing.T) {
	from := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	sql, args, err := appointmentListQuery(model.AppointmentFilter{
		BusinessID: "biz-1",
		StaffID:    "staff-1",
		ClientID:   "client-1",
		Statuses:   []model.Status{model.StatusPending, model.StatusConfirmed},
		From:       from,
		To:         from.AddDate(0, 0, 7),
		Limit:      10_000,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"staff_id::text", "client_id::text", `"status" IN`, `"start_time" >=`, `"start_time" <`} {
		if !strings.Contains(sql, want) {
			t.Fatalf("missing %q in %s", want, sql)
		}
	}
	// tenant, staff, client, two statuses, from, to, limit
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d: %v", len(args), args)
	}
	if got := fmt.Sprint(args[len(args)-1]); got != fmt.Sprint(maxListLimit) {
		t.Fatalf("limit must be capped at %d, got %v", maxListLimit, got)
	}
}
