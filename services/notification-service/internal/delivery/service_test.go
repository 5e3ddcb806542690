package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/storage"
)

type fakeEmail struct {
	to, subject, body string
	err               error
}

func (f *fakeEmail) Send(to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

func (f *fakeEmail) ProviderID() string { return "fake-smtp" }

type fakeSMS struct {
	to, body string
}

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	f.to, f.body = to, body
	return nil
}

func (f *fakeSMS) ProviderID() string { return "fake-sms" }

type fakeRepo struct {
	rows []storage.Notification
}

func (f *fakeRepo) Insert(_ context.Context, n storage.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

func newService() (*Service, *fakeEmail, *fakeSMS, *fakeRepo) {
	e, s, r := &fakeEmail{}, &fakeSMS{}, &fakeRepo{}
	return NewService(e, s, r, slog.New(slog.NewTextHandler(io.Discard, nil))), e, s, r
}

func message(t *testing.T, req Request) kafka.Message {
	t.Helper()
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{
		Topic:   "booking.notification.requested.v1",
		Value:   b,
		Headers: []kafka.Header{{Key: "event_id", Value: []byte("evt-1")}},
	}
}

func TestHandleSendsEmail(t *testing.T) {
	svc, e, _, repo := newService()
	err := svc.Handle(context.Background(), message(t, Request{
		Kind:          "confirmation",
		BusinessID:    "b1",
		AppointmentID: "a1",
		Channel:       "email",
		Recipient:     "ana@example.test",
		Variables:     map[string]string{"business_name": "Studio", "customer_name": "Ana"},
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if e.to != "ana@example.test" || e.subject != "Appointment booked with Studio" {
		t.Fatalf("unexpected email to=%q subject=%q", e.to, e.subject)
	}
	if len(repo.rows) != 1 || repo.rows[0].Status != storage.StatusSent || repo.rows[0].Provider != "fake-smtp" {
		t.Fatalf("unexpected records %+v", repo.rows)
	}
	if repo.rows[0].EventID != "evt-1" {
		t.Fatalf("expected event id recorded, got %q", repo.rows[0].EventID)
	}
}

func TestHandleInfersSMSChannel(t *testing.T) {
	svc, _, s, repo := newService()
	err := svc.Handle(context.Background(), message(t, Request{
		Kind:       "reminder",
		BusinessID: "b1",
		Recipient:  "+15550100",
		Variables:  map[string]string{"business_name": "Studio", "window": "1h"},
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if s.to != "+15550100" || !strings.HasPrefix(s.body, "Reminder: Studio in one hour.") {
		t.Fatalf("unexpected sms to=%q body=%q", s.to, s.body)
	}
	if repo.rows[0].Channel != "sms" {
		t.Fatalf("expected sms channel, got %q", repo.rows[0].Channel)
	}
}

func TestHandleSkipsInvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"no recipient", Request{Kind: "confirmation", BusinessID: "b1", Channel: "email"}},
		{"bad channel", Request{Kind: "confirmation", BusinessID: "b1", Channel: "fax", Recipient: "x"}},
		{"unknown kind", Request{Kind: "invoice", BusinessID: "b1", Recipient: "a@b.test"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, e, _, repo := newService()
			if err := svc.Handle(context.Background(), message(t, tc.req)); err != nil {
				t.Fatalf("skips must not be retried, got %v", err)
			}
			if e.to != "" {
				t.Fatalf("expected nothing sent, got %q", e.to)
			}
			if len(repo.rows) != 1 || repo.rows[0].Status != storage.StatusSkipped || repo.rows[0].Error == "" {
				t.Fatalf("expected one skipped record, got %+v", repo.rows)
			}
		})
	}
}

func TestHandleRecordsFailedSend(t *testing.T) {
	svc, e, _, repo := newService()
	e.err = errors.New("connection refused")
	err := svc.Handle(context.Background(), message(t, Request{
		Kind: "cancellation", BusinessID: "b1", Channel: "email", Recipient: "a@b.test",
	}))
	if err == nil {
		t.Fatal("expected send error to be returned for retry")
	}
	if len(repo.rows) != 1 || repo.rows[0].Status != storage.StatusFailed || repo.rows[0].Error != "connection refused" {
		t.Fatalf("unexpected records %+v", repo.rows)
	}
}

func TestHandleIgnoresMalformedJSON(t *testing.T) {
	svc, _, _, repo := newService()
	if err := svc.Handle(context.Background(), kafka.Message{Value: []byte("{")}); err != nil {
		t.Fatalf("expected malformed payload dropped, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("expected no records, got %+v", repo.rows)
	}
}
