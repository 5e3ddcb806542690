// Package delivery renders requested notifications and hands them to the
// channel sender, recording every attempt.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/render"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/storage"
)

// Request mirrors the payload booking-service writes for
// booking.notification.requested.v1.
type Request struct {
	Kind          string            `json:"kind"`
	BusinessID    string            `json:"business_id"`
	AppointmentID string            `json:"appointment_id,omitempty"`
	ClientID      string            `json:"client_id,omitempty"`
	Channel       string            `json:"channel"`
	Recipient     string            `json:"recipient"`
	Variables     map[string]string `json:"variables,omitempty"`
}

type EmailSender interface {
	Send(to, subject, body string) error
	ProviderID() string
}

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
	ProviderID() string
}

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Service struct {
	email  EmailSender
	sms    SMSSender
	repo   Recorder
	logger *slog.Logger
}

func NewService(email EmailSender, sms SMSSender, repo Recorder, logger *slog.Logger) *Service {
	return &Service{email: email, sms: sms, repo: repo, logger: logger}
}

// Handle processes one Kafka message. Malformed or unrenderable requests are
// recorded as skipped and never retried. A failed send is recorded and
// returned so the consumer retries it.
func (s *Service) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)

	var req Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		s.logger.Error("invalid notification payload", "event_id", meta.EventID, "err", err)
		return nil
	}
	if req.BusinessID == "" {
		req.BusinessID = meta.BusinessID
	}

	rec := storage.Notification{
		EventID:       meta.EventID,
		BusinessID:    req.BusinessID,
		AppointmentID: req.AppointmentID,
		ClientID:      req.ClientID,
		Kind:          req.Kind,
		Channel:       channelFor(req),
		Recipient:     strings.TrimSpace(req.Recipient),
		Payload:       req.Variables,
	}

	if err := validate(rec); err != nil {
		rec.Status, rec.Error = storage.StatusSkipped, err.Error()
		s.logger.Warn("notification skipped", "event_id", meta.EventID, "err", err)
		return s.repo.Insert(ctx, rec)
	}

	m, err := render.Render(req.Kind, req.Variables)
	if err != nil {
		rec.Status, rec.Error = storage.StatusSkipped, err.Error()
		s.logger.Warn("notification skipped", "event_id", meta.EventID, "err", err)
		return s.repo.Insert(ctx, rec)
	}
	rec.Subject = m.Subject

	var sendErr error
	switch rec.Channel {
	case "email":
		rec.Provider = s.email.ProviderID()
		sendErr = s.email.Send(rec.Recipient, m.Subject, m.Body)
	case "sms":
		rec.Provider = s.sms.ProviderID()
		sendErr = s.sms.Send(ctx, rec.Recipient, m.SMS())
	}

	if sendErr != nil {
		rec.Status, rec.Error = storage.StatusFailed, sendErr.Error()
		if err := s.repo.Insert(ctx, rec); err != nil {
			s.logger.Error("record failed notification", "event_id", meta.EventID, "err", err)
		}
		return fmt.Errorf("send %s: %w", rec.Channel, sendErr)
	}

	rec.Status = storage.StatusSent
	if err := s.repo.Insert(ctx, rec); err != nil {
		// Already delivered; a retry would send twice.
		s.logger.Error("record sent notification", "event_id", meta.EventID, "err", err)
		return nil
	}
	s.logger.Info("notification sent", "event_id", meta.EventID, "kind", rec.Kind,
		"channel", rec.Channel, "business_id", rec.BusinessID, "appointment_id", rec.AppointmentID)
	return nil
}

func channelFor(req Request) string {
	if c := strings.ToLower(strings.TrimSpace(req.Channel)); c != "" {
		return c
	}
	if strings.Contains(req.Recipient, "@") {
		return "email"
	}
	return "sms"
}

func validate(n storage.Notification) error {
	var errs []error
	if n.BusinessID == "" {
		errs = append(errs, errors.New("business_id is required"))
	}
	if n.Recipient == "" {
		errs = append(errs, errors.New("recipient is required"))
	}
	if n.Channel != "email" && n.Channel != "sms" {
		errs = append(errs, fmt.Errorf("unsupported channel %q", n.Channel))
	}
	return errors.Join(errs...)
}
