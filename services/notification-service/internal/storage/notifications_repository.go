package storage

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/slotbook/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type Notification struct {
	EventID       string
	BusinessID    string
	AppointmentID string
	ClientID      string
	Kind          string
	Channel       string
	Recipient     string
	Subject       string
	Payload       map[string]string
	Provider      string
	Status        string
	Error         string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, business_id, appointment_id, client_id, kind, channel,
			recipient, subject, payload, provider, status, error)
		VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12)
	`, n.EventID, n.BusinessID, n.AppointmentID, n.ClientID, n.Kind, n.Channel,
		n.Recipient, n.Subject, payload, n.Provider, n.Status, n.Error)
	return err
}
