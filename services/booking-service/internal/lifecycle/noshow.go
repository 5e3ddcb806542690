package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// escalateNoShow charges one no-show to the appointment's client and blacklists the client
// once the count reaches model.BlacklistThreshold. It returns the client when this call
// flipped the blacklist flag. Walk-ins that match no client are not tracked.
func escalateNoShow(ctx context.Context, tx Tx, appt model.Appointment, now time.Time) (*model.Client, error) {
	var (
		client model.Client
		ok     bool
		err    error
	)
	switch {
	case appt.ClientID != "":
		client, ok, err = tx.ClientForUpdate(ctx, appt.BusinessID, appt.ClientID)
	case appt.CustomerEmail != "":
		client, ok, err = tx.ClientByEmailForUpdate(ctx, appt.BusinessID, appt.CustomerEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	if !ok {
		return nil, nil
	}

	client.NoShowCount++
	flipped := false
	if !client.Blacklisted && client.NoShowCount >= model.BlacklistThreshold {
		at := now.UTC()
		client.Blacklisted = true
		client.BlacklistedAt = &at
		client.BlacklistReason = fmt.Sprintf("automatically blacklisted after %d no-shows", client.NoShowCount)
		flipped = true
	}
	if err := tx.SaveClientStanding(ctx, client); err != nil {
		return nil, fmt.Errorf("save client standing: %w", err)
	}
	if flipped {
		return &client, nil
	}
	return nil, nil
}
