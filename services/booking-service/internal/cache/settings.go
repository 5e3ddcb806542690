package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type SettingsStore interface {
	Settings(ctx context.Context, businessID string) (model.Settings, error)
	SaveSettings(ctx context.Context, v model.Settings) error
}

// Settings caches tenant settings. Backend failures are logged and fall through to the
// store, so a cache outage only costs latency.
type Settings struct {
	store   SettingsStore
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
}

func NewSettings(store SettingsStore, backend Backend, ttl time.Duration, logger *slog.Logger) *Settings {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Settings{store: store, backend: backend, ttl: ttl, logger: logger}
}

func settingsKey(businessID string) string {
	return "slotbook:settings:" + businessID
}

func (c *Settings) Settings(ctx context.Context, businessID string) (model.Settings, error) {
	key := settingsKey(businessID)
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("settings cache read failed", "business_id", businessID, "err", err)
	}
	if ok {
		var v model.Settings
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := c.store.Settings(ctx, businessID)
	if err != nil {
		return model.Settings{}, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("settings cache write failed", "business_id", businessID, "err", err)
		}
	}
	return v, nil
}

// SaveSettings writes through to the store and drops the cached copy.
func (c *Settings) SaveSettings(ctx context.Context, v model.Settings) error {
	if err := c.store.SaveSettings(ctx, v); err != nil {
		return err
	}
	if err := c.backend.Del(ctx, settingsKey(v.BusinessID)); err != nil {
		c.logger.Warn("settings cache invalidate failed", "business_id", v.BusinessID, "err", err)
	}
	return nil
}
