package registration

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// validityMargin: a registration is only considered still valid while more
// than 24h remain, so rotation never races upstream invalidation.
const validityMargin = 24 * time.Hour

// Manager handles idempotent webhook registration and HMAC secret rotation.
type Manager struct {
	store kvstore.Store
	api   *gardena.Client
	log   *logrus.Entry
	now   func() time.Time
}

func NewManager(store kvstore.Store, api *gardena.Client, log *logrus.Entry) *Manager {
	return &Manager{store: store, api: api, log: log, now: time.Now}
}

// RegisterIfNeeded re-registers the callback URL unless the current
// registration still has more than validityMargin left. Calling it twice
// inside that window performs exactly one upstream call.
func (m *Manager) RegisterIfNeeded(ctx context.Context, locationID, authToken, webhookURL string) error {
	raw, found, err := m.store.Get(ctx, kvstore.KeyHmacValidity)
	if err != nil {
		return err
	}
	if found && raw != "" {
		if validUntil, perr := time.Parse(time.RFC3339, raw); perr == nil {
			if validUntil.Sub(m.now()) > validityMargin {
				m.log.Info("registration: webhook still valid, skipping")
				return nil
			}
		}
	}

	reg, err := m.api.RegisterWebhook(ctx, locationID, authToken, webhookURL)
	if err != nil {
		return err
	}

	if reg.HmacSecret != "" {
		if err := m.store.Set(ctx, kvstore.KeyHmacSecret, reg.HmacSecret, 0); err != nil {
			return err
		}
		m.log.Info("registration: hmac secret rotated")
	} else {
		m.log.Warn("registration: response carried no hmacSecret, keeping current one")
	}

	validUntil := time.Unix(reg.ValidUntil, 0).UTC().Format(time.RFC3339)
	if err := m.store.Set(ctx, kvstore.KeyHmacValidity, validUntil, 0); err != nil {
		return err
	}
	m.log.Infof("registration: webhook registered, valid until %s", validUntil)
	return nil
}
