package kvstore

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store is the persistence capability every component runs on. Values are
// strings (or JSON-serialized strings); no structured type crosses this
// boundary. ttl <= 0 means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Pinger is implemented by stores that can verify backend reachability.
// Health probes must use this instead of Get: cached reads answer from
// memory and would hide an outage.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	defaultMu    sync.Mutex
	defaultStore Store
)

// Default returns the process-wide store, building a REST client from
// KV_REST_API_URL / KV_REST_API_TOKEN (or their INITIAL_ fallbacks) on
// first use. Fails fast when the configuration is absent. The client is a
// stateless HTTP wrapper, so there is no teardown.
func Default(log *logrus.Entry) (Store, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore != nil {
		return defaultStore, nil
	}

	url := os.Getenv("KV_REST_API_URL")
	if url == "" {
		url = os.Getenv("INITIAL_KV_REST_API_URL")
	}
	token := os.Getenv("KV_REST_API_TOKEN")
	if token == "" {
		token = os.Getenv("INITIAL_KV_REST_API_TOKEN")
	}
	if url == "" || token == "" {
		return nil, errors.New("KV_REST_API_URL and KV_REST_API_TOKEN must be set")
	}

	s, err := NewRESTStore(RESTConfig{URL: url, Token: token}, log)
	if err != nil {
		return nil, err
	}
	defaultStore = s
	return defaultStore, nil
}
