package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/model"
)

// RESTConfig configures the Upstash-compatible REST backend.
type RESTConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// RESTStore talks to a serverless key-value store over its REST protocol:
// GET {url}/get/{key} and POST {url}/set/{key}[?expiration_ttl=s] with a
// bearer token. Get answers {"result": <value|null>}.
type RESTStore struct {
	base   string
	token  string
	client *http.Client
	log    *logrus.Entry
}

func NewRESTStore(cfg RESTConfig, log *logrus.Entry) (*RESTStore, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, errors.New("kv url and token must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTStore{
		base:   strings.TrimRight(cfg.URL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}, nil
}

func (s *RESTStore) Get(ctx context.Context, key string) (string, bool, error) {
	u := s.base + "/get/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, &model.StorageError{Key: key, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", false, &model.StorageError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.log.Debugf("kv: %s not found", key)
		return "", false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, &model.StorageError{Key: key, Err: fmt.Errorf("get status %d", resp.StatusCode)}
	}

	var body struct {
		Result *string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, &model.StorageError{Key: key, Err: errors.Wrap(err, "decode get response")}
	}
	if body.Result == nil {
		return "", false, nil
	}
	return *body.Result, true, nil
}

// Ping issues a real read so an unreachable or misconfigured backend
// surfaces; whether the probed key exists does not matter.
func (s *RESTStore) Ping(ctx context.Context) error {
	_, _, err := s.Get(ctx, KeyRegistered)
	return err
}

func (s *RESTStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	u := s.base + "/set/" + url.PathEscape(key)
	if ttl > 0 {
		q := url.Values{}
		q.Set("expiration_ttl", strconv.Itoa(int(ttl.Seconds())))
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(value))
	if err != nil {
		return &model.StorageError{Key: key, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return &model.StorageError{Key: key, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.StorageError{Key: key, Err: fmt.Errorf("set status %d", resp.StatusCode)}
	}
	s.log.Debugf("kv: %s set", key)
	return nil
}
