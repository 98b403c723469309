package simulator

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const signatureHeader = "X-Authorization-Content-Sha256"

// Simulator POSTs signed synthetic deliveries to a bridge at a fixed
// interval, the way the vendor cloud would.
type Simulator struct {
	target    string
	secret    []byte
	generator *EventGenerator
	client    *http.Client
	log       *logrus.Entry
}

func New(target, secret string, gen *EventGenerator, log *logrus.Entry) *Simulator {
	return &Simulator{
		target:    target,
		secret:    []byte(secret),
		generator: gen,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// Start delivers one batch per interval until ctx is cancelled. Delivery
// failures are logged and the loop keeps going.
func (s *Simulator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.deliver(ctx); err != nil {
				s.log.Warnf("delivery failed: %v", err)
			}
		}
	}
}

func (s *Simulator) deliver(ctx context.Context) error {
	body, err := s.generator.Next()
	if err != nil {
		return errors.Wrap(err, "generating batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(s.secret) > 0 {
		mac := hmac.New(sha256.New, s.secret)
		mac.Write(body)
		req.Header.Set(signatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	s.log.Infof("delivered batch: %s", res.Status)
	if res.StatusCode >= 400 {
		return errors.Errorf("bridge answered %s", res.Status)
	}
	return nil
}
