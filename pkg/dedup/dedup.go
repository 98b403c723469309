// Package dedup suppresses webhook redeliveries. Gardena retries a delivery
// when the receiver answers slowly, and the retried request carries the exact
// same body, so a fingerprint of the raw payload identifies a delivery.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Fingerprint derives the delivery identity from the raw request body. The
// signature scheme already canonicalizes the byte stream, so hashing the
// bytes as received is stable across retries.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Deduper remembers delivery fingerprints for a TTL. Entries are capped;
// expired ones are swept when the cap is exceeded.
type Deduper struct {
	mu         sync.Mutex
	ttl        time.Duration
	max        int
	deliveries map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, deliveries: make(map[string]time.Time, max)}
}

// FirstDelivery reports whether this fingerprint has not been seen within
// the TTL, recording it either way. An empty fingerprint is never
// suppressed.
func (d *Deduper) FirstDelivery(fingerprint string) bool {
	if fingerprint == "" {
		return true
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.deliveries[fingerprint]; ok && now.Before(exp) {
		return false
	}
	d.deliveries[fingerprint] = now.Add(d.ttl)
	if len(d.deliveries) > d.max {
		d.sweep(now)
	}
	return true
}

func (d *Deduper) sweep(now time.Time) {
	for k, exp := range d.deliveries {
		if now.After(exp) {
			delete(d.deliveries, k)
		}
		if len(d.deliveries) <= d.max {
			return
		}
	}
}
