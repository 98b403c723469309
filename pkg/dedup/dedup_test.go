package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstDelivery(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.FirstDelivery("a"))
	assert.False(t, d.FirstDelivery("a"), "same fingerprint within ttl is a redelivery")
	assert.True(t, d.FirstDelivery("b"))
}

func TestFingerprintStableAcrossRetries(t *testing.T) {
	body := []byte(`{"events":[{"id":"valve-1"}]}`)

	assert.Equal(t, Fingerprint(body), Fingerprint([]byte(`{"events":[{"id":"valve-1"}]}`)))
	assert.NotEqual(t, Fingerprint(body), Fingerprint([]byte(`{"events":[{"id":"valve-2"}]}`)))

	d := New(time.Minute, 100)
	assert.True(t, d.FirstDelivery(Fingerprint(body)))
	assert.False(t, d.FirstDelivery(Fingerprint(body)))
}

func TestEmptyFingerprintNeverSuppressed(t *testing.T) {
	d := New(time.Minute, 100)
	assert.True(t, d.FirstDelivery(""))
	assert.True(t, d.FirstDelivery(""))
}

func TestExpiredFingerprintDeliveredAgain(t *testing.T) {
	d := New(10*time.Millisecond, 100)

	assert.True(t, d.FirstDelivery("a"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, d.FirstDelivery("a"))
}

func TestSweepKeepsMapBounded(t *testing.T) {
	d := New(time.Nanosecond, 10)

	for i := 0; i < 100; i++ {
		d.FirstDelivery(string(rune('a' + i)))
		time.Sleep(time.Microsecond)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.LessOrEqual(t, len(d.deliveries), 11)
}
