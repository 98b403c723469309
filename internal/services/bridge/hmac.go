package bridge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body,
// computed with the upstream-issued shared secret.
const signatureHeader = "X-Authorization-Content-Sha256"

// checkSignature validates the delivery signature against the stored HMAC
// secret. Returns (0, "") when the delivery may proceed; otherwise the HTTP
// status and message to reject with. An enabled check with no stored secret
// is a server fault, not a client one.
func (a *App) checkSignature(ctx context.Context, rawBody []byte, signature string) (int, string) {
	if signature == "" {
		return http.StatusBadRequest, "Missing signature header"
	}

	secret, found, err := a.kv.Get(ctx, kvstore.KeyHmacSecret)
	if err != nil || !found || secret == "" {
		a.log.Errorf("webhook: hmac secret unavailable (found=%v err=%v)", found, err)
		return http.StatusInternalServerError, "Internal server error"
	}

	if !validSignature(rawBody, secret, signature) {
		return http.StatusBadRequest, "Invalid HMAC signature"
	}
	return 0, ""
}

func validSignature(rawBody []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(signature))
}
