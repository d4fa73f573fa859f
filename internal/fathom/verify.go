package fathom

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Signature headers sent by Fathom, per
// https://developers.fathom.ai/webhooks#verifying-webhooks
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
	HeaderWebhookSignature = "webhook-signature"
)

// MaxTimestampSkew is the accepted clock skew between the webhook
// timestamp and this host, in seconds.
const MaxTimestampSkew = 300

// VerifySignature reports whether a webhook delivery was signed with the
// given shared secret and is fresh. It is a pure predicate: malformed
// input of any kind yields false, never an error, so the caller has a
// single generic rejection path.
//
// rawBody must be the body exactly as received. Verification happens
// before JSON parsing; any re-serialization could change byte content
// and invalidate the signature.
func VerifySignature(secret string, headers http.Header, rawBody []byte) bool {
	webhookID := headers.Get(HeaderWebhookID)
	webhookTimestamp := headers.Get(HeaderWebhookTimestamp)
	webhookSignature := headers.Get(HeaderWebhookSignature)
	if webhookID == "" || webhookTimestamp == "" || webhookSignature == "" {
		return false
	}

	timestamp, err := strconv.ParseInt(webhookTimestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := time.Now().Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxTimestampSkew {
		return false
	}

	key, ok := decodeSecret(secret)
	if !ok {
		return false
	}

	expected := computeSignature(key, webhookID, webhookTimestamp, rawBody)

	// The header may carry several space-separated candidates, each either
	// "version,signature" or a bare signature. Accept if any matches.
	for _, candidate := range strings.Split(webhookSignature, " ") {
		parts := strings.Split(candidate, ",")
		sig := parts[0]
		if len(parts) > 1 {
			sig = parts[1]
		}
		// ConstantTimeCompare treats a length mismatch as non-match,
		// which is exactly what we want here.
		if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1 {
			return true
		}
	}
	return false
}

// decodeSecret extracts the raw key bytes from a "<prefix>_<base64>"
// shared secret.
func decodeSecret(secret string) ([]byte, bool) {
	_, encoded, found := strings.Cut(secret, "_")
	if !found || encoded == "" {
		return nil, false
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return key, true
}

func computeSignature(key []byte, webhookID, webhookTimestamp string, rawBody []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(webhookID))
	mac.Write([]byte("."))
	mac.Write([]byte(webhookTimestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignPayload computes the signature Fathom would send for the given
// delivery. Used for testing and validation.
func SignPayload(secret, webhookID, webhookTimestamp string, rawBody []byte) (string, bool) {
	key, ok := decodeSecret(secret)
	if !ok {
		return "", false
	}
	return computeSignature(key, webhookID, webhookTimestamp, rawBody), true
}
