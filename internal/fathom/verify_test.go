package fathom

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_dGVzdC1zaWduaW5nLWtleQ==" // "test-signing-key"

func signedHeaders(t *testing.T, secret, webhookID string, timestamp int64, body []byte) http.Header {
	t.Helper()
	ts := fmt.Sprintf("%d", timestamp)
	sig, ok := SignPayload(secret, webhookID, ts, body)
	require.True(t, ok)

	h := http.Header{}
	h.Set(HeaderWebhookID, webhookID)
	h.Set(HeaderWebhookTimestamp, ts)
	h.Set(HeaderWebhookSignature, "v1,"+sig)
	return h
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"action_items":[]}`)
	h := signedHeaders(t, testSecret, "msg_1", time.Now().Unix(), body)

	assert.True(t, VerifySignature(testSecret, h, body))
}

func TestVerifySignature_BareSignatureWithoutVersion(t *testing.T) {
	body := []byte(`{"action_items":[]}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())
	sig, ok := SignPayload(testSecret, "msg_1", ts, body)
	require.True(t, ok)

	h := http.Header{}
	h.Set(HeaderWebhookID, "msg_1")
	h.Set(HeaderWebhookTimestamp, ts)
	h.Set(HeaderWebhookSignature, sig)

	assert.True(t, VerifySignature(testSecret, h, body))
}

func TestVerifySignature_AnyCandidateMatches(t *testing.T) {
	body := []byte(`{"action_items":[]}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())
	sig, ok := SignPayload(testSecret, "msg_1", ts, body)
	require.True(t, ok)

	h := http.Header{}
	h.Set(HeaderWebhookID, "msg_1")
	h.Set(HeaderWebhookTimestamp, ts)
	h.Set(HeaderWebhookSignature, "v1,garbage v2,alsogarbage v1,"+sig)

	assert.True(t, VerifySignature(testSecret, h, body))
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	body := []byte(`{"action_items":[]}`)

	// Correctly signed, but outside the freshness window in both directions.
	for _, offset := range []int64{-301, 301, -86400} {
		h := signedHeaders(t, testSecret, "msg_1", time.Now().Unix()+offset, body)
		assert.False(t, VerifySignature(testSecret, h, body), "offset %d", offset)
	}
}

func TestVerifySignature_FreshnessBoundary(t *testing.T) {
	body := []byte(`{"action_items":[]}`)
	h := signedHeaders(t, testSecret, "msg_1", time.Now().Unix()-290, body)

	assert.True(t, VerifySignature(testSecret, h, body))
}

func TestVerifySignature_FlippedBodyByte(t *testing.T) {
	body := []byte(`{"action_items":[{"description":"ship"}]}`)
	h := signedHeaders(t, testSecret, "msg_1", time.Now().Unix(), body)

	require.True(t, VerifySignature(testSecret, h, body))

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)/2] ^= 0x01
	assert.False(t, VerifySignature(testSecret, h, tampered))
}

func TestVerifySignature_MissingHeaders(t *testing.T) {
	body := []byte(`{}`)
	full := signedHeaders(t, testSecret, "msg_1", time.Now().Unix(), body)

	for _, drop := range []string{HeaderWebhookID, HeaderWebhookTimestamp, HeaderWebhookSignature} {
		h := http.Header{}
		for k, vs := range full {
			h[k] = vs
		}
		h.Del(drop)
		assert.False(t, VerifySignature(testSecret, h, body), "missing %s", drop)
	}
}

func TestVerifySignature_MalformedInput(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now().Unix()

	tests := []struct {
		name   string
		secret string
		mutate func(h http.Header)
	}{
		{
			name:   "secret without separator",
			secret: base64.StdEncoding.EncodeToString([]byte("test-signing-key")),
			mutate: func(http.Header) {},
		},
		{
			name:   "secret with undecodable payload",
			secret: "whsec_!!!not-base64!!!",
			mutate: func(http.Header) {},
		},
		{
			name:   "empty secret",
			secret: "",
			mutate: func(http.Header) {},
		},
		{
			name:   "non-numeric timestamp",
			secret: testSecret,
			mutate: func(h http.Header) { h.Set(HeaderWebhookTimestamp, "yesterday") },
		},
		{
			name:   "garbage signature list",
			secret: testSecret,
			mutate: func(h http.Header) { h.Set(HeaderWebhookSignature, ",,, v1, ") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := signedHeaders(t, testSecret, "msg_1", now, body)
			tt.mutate(h)
			assert.False(t, VerifySignature(tt.secret, h, body))
		})
	}
}

func TestSignPayload_RejectsMalformedSecret(t *testing.T) {
	_, ok := SignPayload("no-separator", "msg_1", "0", nil)
	assert.False(t, ok)
}
