package relay_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KalebJG/fathom-to-slacklist/internal/fathom"
	"github.com/KalebJG/fathom-to-slacklist/internal/relay"
	"github.com/KalebJG/fathom-to-slacklist/internal/relay/mocks"
	"github.com/KalebJG/fathom-to-slacklist/internal/slack"
	"github.com/KalebJG/fathom-to-slacklist/internal/store"
)

const (
	testConnectionID = "3f2b8c1a-9d4e-4f6a-8b2c-1d3e5f7a9b0c"
	testSinkURL      = "https://hooks.slack.com/services/T000/B000/XXXX"
	testSecret       = "whsec_cGlwZWxpbmUtdGVzdC1rZXk=" // "pipeline-test-key"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConnection() *store.Connection {
	return &store.Connection{
		ID:              testConnectionID,
		SlackWebhookURL: testSinkURL,
		DeliveryMode:    store.ModeMessage,
		CreatedAt:       time.Now(),
	}
}

func signedHeaders(t *testing.T, body []byte) http.Header {
	t.Helper()
	ts := fmt.Sprintf("%d", time.Now().Unix())
	sig, ok := fathom.SignPayload(testSecret, "msg_1", ts, body)
	require.True(t, ok)

	h := http.Header{}
	h.Set(fathom.HeaderWebhookID, "msg_1")
	h.Set(fathom.HeaderWebhookTimestamp, ts)
	h.Set(fathom.HeaderWebhookSignature, "v1,"+sig)
	return h
}

func TestHandleWebhook_FiltersAndDelivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.AssigneeEmailFilter = "jane@example.com"

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil)

	var sent slack.Message
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), testSinkURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any) error {
			sent = payload.(slack.Message)
			return nil
		})

	p := relay.New(st, sender, nil, testLogger())

	body := []byte(`{
		"title": "Standup",
		"action_items": [
			{"description": "mine", "assignee": {"name": "Jane", "email": "Jane@Example.com"}},
			{"description": "theirs", "assignee": {"name": "Bob", "email": "bob@example.com"}}
		]
	}`)

	result, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, &relay.Result{ItemsIn: 2, ItemsKept: 1, Payloads: 1}, result)

	assert.Equal(t, "Action items from Standup:\n• mine", sent.Text)
	// header, context, divider, one item section
	assert.Len(t, sent.Blocks, 4)
}

func TestHandleWebhook_FilteredToEmptyStillDelivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.AssigneeEmailFilter = "jane@example.com"

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil)

	var sent slack.Message
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), testSinkURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any) error {
			sent = payload.(slack.Message)
			return nil
		})

	p := relay.New(st, sender, nil, testLogger())

	body := []byte(`{"title":"Standup","action_items":[{"description":"theirs","assignee":{"email":"bob@example.com"}}]}`)

	result, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, &relay.Result{ItemsIn: 1, ItemsKept: 0, Payloads: 1}, result)
	assert.Equal(t, "No action items assigned to you from: Standup", sent.Text)
}

func TestHandleWebhook_SignatureEnforcedWhenSecretSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.FathomWebhookSecret = testSecret

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil).Times(2)

	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), testSinkURL, gomock.Any()).Return(nil)

	p := relay.New(st, sender, nil, testLogger())
	body := []byte(`{"action_items":[]}`)

	// No headers at all: rejected before any parsing or sending.
	_, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, body)
	assert.ErrorIs(t, err, relay.ErrInvalidSignature)

	// Properly signed: accepted.
	result, err := p.HandleWebhook(context.Background(), testConnectionID, signedHeaders(t, body), body)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Payloads)
}

func TestHandleWebhook_PayloadTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(testConnection(), nil)

	p := relay.New(st, mocks.NewMockSender(ctrl), nil, testLogger())

	body := bytes.Repeat([]byte("x"), relay.MaxBodySize+1)
	_, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, body)
	assert.ErrorIs(t, err, relay.ErrPayloadTooLarge)
}

func TestHandleWebhook_InvalidJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(testConnection(), nil)

	p := relay.New(st, mocks.NewMockSender(ctrl), nil, testLogger())

	_, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, []byte("{not json"))
	assert.ErrorIs(t, err, relay.ErrInvalidPayload)
}

func TestHandleWebhook_MalformedIDSkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Get expectation: a malformed id must never reach the store.
	st := mocks.NewMockConnectionStore(ctrl)
	p := relay.New(st, mocks.NewMockSender(ctrl), nil, testLogger())

	for _, id := range []string{"", "nope", "3f2b8c1a-9d4e-4f6a-8b2c", testConnectionID + "0"} {
		_, err := p.HandleWebhook(context.Background(), id, http.Header{}, []byte("{}"))
		assert.ErrorIs(t, err, relay.ErrConnectionNotFound, "id %q", id)
	}
}

func TestHandleWebhook_UnknownConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(nil, store.ErrConnectionNotFound)

	p := relay.New(st, mocks.NewMockSender(ctrl), nil, testLogger())

	_, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, []byte("{}"))
	assert.ErrorIs(t, err, relay.ErrConnectionNotFound)
}

func TestHandleWebhook_BrokenStoredSinkURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.SlackWebhookURL = "https://evil.com/services/T000/B000/XXXX"

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil)

	// No Send expectation: nothing may leave the process.
	p := relay.New(st, mocks.NewMockSender(ctrl), nil, testLogger())

	_, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, []byte(`{"action_items":[]}`))
	assert.ErrorIs(t, err, relay.ErrConnectionNotFound)
}

func TestHandleWebhook_WorkflowModeFansOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.DeliveryMode = store.ModeWorkflow

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil)

	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), testSinkURL, gomock.Any()).Return(nil).Times(2)

	p := relay.New(st, sender, nil, testLogger())

	body := []byte(`{"title":"Standup","action_items":[{"description":"a"},{"description":"b"}]}`)
	result, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, &relay.Result{ItemsIn: 2, ItemsKept: 2, Payloads: 2}, result)
}

func TestHandleWebhook_WorkflowPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.DeliveryMode = store.ModeWorkflow

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil)

	// Every payload is attempted even though one fails.
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), testSinkURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any) error {
			if payload.(slack.WorkflowRecord).Task == "b" {
				return &slack.StatusError{Status: 500}
			}
			return nil
		}).Times(2)

	p := relay.New(st, sender, nil, testLogger())

	body := []byte(`{"title":"Standup","action_items":[{"description":"a"},{"description":"b"}]}`)
	_, err := p.HandleWebhook(context.Background(), testConnectionID, http.Header{}, body)
	assert.ErrorIs(t, err, relay.ErrSinkDelivery)
}

func TestTestSend(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := testConnection()
	conn.AssigneeEmailFilter = "jane@example.com"

	st := mocks.NewMockConnectionStore(ctrl)
	st.EXPECT().Get(gomock.Any(), testConnectionID).Return(conn, nil)

	var sent slack.Message
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), testSinkURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any) error {
			sent = payload.(slack.Message)
			return nil
		})

	p := relay.New(st, sender, nil, testLogger())

	result, err := p.TestSend(context.Background(), testConnectionID)
	require.NoError(t, err)

	// The sample item survives regardless of the configured filter.
	assert.Equal(t, &relay.Result{ItemsIn: 1, ItemsKept: 1, Payloads: 1}, result)
	assert.Contains(t, sent.Text, "This is a test action item from Fathom to Slack.")
}

func TestValidConnectionID(t *testing.T) {
	assert.True(t, relay.ValidConnectionID(testConnectionID))
	assert.False(t, relay.ValidConnectionID(""))
	assert.False(t, relay.ValidConnectionID("not-a-uuid"))
	assert.False(t, relay.ValidConnectionID("{3f2b8c1a-9d4e-4f6a-8b2c-1d3e5f7a9b0c}"))
}
