// Package relay orchestrates one webhook delivery end to end:
// normalize, verify, filter, build, fan out to the sink, aggregate.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/KalebJG/fathom-to-slacklist/internal/fathom"
	"github.com/KalebJG/fathom-to-slacklist/internal/slack"
	"github.com/KalebJG/fathom-to-slacklist/internal/store"
)

// MaxBodySize is the largest accepted raw webhook body, in bytes.
const MaxBodySize = 1_000_000

var (
	// ErrConnectionNotFound covers malformed ids, unknown ids and ids
	// whose stored sink URL no longer passes validation. All three are
	// indistinguishable to the caller on purpose.
	ErrConnectionNotFound = store.ErrConnectionNotFound

	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrSinkDelivery     = errors.New("sink delivery failed")
)

// Result summarizes one processed delivery.
type Result struct {
	ItemsIn   int // action items in the inbound payload
	ItemsKept int // after assignee filtering
	Payloads  int // sink payloads sent
}

// Pipeline is the webhook transformation-and-forwarding pipeline shared by
// the real webhook endpoint and the test-send endpoint. It is stateless
// across deliveries; the connection record is read-only within one.
type Pipeline struct {
	store  store.ConnectionStore
	sender slack.Sender
	dlog   store.DeliveryLog
	logger *slog.Logger
}

// New creates a Pipeline. dlog may be nil to disable delivery logging.
func New(st store.ConnectionStore, sender slack.Sender, dlog store.DeliveryLog, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:  st,
		sender: sender,
		dlog:   dlog,
		logger: logger,
	}
}

// ValidConnectionID reports whether id is in canonical UUID text form.
// Checked before any store lookup.
func ValidConnectionID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// HandleWebhook processes one inbound Fathom delivery against the named
// connection. rawBody is the body exactly as received; signature
// verification runs on it before any parsing.
func (p *Pipeline) HandleWebhook(ctx context.Context, connectionID string, headers http.Header, rawBody []byte) (*Result, error) {
	conn, err := p.lookup(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	if conn.FathomWebhookSecret != "" {
		if !fathom.VerifySignature(conn.FathomWebhookSecret, headers, rawBody) {
			p.record(ctx, conn.ID, "webhook", "rejected", nil, 0, "signature verification failed")
			return nil, ErrInvalidSignature
		}
	}

	if len(rawBody) > MaxBodySize {
		p.record(ctx, conn.ID, "webhook", "rejected", nil, 0, "payload too large")
		return nil, ErrPayloadTooLarge
	}

	var payload fathom.MeetingPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		p.record(ctx, conn.ID, "webhook", "rejected", nil, 0, "invalid JSON")
		return nil, ErrInvalidPayload
	}

	items := fathom.ActionItems(&payload)
	meeting := fathom.MeetingContext(&payload)
	kept := fathom.FilterByAssignee(items, conn.AssigneeEmailFilter, conn.AssigneeNameFilter)

	result := &Result{ItemsIn: len(items), ItemsKept: len(kept)}
	return p.deliver(ctx, conn, "webhook", kept, meeting, conn.HasFilter(), result)
}

// TestSend delivers a fixed sample action-item set through the
// connection's real configuration. The assignee filter is not applied to
// the sample items, but its presence selects the empty-state wording so
// the operator sees what a filtered meeting would produce.
func (p *Pipeline) TestSend(ctx context.Context, connectionID string) (*Result, error) {
	conn, err := p.lookup(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	items := SampleActionItems()
	meeting := SampleMeeting()

	result := &Result{ItemsIn: len(items), ItemsKept: len(items)}
	return p.deliver(ctx, conn, "test", items, meeting, conn.HasFilter(), result)
}

func (p *Pipeline) lookup(ctx context.Context, connectionID string) (*store.Connection, error) {
	if !ValidConnectionID(connectionID) {
		return nil, ErrConnectionNotFound
	}
	conn, err := p.store.Get(ctx, connectionID)
	if err != nil {
		if errors.Is(err, store.ErrConnectionNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}
	return conn, nil
}

// deliver runs the shared tail of both paths: sink URL validation, payload
// construction, concurrent send-all, aggregation, delivery logging.
func (p *Pipeline) deliver(ctx context.Context, conn *store.Connection, kind string, items []fathom.ActionItem, meeting fathom.Meeting, filterApplied bool, result *Result) (*Result, error) {
	sinkURL, ok := slack.NormalizeWebhookURL(conn.SlackWebhookURL)
	if !ok {
		// A stored URL that stopped validating means the connection is
		// effectively broken; reported identically to never-existed.
		p.record(ctx, conn.ID, kind, "rejected", result, 0, "stored sink URL failed validation")
		return nil, ErrConnectionNotFound
	}

	var payloads []any
	if conn.DeliveryMode == store.ModeWorkflow {
		for _, rec := range slack.BuildWorkflowRecords(items, meeting, filterApplied) {
			payloads = append(payloads, rec)
		}
	} else {
		payloads = []any{slack.BuildMessage(items, meeting, filterApplied)}
	}
	result.Payloads = len(payloads)

	failed, sinkStatus := p.sendAll(ctx, sinkURL, payloads)
	if failed > 0 {
		p.record(ctx, conn.ID, kind, "failed", result, sinkStatus,
			fmt.Sprintf("%d of %d payloads failed", failed, len(payloads)))
		return nil, fmt.Errorf("%w: %d of %d payloads failed", ErrSinkDelivery, failed, len(payloads))
	}

	p.record(ctx, conn.ID, kind, "succeeded", result, 0, "")
	p.logger.Info("delivery succeeded",
		"connection_id", conn.ID,
		"kind", kind,
		"items_in", result.ItemsIn,
		"items_kept", result.ItemsKept,
		"payloads", result.Payloads,
	)
	return result, nil
}

// sendAll dispatches every payload concurrently and waits for all to
// settle. It never short-circuits: partial delivery is surfaced as an
// aggregate failure count, not masked by the first error.
func (p *Pipeline) sendAll(ctx context.Context, sinkURL string, payloads []any) (failed, sinkStatus int) {
	errs := make([]error, len(payloads))

	var wg sync.WaitGroup
	for i, payload := range payloads {
		wg.Add(1)
		go func(i int, payload any) {
			defer wg.Done()
			errs[i] = p.sender.Send(ctx, sinkURL, payload)
		}(i, payload)
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		failed++
		var statusErr *slack.StatusError
		if sinkStatus == 0 && errors.As(err, &statusErr) {
			sinkStatus = statusErr.Status
		}
		p.logger.Error("sink delivery failed", "error", err)
	}
	return failed, sinkStatus
}

// record appends a delivery-log entry. Best-effort: failures are logged
// and never fail the delivery itself.
func (p *Pipeline) record(ctx context.Context, connectionID, kind, outcome string, result *Result, sinkStatus int, detail string) {
	if p.dlog == nil {
		return
	}

	d := store.Delivery{
		ConnectionID: connectionID,
		Kind:         kind,
		Outcome:      outcome,
		SinkStatus:   sinkStatus,
		Detail:       detail,
	}
	if result != nil {
		d.ItemsIn = result.ItemsIn
		d.ItemsSent = result.ItemsKept
	}

	if err := p.dlog.Record(ctx, d); err != nil {
		p.logger.Warn("failed to record delivery", "connection_id", connectionID, "error", err)
	}
}
