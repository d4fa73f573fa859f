package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KalebJG/fathom-to-slacklist/internal/relay"
	"github.com/KalebJG/fathom-to-slacklist/internal/slack"
	"github.com/KalebJG/fathom-to-slacklist/internal/store"
)

// maxFilterLength caps the optional string fields at connection creation.
const maxFilterLength = 255

// handleWebhook handles POST /api/webhook/{id}: the real Fathom delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "id")

	// One byte past the limit is enough to detect an oversized body
	// without buffering an arbitrarily large request.
	body, err := io.ReadAll(io.LimitReader(r.Body, relay.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	result, err := s.pipeline.HandleWebhook(r.Context(), connectionID, r.Header, body)
	if err != nil {
		s.respondPipelineError(w, connectionID, err)
		return
	}

	s.logger.Debug("webhook processed",
		"connection_id", connectionID,
		"items_in", result.ItemsIn,
		"items_kept", result.ItemsKept,
	)
	w.WriteHeader(http.StatusOK)
}

// handleTestSend handles POST /api/connections/{id}/test: a synthetic
// delivery using a fixed sample payload and the connection's real config.
func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "id")

	if _, err := s.pipeline.TestSend(r.Context(), connectionID); err != nil {
		s.respondPipelineError(w, connectionID, err)
		return
	}

	s.respondJSON(w, http.StatusOK, TestResponse{OK: true})
}

// respondPipelineError maps pipeline errors onto the response taxonomy.
// Messages stay short and generic; detail is in the logs.
func (s *Server) respondPipelineError(w http.ResponseWriter, connectionID string, err error) {
	switch {
	case errors.Is(err, relay.ErrConnectionNotFound):
		s.respondError(w, http.StatusNotFound, "Connection not found")
	case errors.Is(err, relay.ErrInvalidSignature):
		s.respondError(w, http.StatusUnauthorized, "Invalid webhook signature")
	case errors.Is(err, relay.ErrPayloadTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, "Payload too large")
	case errors.Is(err, relay.ErrInvalidPayload):
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
	case errors.Is(err, relay.ErrSinkDelivery):
		s.respondError(w, http.StatusBadGateway, "Failed to send to Slack")
	default:
		s.logger.Error("delivery failed unexpectedly", "connection_id", connectionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

// handleSetup handles POST /api/setup: creates a connection and returns
// the inbound webhook URL to configure in Fathom.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	sinkURL, ok := slack.NormalizeWebhookURL(req.SlackWebhookURL)
	if !ok {
		s.respondError(w, http.StatusBadRequest,
			"slack_webhook_url must be a https://hooks.slack.com/services/ URL")
		return
	}

	secret := strings.TrimSpace(req.FathomWebhookSecret)
	emailFilter := strings.TrimSpace(req.AssigneeEmailFilter)
	nameFilter := strings.TrimSpace(req.AssigneeNameFilter)
	for field, value := range map[string]string{
		"fathom_webhook_secret": secret,
		"assignee_email_filter": emailFilter,
		"assignee_name_filter":  nameFilter,
	} {
		if len(value) > maxFilterLength {
			s.respondError(w, http.StatusBadRequest, field+" must be 255 characters or less")
			return
		}
	}

	mode := strings.TrimSpace(req.DeliveryMode)
	switch mode {
	case "", store.ModeMessage, store.ModeWorkflow:
	default:
		s.respondError(w, http.StatusBadRequest, "delivery_mode must be \"message\" or \"workflow\"")
		return
	}

	id, err := s.store.Create(r.Context(), store.Connection{
		SlackWebhookURL:     sinkURL,
		FathomWebhookSecret: secret,
		AssigneeEmailFilter: emailFilter,
		AssigneeNameFilter:  nameFilter,
		DeliveryMode:        mode,
	})
	if err != nil {
		s.logger.Error("failed to create connection", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create connection")
		return
	}

	s.logger.Info("connection created", "connection_id", id)

	s.respondJSON(w, http.StatusOK, SetupResponse{
		ConnectionID:         id,
		FathomDestinationURL: s.destinationURL(r, id),
	})
}

// destinationURL builds this service's inbound webhook URL for a
// connection. The configured public base URL wins; the request Origin is
// only a fallback for local setups, since a client-supplied Origin must
// not be trusted in production.
func (s *Server) destinationURL(r *http.Request, connectionID string) string {
	base := s.config.PublicBaseURL
	if base == "" {
		base = r.Header.Get("Origin")
	}
	return strings.TrimRight(base, "/") + "/api/webhook/" + connectionID
}

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	if s.dlog != nil {
		counts, err := s.dlog.Counts(r.Context())
		if err != nil {
			s.logger.Error("failed to compute delivery counts", "error", err)
			s.respondError(w, http.StatusInternalServerError, "failed to compute delivery counts")
			return
		}
		resp.DeliveriesSucceeded = counts.Succeeded
		resp.DeliveriesRejected = counts.Rejected
		resp.DeliveriesFailed = counts.Failed
	}

	s.respondJSON(w, http.StatusOK, resp)
}
