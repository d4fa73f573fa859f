package server

// SetupRequest is the body of POST /api/setup.
type SetupRequest struct {
	SlackWebhookURL     string `json:"slack_webhook_url"`
	FathomWebhookSecret string `json:"fathom_webhook_secret,omitempty"`
	AssigneeEmailFilter string `json:"assignee_email_filter,omitempty"`
	AssigneeNameFilter  string `json:"assignee_name_filter,omitempty"`
	DeliveryMode        string `json:"delivery_mode,omitempty"`
}

// SetupResponse returns the created connection and the URL to paste into
// Fathom's webhook destination field.
type SetupResponse struct {
	ConnectionID         string `json:"connectionId"`
	FathomDestinationURL string `json:"fathomDestinationUrl"`
}

// TestResponse is the success body of POST /api/connections/{id}/test.
type TestResponse struct {
	OK bool `json:"ok"`
}

// HealthzResponse is the body of GET /healthz.
type HealthzResponse struct {
	Status              string `json:"status"`
	UptimeSeconds       int64  `json:"uptime_seconds"`
	DeliveriesSucceeded int    `json:"deliveries_succeeded"`
	DeliveriesRejected  int    `json:"deliveries_rejected"`
	DeliveriesFailed    int    `json:"deliveries_failed"`
}

// ErrorResponse is the JSON error body used by every endpoint. A short
// message only; internal detail stays in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
}
