// Package store persists connection records and the delivery log.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrConnectionNotFound = errors.New("connection not found")

// Delivery modes supported per connection.
const (
	ModeMessage  = "message"
	ModeWorkflow = "workflow"
)

// Connection links one inbound webhook path to one Slack sink.
// A connection is immutable for the duration of one delivery.
type Connection struct {
	ID                  string
	SlackWebhookURL     string
	FathomWebhookSecret string
	AssigneeEmailFilter string
	AssigneeNameFilter  string
	DeliveryMode        string
	CreatedAt           time.Time
}

// HasFilter reports whether any assignee filter is configured.
func (c *Connection) HasFilter() bool {
	return strings.TrimSpace(c.AssigneeEmailFilter) != "" || strings.TrimSpace(c.AssigneeNameFilter) != ""
}

// ConnectionStore is the record store the relay pipeline depends on.
type ConnectionStore interface {
	Create(ctx context.Context, conn Connection) (string, error)
	Get(ctx context.Context, id string) (*Connection, error)
}

// Delivery is one delivery-log entry: a single inbound webhook or
// test-send and its outcome.
type Delivery struct {
	ID           string
	ConnectionID string
	Kind         string // "webhook" or "test"
	Outcome      string // "succeeded", "rejected", "failed"
	ItemsIn      int
	ItemsSent    int
	SinkStatus   int
	Detail       string
	CreatedAt    time.Time
}

// DeliveryCounts aggregates outcomes for health reporting.
type DeliveryCounts struct {
	Succeeded int
	Rejected  int
	Failed    int
}

// DeliveryLog records delivery outcomes for operator diagnosis.
// Recording is best-effort: a log failure never fails a delivery.
type DeliveryLog interface {
	Record(ctx context.Context, d Delivery) error
	Recent(ctx context.Context, limit int) ([]Delivery, error)
	Counts(ctx context.Context) (DeliveryCounts, error)
}
