package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore persists connections and the delivery log in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		now: time.Now,
	}
}

// Create inserts a new connection row and returns its generated id.
func (s *SQLiteStore) Create(ctx context.Context, conn Connection) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := s.now().UTC()
	nowS := now.Format(time.RFC3339Nano)

	mode := conn.DeliveryMode
	if mode == "" {
		mode = ModeMessage
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO connections(id, slack_webhook_url, fathom_webhook_secret, assignee_email_filter, assignee_name_filter, delivery_mode, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, id, conn.SlackWebhookURL, nullable(conn.FathomWebhookSecret), nullable(conn.AssigneeEmailFilter), nullable(conn.AssigneeNameFilter), mode, nowS)
	if err != nil {
		return "", fmt.Errorf("insert connection: %w", err)
	}

	return id, nil
}

// Get returns one connection row by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrConnectionNotFound
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id, slack_webhook_url, fathom_webhook_secret, assignee_email_filter, assignee_name_filter, delivery_mode, created_at
FROM connections
WHERE id = ?;
`, id)

	return scanConnection(row)
}

// Record appends one delivery-log row.
func (s *SQLiteStore) Record(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO delivery_log(id, connection_id, kind, outcome, items_in, items_sent, sink_status, detail, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, d.ConnectionID, d.Kind, d.Outcome, d.ItemsIn, d.ItemsSent, d.SinkStatus, nullable(d.Detail), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// Recent returns the newest delivery-log rows, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, connection_id, kind, outcome, items_in, items_sent, sink_status, detail, created_at
FROM delivery_log
ORDER BY created_at DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query delivery log: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var (
			d          Delivery
			sinkStatus sql.NullInt64
			detail     sql.NullString
			createdAtS string
		)
		if err := rows.Scan(&d.ID, &d.ConnectionID, &d.Kind, &d.Outcome, &d.ItemsIn, &d.ItemsSent, &sinkStatus, &detail, &createdAtS); err != nil {
			return nil, fmt.Errorf("scan delivery log row: %w", err)
		}
		if sinkStatus.Valid {
			d.SinkStatus = int(sinkStatus.Int64)
		}
		if detail.Valid {
			d.Detail = detail.String
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtS)
		if err != nil {
			return nil, fmt.Errorf("parse delivery_log.created_at: %w", err)
		}
		d.CreatedAt = createdAt
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery log rows: %w", err)
	}
	return deliveries, nil
}

// Counts aggregates delivery outcomes.
func (s *SQLiteStore) Counts(ctx context.Context) (DeliveryCounts, error) {
	var counts DeliveryCounts
	if err := ctx.Err(); err != nil {
		return counts, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT outcome, COUNT(*) FROM delivery_log GROUP BY outcome;
`)
	if err != nil {
		return counts, fmt.Errorf("query delivery counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return counts, fmt.Errorf("scan delivery count row: %w", err)
		}
		switch outcome {
		case "succeeded":
			counts.Succeeded = n
		case "rejected":
			counts.Rejected = n
		case "failed":
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("iterate delivery count rows: %w", err)
	}
	return counts, nil
}

// ListConnections returns all stored connections, oldest first.
// Used by doctor to surface connections whose sink URL no longer validates.
func (s *SQLiteStore) ListConnections(ctx context.Context) ([]*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, slack_webhook_url, fathom_webhook_secret, assignee_email_filter, assignee_name_filter, delivery_mode, created_at
FROM connections
ORDER BY created_at ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var conns []*Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection rows: %w", err)
	}
	return conns, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*Connection, error) {
	var (
		conn        Connection
		secret      sql.NullString
		emailFilter sql.NullString
		nameFilter  sql.NullString
		createdAtS  string
	)
	if err := row.Scan(
		&conn.ID,
		&conn.SlackWebhookURL,
		&secret,
		&emailFilter,
		&nameFilter,
		&conn.DeliveryMode,
		&createdAtS,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}

	if secret.Valid {
		conn.FathomWebhookSecret = secret.String
	}
	if emailFilter.Valid {
		conn.AssigneeEmailFilter = emailFilter.String
	}
	if nameFilter.Valid {
		conn.AssigneeNameFilter = nameFilter.String
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdAtS)
	if err != nil {
		return nil, fmt.Errorf("parse connections.created_at: %w", err)
	}
	conn.CreatedAt = createdAt
	return &conn, nil
}

// nullable maps "" to NULL so optional fields round-trip as absent.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
