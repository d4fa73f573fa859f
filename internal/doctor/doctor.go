// Package doctor validates fathom-to-slacklist configuration and the
// health of stored connections.
package doctor

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/KalebJG/fathom-to-slacklist/internal/config"
	"github.com/KalebJG/fathom-to-slacklist/internal/slack"
	"github.com/KalebJG/fathom-to-slacklist/internal/store"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// ConnectionLister enumerates stored connections for health checks.
type ConnectionLister interface {
	ListConnections(ctx context.Context) ([]*store.Connection, error)
}

// Doctor validates configuration and, when a lister is available, the
// stored connections.
type Doctor struct {
	cfg    *config.Config
	lister ConnectionLister
}

// New creates a Doctor. lister may be nil to skip connection checks.
func New(cfg *config.Config, lister ConnectionLister) *Doctor {
	return &Doctor{cfg: cfg, lister: lister}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateServerConfig(r)
	d.validateStateConfig(r)
	d.checkConnections(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	switch strings.ToUpper(d.cfg.Service.LogLevel) {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		d.addWarning(r, "service", "log_level",
			"unknown log level "+d.cfg.Service.LogLevel+" falls back to INFO")
	}
}

func (d *Doctor) validateServerConfig(r *Result) {
	if d.cfg.Server.Listen == "" {
		d.addError(r, "server", "listen", "listen address is required")
	} else if _, _, err := net.SplitHostPort(d.cfg.Server.Listen); err != nil {
		d.addError(r, "server", "listen", "listen must be host:port: "+err.Error())
	}

	base := strings.TrimSpace(d.cfg.Server.PublicBaseURL)
	if base == "" {
		d.addWarning(r, "server", "public_base_url",
			"public_base_url is unset; setup responses will trust the request Origin header")
		return
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		d.addError(r, "server", "public_base_url", "public_base_url is not an absolute URL")
		return
	}
	if u.Scheme != "https" {
		d.addWarning(r, "server", "public_base_url",
			"public_base_url is not https; Fathom signatures protect the body, not the transport")
	}
}

func (d *Doctor) validateStateConfig(r *Result) {
	switch d.cfg.State.Backend {
	case "", "sqlite":
		if strings.TrimSpace(d.cfg.State.Path) == "" {
			d.addError(r, "state", "path", "state.path is required for the sqlite backend")
		}
	case "redis":
		if strings.TrimSpace(d.cfg.State.RedisURL) == "" {
			d.addError(r, "state", "redis_url", "state.redis_url is required for the redis backend")
		}
	default:
		d.addError(r, "state", "backend", "unknown state backend "+d.cfg.State.Backend)
	}
}

// checkConnections flags stored connections whose sink URL no longer
// passes validation. The webhook endpoint reports those as 404, so this
// is the only place an operator can see why a connection went dark.
func (d *Doctor) checkConnections(ctx context.Context, r *Result) {
	if d.lister == nil {
		return
	}

	conns, err := d.lister.ListConnections(ctx)
	if err != nil {
		d.addError(r, "connections", "", "failed to list connections: "+err.Error())
		return
	}

	for _, conn := range conns {
		if _, ok := slack.NormalizeWebhookURL(conn.SlackWebhookURL); !ok {
			d.addError(r, "connections", conn.ID,
				"stored slack_webhook_url fails validation; deliveries to this connection return 404")
		}
		if conn.FathomWebhookSecret != "" && !strings.Contains(conn.FathomWebhookSecret, "_") {
			d.addWarning(r, "connections", conn.ID,
				"fathom_webhook_secret is not in <prefix>_<base64> form; all signed deliveries will be rejected")
		}
	}
}
