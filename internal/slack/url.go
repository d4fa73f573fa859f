// Package slack builds and delivers Slack incoming-webhook payloads.
package slack

import (
	"net/url"
	"strings"
)

// Allow-list for outbound webhook targets. The stored URL is user-supplied
// and later used as a server-side request target, so anything outside this
// shape is an SSRF vector.
const (
	WebhookHost       = "hooks.slack.com"
	WebhookPathPrefix = "/services/"
)

// NormalizeWebhookURL validates input as a Slack incoming-webhook URL and
// returns its canonical form. It returns ok=false for anything that is not
// exactly https://hooks.slack.com/services/... with no credentials, query
// or fragment.
func NormalizeWebhookURL(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	if u.Scheme != "https" || u.Opaque != "" {
		return "", false
	}
	if u.Host != WebhookHost {
		return "", false
	}
	if !strings.HasPrefix(u.Path, WebhookPathPrefix) {
		return "", false
	}
	if u.User != nil {
		return "", false
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return "", false
	}

	return u.String(), true
}
