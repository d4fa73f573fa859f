// Package fathom understands the Fathom meeting-summary webhook: the
// payload shapes the provider has shipped over time, signature
// verification, and assignee filtering of action items.
package fathom

import "encoding/json"

// Assignee identifies who an action item was assigned to. Any field may
// be null in the wire payload.
type Assignee struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Team  *string `json:"team"`
}

// ActionItem is one action item from a meeting summary. Only Description
// is required; the relay passes the optional fields through untouched.
type ActionItem struct {
	Description          string    `json:"description"`
	UserGenerated        bool      `json:"user_generated,omitempty"`
	Completed            bool      `json:"completed,omitempty"`
	RecordingTimestamp   string    `json:"recording_timestamp,omitempty"`
	RecordingPlaybackURL string    `json:"recording_playback_url,omitempty"`
	Assignee             *Assignee `json:"assignee,omitempty"`
}

// Envelope holds the meeting fields Fathom has placed either at the top
// level or nested under "meeting", with both field-name variants for the
// title and URL. ActionItems stays raw so a non-array value degrades to
// "no items" instead of failing the whole payload parse.
type Envelope struct {
	ActionItems  json.RawMessage `json:"action_items,omitempty"`
	Title        *string         `json:"title,omitempty"`
	MeetingTitle *string         `json:"meeting_title,omitempty"`
	URL          *string         `json:"url,omitempty"`
	ShareURL     *string         `json:"share_url,omitempty"`
	CreatedAt    *string         `json:"created_at,omitempty"`
}

// MeetingPayload is the inbound webhook body. Fathom has shipped at least
// two incompatible shapes; every field is optional and may live at either
// level. Nothing outside this package should touch it raw.
type MeetingPayload struct {
	Envelope
	Meeting *Envelope `json:"meeting,omitempty"`
}

// Meeting is the normalized meeting context. Title is never empty; URL
// and CreatedAt are empty when absent from the payload.
type Meeting struct {
	Title     string
	URL       string
	CreatedAt string
}
