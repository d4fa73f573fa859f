package fathom

import (
	"bytes"
	"encoding/json"
)

// DefaultMeetingTitle is used when a payload carries no usable title.
const DefaultMeetingTitle = "Meeting"

var jsonNull = []byte("null")

// ActionItems extracts the action-item list from a payload, preferring the
// top-level list over the one nested under "meeting". A missing, null or
// non-array value yields an empty list, never an error: schema drift in
// the provider payload must not take the relay down.
func ActionItems(p *MeetingPayload) []ActionItem {
	raw := p.Envelope.ActionItems
	if isAbsent(raw) && p.Meeting != nil {
		raw = p.Meeting.ActionItems
	}
	if isAbsent(raw) {
		return []ActionItem{}
	}

	var items []ActionItem
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []ActionItem{}
	}
	return items
}

// MeetingContext extracts the normalized meeting context. When a nested
// "meeting" object is present it is the sole source of fields; otherwise
// the top level is used. Title resolves title then meeting_title, URL
// resolves url then share_url.
func MeetingContext(p *MeetingPayload) Meeting {
	env := p.Envelope
	if p.Meeting != nil {
		env = *p.Meeting
	}

	m := Meeting{
		Title:     firstString(env.Title, env.MeetingTitle),
		URL:       firstString(env.URL, env.ShareURL),
		CreatedAt: firstString(env.CreatedAt, nil),
	}
	if m.Title == "" {
		m.Title = DefaultMeetingTitle
	}
	return m
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, jsonNull)
}

func firstString(candidates ...*string) string {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return ""
}
