package slack

import (
	"fmt"
	"strings"

	"github.com/KalebJG/fathom-to-slacklist/internal/fathom"
)

const headerText = "New action items from Fathom"

// Empty-state wording. The "assigned to you" variant is used when an
// assignee filter stripped the list rather than the meeting having none.
const (
	emptyFiltered   = "No action items assigned to you from this meeting."
	emptyUnfiltered = "No action items from this meeting."
)

// Block is one Block Kit block. Kept loosely typed: the relay only ever
// writes these, and Slack owns the schema.
type Block map[string]any

// Message is a Slack incoming-webhook payload: structured blocks plus a
// plain-text fallback for notifications and clients without Block Kit.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

// WorkflowRecord is one flat per-item payload for workflow-style webhook
// triggers, which accept a flat variable map instead of Block Kit.
type WorkflowRecord struct {
	Task         string `json:"task"`
	Assignee     string `json:"assignee"`
	MeetingTitle string `json:"meeting_title"`
	MeetingURL   string `json:"meeting_url"`
}

// BuildMessage renders action items as one rich Block Kit message.
func BuildMessage(items []fathom.ActionItem, meeting fathom.Meeting, filterApplied bool) Message {
	return Message{
		Text:   fallbackText(items, meeting, filterApplied),
		Blocks: BuildBlocks(items, meeting, filterApplied),
	}
}

// BuildBlocks renders the Block Kit block list: header, meeting context,
// divider, then one section per action item (or an italic empty-state
// section when there are none).
func BuildBlocks(items []fathom.ActionItem, meeting fathom.Meeting, filterApplied bool) []Block {
	contextText := EscapeText(meeting.Title)
	if meeting.URL != "" {
		contextText = fmt.Sprintf("<%s|%s>", EscapeURL(meeting.URL), EscapeText(meeting.Title))
	}

	blocks := []Block{
		{
			"type": "header",
			"text": Block{"type": "plain_text", "text": headerText, "emoji": true},
		},
		{
			"type": "context",
			"elements": []Block{
				{"type": "mrkdwn", "text": contextText},
			},
		},
		{"type": "divider"},
	}

	if len(items) == 0 {
		blocks = append(blocks, Block{
			"type": "section",
			"text": Block{"type": "mrkdwn", "text": "_" + emptyStateText(filterApplied) + "_"},
		})
		return blocks
	}

	for _, item := range items {
		line := "• " + EscapeText(item.Description)
		if item.Assignee != nil && item.Assignee.Name != nil && *item.Assignee.Name != "" {
			line += " • Assignee: " + EscapeText(*item.Assignee.Name)
		}
		if item.RecordingPlaybackURL != "" {
			line += fmt.Sprintf(" <%s|View in Fathom>", EscapeURL(item.RecordingPlaybackURL))
		}
		blocks = append(blocks, Block{
			"type": "section",
			"text": Block{"type": "mrkdwn", "text": line},
		})
	}

	return blocks
}

// BuildWorkflowRecords renders one flat record per action item. The result
// is never empty: zero items produce a single record whose task carries
// the empty-state sentence, so the workflow still fires.
func BuildWorkflowRecords(items []fathom.ActionItem, meeting fathom.Meeting, filterApplied bool) []WorkflowRecord {
	if len(items) == 0 {
		return []WorkflowRecord{{
			Task:         emptyStateText(filterApplied),
			Assignee:     "",
			MeetingTitle: meeting.Title,
			MeetingURL:   meeting.URL,
		}}
	}

	records := make([]WorkflowRecord, 0, len(items))
	for _, item := range items {
		assignee := "Unassigned"
		if item.Assignee != nil && item.Assignee.Name != nil && *item.Assignee.Name != "" {
			assignee = *item.Assignee.Name
		}
		records = append(records, WorkflowRecord{
			Task:         item.Description,
			Assignee:     assignee,
			MeetingTitle: meeting.Title,
			MeetingURL:   meeting.URL,
		})
	}
	return records
}

func emptyStateText(filterApplied bool) string {
	if filterApplied {
		return emptyFiltered
	}
	return emptyUnfiltered
}

func fallbackText(items []fathom.ActionItem, meeting fathom.Meeting, filterApplied bool) string {
	if len(items) == 0 {
		if filterApplied {
			return "No action items assigned to you from: " + meeting.Title
		}
		return "No action items from: " + meeting.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Action items from %s:", meeting.Title)
	for _, item := range items {
		b.WriteString("\n• ")
		b.WriteString(item.Description)
	}
	return b.String()
}

// EscapeText escapes user-supplied text for Slack mrkdwn. Slack treats
// & < > as control characters in all markup-bearing fields.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeURL escapes a URL placed inside <url|text> link syntax; only
// angle brackets can break out of the link.
func EscapeURL(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
