package relay

import "github.com/KalebJG/fathom-to-slacklist/internal/fathom"

// SampleActionItems returns the fixed action-item set used by the
// test-send endpoint. Deliberately tiny: the point is proving the
// connection's Slack URL and formatting, not exercising filters.
func SampleActionItems() []fathom.ActionItem {
	name := "Test User"
	return []fathom.ActionItem{
		{
			Description: "This is a test action item from Fathom to Slack.",
			Assignee:    &fathom.Assignee{Name: &name},
		},
	}
}

// SampleMeeting returns the meeting context paired with the sample items.
func SampleMeeting() fathom.Meeting {
	return fathom.Meeting{
		Title: "Test meeting (Fathom → Slack)",
	}
}
