package fathom

import "strings"

// FilterByAssignee keeps the action items whose assignee matches the
// configured email or name filter; either match suffices. Matching is
// trimmed and case-insensitive. With both filters blank the input is
// returned unchanged; with any filter active, items without an assignee
// are dropped.
func FilterByAssignee(items []ActionItem, emailFilter, nameFilter string) []ActionItem {
	emailFilter = strings.TrimSpace(emailFilter)
	nameFilter = strings.TrimSpace(nameFilter)
	if emailFilter == "" && nameFilter == "" {
		return items
	}

	kept := make([]ActionItem, 0, len(items))
	for _, item := range items {
		if item.Assignee == nil {
			continue
		}
		if emailFilter != "" && foldEqual(item.Assignee.Email, emailFilter) {
			kept = append(kept, item)
			continue
		}
		if nameFilter != "" && foldEqual(item.Assignee.Name, nameFilter) {
			kept = append(kept, item)
		}
	}
	return kept
}

func foldEqual(field *string, filter string) bool {
	if field == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*field), filter)
}
