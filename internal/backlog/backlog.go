// Package backlog manages the improvement backlog that accumulates
// across cycles: Observe adds items, Plan selects them, Verify marks
// them completed or bumps their attempt count, and pruning retires old
// completed or stale items.
package backlog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/evonest/internal/state"
)

const (
	// MaxAttempts is the failure count at which an item goes stale.
	MaxAttempts = 3
	// PruneAgeCycles is how long completed and stale items are kept.
	PruneAgeCycles = 20

	contextLimit = 10
)

// Improvement is one candidate item extracted from Observe output
// before it becomes a backlog entry.
type Improvement struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Files       []string `json:"files,omitempty"`
	ID          string   `json:"id,omitempty"`
}

// EffectiveTitle falls back to the description when a title is missing.
func (imp Improvement) EffectiveTitle() string {
	if imp.Title != "" {
		return imp.Title
	}
	if imp.Description != "" {
		return imp.Description
	}
	return "untitled"
}

// SaveObservations adds new items to the backlog, skipping titles that
// already exist. Returns the number of items added.
func SaveObservations(st *state.ProjectState, improvements []Improvement, personaID string, currentCycle int) (int, error) {
	bl, err := st.ReadBacklog()
	if err != nil {
		return 0, fmt.Errorf("reading backlog: %w", err)
	}

	existing := make(map[string]bool, len(bl.Items))
	for _, item := range bl.Items {
		existing[item.Title] = true
	}

	added := 0
	for _, imp := range improvements {
		title := imp.EffectiveTitle()
		if existing[title] {
			continue
		}
		category := imp.Category
		if category == "" {
			category = "general"
		}
		priority := imp.Priority
		if priority == "" {
			priority = "medium"
		}
		bl.Items = append(bl.Items, state.BacklogItem{
			ID:            "improve-" + uuid.NewString()[:8],
			Title:         title,
			Category:      category,
			Priority:      priority,
			Files:         imp.Files,
			SourcePersona: personaID,
			SourceCycle:   currentCycle,
			Status:        "pending",
			Attempts:      0,
		})
		existing[title] = true
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, st.WriteBacklog(bl)
}

// UpdateStatus sets an item's status. A transition back to pending
// counts as a failed attempt; at MaxAttempts the item goes stale.
func UpdateStatus(st *state.ProjectState, itemID, newStatus string) error {
	bl, err := st.ReadBacklog()
	if err != nil {
		return fmt.Errorf("reading backlog: %w", err)
	}
	for i := range bl.Items {
		if bl.Items[i].ID != itemID {
			continue
		}
		bl.Items[i].Status = newStatus
		if newStatus == "pending" {
			bl.Items[i].Attempts++
			if bl.Items[i].Attempts >= MaxAttempts {
				bl.Items[i].Status = "stale"
			}
		}
		break
	}
	return st.WriteBacklog(bl)
}

// Remove deletes an item by ID. An unknown ID is an error.
func Remove(st *state.ProjectState, itemID string) error {
	bl, err := st.ReadBacklog()
	if err != nil {
		return fmt.Errorf("reading backlog: %w", err)
	}
	kept := bl.Items[:0]
	for _, item := range bl.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(bl.Items) {
		return fmt.Errorf("no backlog item with id %q", itemID)
	}
	bl.Items = kept
	return st.WriteBacklog(bl)
}

// Prune removes completed and stale items whose source cycle fell out
// of the retention window. Pending and in-progress items are never
// pruned. Returns the number of items removed.
func Prune(st *state.ProjectState, currentCycle int) (int, error) {
	bl, err := st.ReadBacklog()
	if err != nil {
		return 0, fmt.Errorf("reading backlog: %w", err)
	}
	cutoff := currentCycle - PruneAgeCycles
	if cutoff < 0 {
		cutoff = 0
	}

	kept := bl.Items[:0]
	for _, item := range bl.Items {
		if item.Status == "pending" || item.Status == "in_progress" || item.SourceCycle > cutoff {
			kept = append(kept, item)
		}
	}
	removed := len(bl.Items) - len(kept)
	bl.Items = kept

	if removed == 0 {
		return 0, nil
	}
	return removed, st.WriteBacklog(bl)
}

var priorityOrder = map[string]int{"high": 0, "medium": 1, "low": 2}

// BuildContext renders the pending backlog as a prompt section for the
// Plan phase, highest priority first, capped at ten items. Returns ""
// when nothing is pending.
func BuildContext(st *state.ProjectState) (string, error) {
	bl, err := st.ReadBacklog()
	if err != nil {
		return "", fmt.Errorf("reading backlog: %w", err)
	}

	var pending []state.BacklogItem
	for _, item := range bl.Items {
		if item.Status == "pending" {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return "", nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return priorityRank(pending[i].Priority) < priorityRank(pending[j].Priority)
	})

	var b strings.Builder
	b.WriteString("## Accumulated Backlog\n\n")
	b.WriteString("The following improvements have been identified in previous cycles but not yet implemented.\n")
	b.WriteString("Consider selecting from this list if any align with your current observations.\n\n")
	for i, item := range pending {
		if i >= contextLimit {
			break
		}
		fmt.Fprintf(&b, "- [%s] %s (category: %s, files: %s)\n",
			item.Priority, item.Title, item.Category, strings.Join(item.Files, ", "))
	}
	return b.String(), nil
}

func priorityRank(p string) int {
	if rank, ok := priorityOrder[p]; ok {
		return rank
	}
	return 1
}

// Report renders the backlog listing shown by the evonest_backlog tool.
func Report(bl *state.Backlog) string {
	if len(bl.Items) == 0 {
		return "Backlog is empty."
	}
	counts := map[string]int{}
	for _, item := range bl.Items {
		counts[item.Status]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Backlog: %d items (pending: %d, stale: %d, completed: %d)\n",
		len(bl.Items), counts["pending"], counts["stale"], counts["completed"])
	for _, item := range bl.Items {
		fmt.Fprintf(&b, "  [%s] %s (%s) id=%s\n", item.Status, item.Title, item.Category, item.ID)
	}
	return b.String()
}
