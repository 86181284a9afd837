package model

import "sort"

// RunDiff describes how the discovered URL set changed between two runs of
// the same origin.
type RunDiff struct {
	// BaseRunID and TargetRunID identify the compared runs.
	BaseRunID   string `json:"base_run_id"`
	TargetRunID string `json:"target_run_id"`

	// Added lists URLs visited in the target run but not in the base run.
	Added []string `json:"added"`

	// Removed lists URLs visited in the base run but not in the target run.
	Removed []string `json:"removed"`

	// Reparented lists URLs visited in both runs whose parent changed.
	Reparented []Reparent `json:"reparented"`

	// Unchanged is the number of URLs visited in both runs.
	Unchanged int `json:"unchanged"`
}

// Reparent is a URL reached through a different parent in the target run.
type Reparent struct {
	URL       string `json:"url"`
	OldParent string `json:"old_parent"`
	NewParent string `json:"new_parent"`
}

// CompareRuns computes the difference between base and target.
// Output slices are sorted for stable display.
func CompareRuns(base, target *CrawlResult) *RunDiff {
	diff := &RunDiff{
		BaseRunID:   base.RunID,
		TargetRunID: target.RunID,
		Added:       make([]string, 0),
		Removed:     make([]string, 0),
		Reparented:  make([]Reparent, 0),
	}

	inBase := make(map[string]bool, len(base.Visited))
	for _, u := range base.Visited {
		inBase[u] = true
	}
	inTarget := make(map[string]bool, len(target.Visited))
	for _, u := range target.Visited {
		inTarget[u] = true
	}

	for _, u := range target.Visited {
		if !inBase[u] {
			diff.Added = append(diff.Added, u)
			continue
		}
		diff.Unchanged++
		oldParent, newParent := base.ParentOf(u), target.ParentOf(u)
		if oldParent != newParent {
			diff.Reparented = append(diff.Reparented, Reparent{
				URL:       u,
				OldParent: oldParent,
				NewParent: newParent,
			})
		}
	}
	for _, u := range base.Visited {
		if !inTarget[u] {
			diff.Removed = append(diff.Removed, u)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Reparented, func(i, j int) bool {
		return diff.Reparented[i].URL < diff.Reparented[j].URL
	})
	return diff
}

// HasChanges reports whether the runs differ.
func (d *RunDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Reparented) > 0
}
