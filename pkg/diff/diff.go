// Package diff computes structured change-sets between two availability
// snapshots. A snapshot is a plain map of resource name to availability
// status; the comparison classifies every key of either snapshot as added,
// removed, changed or (implicitly) unchanged, and returns the first three as
// lexicographically sorted lists so output is deterministic regardless of
// map iteration order.
package diff

import "sort"

// Entry is a resource that appears only in the new snapshot, carrying the
// status it was first observed with.
type Entry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// StatusChange is a resource present in both snapshots whose status differs.
type StatusChange struct {
	Name      string `json:"name"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ChangeSet is the decomposition of the difference between two snapshots.
// Added, Removed and Changed are disjoint; keys in both snapshots with equal
// status are not recorded.
type ChangeSet struct {
	Added   []Entry        `json:"added"`
	Removed []string       `json:"removed"`
	Changed []StatusChange `json:"changed"`
}

// Empty reports whether the change-set records no differences. An empty
// change-set gates both report emission and the process change signal.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Count returns the total number of recorded differences.
func (c ChangeSet) Count() int {
	return len(c.Added) + len(c.Removed) + len(c.Changed)
}

// Compare computes the change-set between an old and a new snapshot.
// Each result list is sorted by resource name.
func Compare(old, current map[string]string) ChangeSet {
	var cs ChangeSet

	for name, status := range current {
		if _, ok := old[name]; !ok {
			cs.Added = append(cs.Added, Entry{Name: name, Status: status})
		}
	}
	sort.Slice(cs.Added, func(i, j int) bool { return cs.Added[i].Name < cs.Added[j].Name })

	for name := range old {
		if _, ok := current[name]; !ok {
			cs.Removed = append(cs.Removed, name)
		}
	}
	sort.Strings(cs.Removed)

	for name, oldStatus := range old {
		if newStatus, ok := current[name]; ok && newStatus != oldStatus {
			cs.Changed = append(cs.Changed, StatusChange{
				Name:      name,
				OldStatus: oldStatus,
				NewStatus: newStatus,
			})
		}
	}
	sort.Slice(cs.Changed, func(i, j int) bool { return cs.Changed[i].Name < cs.Changed[j].Name })

	return cs
}
