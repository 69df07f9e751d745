package domain

import "sort"

// ArtifactDiff represents the changes between the artifact sets of two tasks.
// It is designed to be serialized to JSON for inspection tools.
type ArtifactDiff struct {
	Added   []string `json:"added,omitempty"`
	Changed []string `json:"changed,omitempty"`
	// Removed lists names present in the old set only.
	Removed []string `json:"removed,omitempty"`
}

// Diff compares two artifact listings by fingerprint.
// If old is nil, every artifact of new is reported as added.
// Names are sorted so the result is stable.
func Diff(old, new []ArtifactRecord) *ArtifactDiff {
	before := fingerprints(old)
	after := fingerprints(new)

	diff := &ArtifactDiff{}
	for name, fp := range after {
		prev, exists := before[name]
		switch {
		case !exists:
			diff.Added = append(diff.Added, name)
		case prev != fp:
			diff.Changed = append(diff.Changed, name)
		}
	}
	for name := range before {
		if _, exists := after[name]; !exists {
			diff.Removed = append(diff.Removed, name)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Changed)
	sort.Strings(diff.Removed)
	return diff
}

func fingerprints(records []ArtifactRecord) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.Name] = r.Fingerprint
	}
	return m
}

// IsEmpty checks if the diff contains any changes.
func (d *ArtifactDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}
