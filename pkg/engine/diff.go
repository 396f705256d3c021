package engine

import (
	"sort"
	"strings"
)

// FindingDiff compares a scan with an earlier baseline scan of the same service
type FindingDiff struct {
	New       []Finding `json:"new"`
	Fixed     []Finding `json:"fixed"`
	Unchanged []Finding `json:"unchanged"`
}

// Fingerprint identifies the same issue across scans, ignoring id, job and time
func (f Finding) Fingerprint() string {
	affected := append([]string(nil), f.AffectedResources...)
	sort.Strings(affected)
	return strings.Join([]string{
		f.RuleID,
		string(f.ResourceType),
		f.ResourceName,
		f.IssueDescription,
		strings.Join(affected, ","),
	}, "|")
}

// CompareFindings classifies findings as new (only in current), fixed (only in
// baseline) or unchanged (in both; the current finding is reported)
func CompareFindings(baseline, current []Finding) FindingDiff {
	before := make(map[string]bool, len(baseline))
	for _, f := range baseline {
		before[f.Fingerprint()] = true
	}
	after := make(map[string]bool, len(current))

	var diff FindingDiff
	for _, f := range current {
		fp := f.Fingerprint()
		if after[fp] {
			continue
		}
		after[fp] = true
		if before[fp] {
			diff.Unchanged = append(diff.Unchanged, f)
		} else {
			diff.New = append(diff.New, f)
		}
	}
	for _, f := range baseline {
		fp := f.Fingerprint()
		if !after[fp] {
			after[fp] = true
			diff.Fixed = append(diff.Fixed, f)
		}
	}

	SortBySeverity(diff.New)
	SortBySeverity(diff.Fixed)
	SortBySeverity(diff.Unchanged)
	return diff
}
