package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Severity is the ordinal risk tier of a finding
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every tier from most to least severe
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity accepts any letter case ("critical", "High", ...)
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return sev, nil
}

// Valid reports whether s is one of the four known tiers
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Rank orders severities: CRITICAL=4 > HIGH=3 > MEDIUM=2 > LOW=1. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// DefaultRiskScore is used when a finding carries no risk score of its own
func (s Severity) DefaultRiskScore() int {
	switch s {
	case SeverityCritical:
		return 95
	case SeverityHigh:
		return 75
	case SeverityMedium:
		return 50
	case SeverityLow:
		return 25
	default:
		return 0
	}
}

// SortBySeverity orders findings by severity, then risk score, highest first.
// Findings that tie keep their relative order.
func SortBySeverity(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := findings[i].Severity.Rank(), findings[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return findings[i].Score() > findings[j].Score()
	})
}

// CountBySeverity builds a histogram with every tier present, zero-filled
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	for _, f := range findings {
		if f.Severity.Valid() {
			counts[f.Severity]++
		}
	}
	return counts
}
