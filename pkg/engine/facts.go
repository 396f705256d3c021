package engine

import "time"

// Sentinel principals that denote public or broad exposure
const (
	AllUsers              = "allUsers"
	AllAuthenticatedUsers = "allAuthenticatedUsers"
)

// PolicyBinding grants a role to a set of principals
type PolicyBinding struct {
	Role    string
	Members []string
}

// NewPolicyBinding drops duplicate and empty members, keeping first-seen order
func NewPolicyBinding(role string, members []string) PolicyBinding {
	seen := make(map[string]bool, len(members))
	uniq := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		uniq = append(uniq, m)
	}
	return PolicyBinding{Role: role, Members: uniq}
}

// HasMember checks for an exact principal identifier
func (b PolicyBinding) HasMember(member string) bool {
	for _, m := range b.Members {
		if m == member {
			return true
		}
	}
	return false
}

// IsPublic reports whether the binding includes allUsers or allAuthenticatedUsers
func (b PolicyBinding) IsPublic() bool {
	return b.HasMember(AllUsers) || b.HasMember(AllAuthenticatedUsers)
}

// EnvVar is a declared container environment variable
type EnvVar struct {
	Name  string
	Value string
}

// ServiceConfig holds the runtime facts the rules look at.
// A nil Timeout means no timeout is configured.
type ServiceConfig struct {
	NetworkIsolated bool
	Timeout         *time.Duration
	Env             []EnvVar
}
