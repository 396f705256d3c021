package engine

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed compliance_profiles/*.yaml
var builtinProfiles embed.FS

// Control represents a single compliance requirement and the rules that violate it
type Control struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Rules       []string `yaml:"rules"`
}

// Profile represents a compliance standard (e.g., CIS GCP Foundations)
type Profile struct {
	Standard    string    `yaml:"standard"`
	Description string    `yaml:"description"`
	Controls    []Control `yaml:"controls"`
}

// ControlRef names a control within its standard
type ControlRef struct {
	Standard string `json:"standard"`
	ID       string `json:"id"`
	Name     string `json:"name"`
}

func (c ControlRef) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Standard, c.ID, c.Name)
}

// ComplianceEngine manages compliance profiles
type ComplianceEngine struct {
	Profiles map[string]Profile
}

// NewComplianceEngine creates an empty compliance engine
func NewComplianceEngine() *ComplianceEngine {
	return &ComplianceEngine{
		Profiles: make(map[string]Profile),
	}
}

// NewDefaultComplianceEngine loads the profiles compiled into the binary
func NewDefaultComplianceEngine() (*ComplianceEngine, error) {
	e := NewComplianceEngine()
	if err := e.LoadProfiles(builtinProfiles, "compliance_profiles"); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadProfiles reads YAML profiles from a directory of fsys
func (e *ComplianceEngine) LoadProfiles(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		if p.Standard == "" {
			return fmt.Errorf("profile %s has no standard name", entry.Name())
		}
		e.Profiles[p.Standard] = p
	}
	return nil
}

// ListStandards returns the names of loaded standards, sorted
func (e *ComplianceEngine) ListStandards() []string {
	keys := make([]string, 0, len(e.Profiles))
	for k := range e.Profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetProfile retrieves a profile by name
func (e *ComplianceEngine) GetProfile(name string) (Profile, bool) {
	p, ok := e.Profiles[name]
	return p, ok
}

// ControlsForRule lists every control violated by ruleID, ordered by standard then control id
func (e *ComplianceEngine) ControlsForRule(ruleID string) []ControlRef {
	var refs []ControlRef
	for _, std := range e.ListStandards() {
		for _, c := range e.Profiles[std].Controls {
			for _, r := range c.Rules {
				if r == ruleID {
					refs = append(refs, ControlRef{Standard: std, ID: c.ID, Name: c.Name})
					break
				}
			}
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Standard != refs[j].Standard {
			return refs[i].Standard < refs[j].Standard
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

// Impact renders the violated controls as one line, or "" when none apply
func (e *ComplianceEngine) Impact(ruleID string) string {
	refs := e.ControlsForRule(ruleID)
	if len(refs) == 0 {
		return ""
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return "Violates " + strings.Join(parts, "; ")
}
