package engine

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed remediation_templates/*.yaml
var builtinTemplates embed.FS

// RemediationTemplate describes the fix, validation and rollback commands for one rule
type RemediationTemplate struct {
	RuleID            string   `yaml:"rule_id"`
	Name              string   `yaml:"name"`
	Standard          string   `yaml:"standard"`
	FixCommand        string   `yaml:"fix_command"`
	ValidationCommand string   `yaml:"validation_command"`
	RollbackCommand   string   `yaml:"rollback_command"`
	Variables         []string `yaml:"variables"`
}

// RemediationPlan is a rendered template
type RemediationPlan struct {
	RuleID     string `json:"rule_id"`
	Name       string `json:"name"`
	Standard   string `json:"standard,omitempty"`
	Fix        string `json:"fix"`
	Validation string `json:"validation"`
	Rollback   string `json:"rollback"`
}

// RemediationEngine manages remediation templates keyed by rule id
type RemediationEngine struct {
	Templates map[string]RemediationTemplate
}

// NewRemediationEngine creates an empty remediation engine
func NewRemediationEngine() *RemediationEngine {
	return &RemediationEngine{
		Templates: make(map[string]RemediationTemplate),
	}
}

// NewDefaultRemediationEngine loads the templates compiled into the binary
func NewDefaultRemediationEngine() (*RemediationEngine, error) {
	e := NewRemediationEngine()
	if err := e.LoadTemplates(builtinTemplates, "remediation_templates"); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadTemplates reads YAML templates from a directory of fsys
func (e *RemediationEngine) LoadTemplates(fsys fs.FS, dir string) error {
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

		var t RemediationTemplate
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		if t.RuleID == "" {
			return fmt.Errorf("template %s has no rule_id", entry.Name())
		}
		e.Templates[t.RuleID] = t
	}
	return nil
}

// ListTemplates returns "rule_id: name" entries sorted by rule id
func (e *RemediationEngine) ListTemplates() []string {
	list := make([]string, 0, len(e.Templates))
	for _, t := range e.Templates {
		list = append(list, fmt.Sprintf("%s: %s", t.RuleID, t.Name))
	}
	sort.Strings(list)
	return list
}

// GeneratePlan renders the template for ruleID with the given variables
func (e *RemediationEngine) GeneratePlan(ruleID string, vars map[string]string) (RemediationPlan, error) {
	tmpl, ok := e.Templates[ruleID]
	if !ok {
		return RemediationPlan{}, fmt.Errorf("template not found: %s", ruleID)
	}

	for _, requiredVar := range tmpl.Variables {
		if _, exists := vars[requiredVar]; !exists {
			return RemediationPlan{}, fmt.Errorf("missing required variable: %s", requiredVar)
		}
	}

	fix, err := renderString("fix", tmpl.FixCommand, vars)
	if err != nil {
		return RemediationPlan{}, err
	}
	validate, err := renderString("validate", tmpl.ValidationCommand, vars)
	if err != nil {
		return RemediationPlan{}, err
	}
	rollback, err := renderString("rollback", tmpl.RollbackCommand, vars)
	if err != nil {
		return RemediationPlan{}, err
	}

	return RemediationPlan{
		RuleID:     tmpl.RuleID,
		Name:       tmpl.Name,
		Standard:   tmpl.Standard,
		Fix:        fix,
		Validation: validate,
		Rollback:   rollback,
	}, nil
}

// PlanVariables derives template variables from a finding and its scan target
func PlanVariables(f Finding, project, region string) map[string]string {
	vars := map[string]string{
		"service": f.ResourceName,
		"project": project,
		"region":  region,
	}
	switch f.RuleID {
	case RulePublicInvocation, RuleExcessiveRole:
		if len(f.AffectedResources) > 0 && strings.HasPrefix(f.AffectedResources[0], "roles/") {
			vars["role"] = f.AffectedResources[0]
		} else if role := roleFromIssue(f.IssueDescription); role != "" {
			vars["role"] = role
		}
		if f.RuleID == RuleExcessiveRole && len(f.AffectedResources) > 0 {
			vars["member"] = f.AffectedResources[0]
		}
	case RuleSecretEnvVar:
		if len(f.AffectedResources) > 0 {
			vars["variable"] = f.AffectedResources[0]
		}
	}
	return vars
}

func roleFromIssue(issue string) string {
	for _, field := range strings.Fields(issue) {
		field = strings.Trim(field, "(),")
		if strings.HasPrefix(field, "roles/") {
			return field
		}
	}
	return ""
}

func renderString(name, tmplStr string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
