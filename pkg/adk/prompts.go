package adk

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompt template names
const (
	PromptExplanation = "explanation.tmpl"
	PromptSummary     = "summary.tmpl"
	PromptProposal    = "proposal.tmpl"
)

var prompts = template.Must(template.New("prompts").ParseFS(promptFS, "prompts/*.tmpl"))

// RenderPrompt executes the named prompt template with data
func RenderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
