package compiler

import (
	"strings"
	"text/template"
)

// documentTemplate renders the consolidated protocol document. Its input is
// the sorted protocol list; nothing time- or host-dependent may appear here.
const documentTemplate = `# Agent Protocols

This document is generated from the protocol sources. Do not edit it by hand.
{{range .}}
## {{.ProtocolID}}{{with .Version}} ({{version .}}){{end}}

{{.Description}}

### Rules
{{if .Rules}}{{range .Rules}}
- ` + "`{{.RuleID}}`" + `: {{.Description}}{{with .Enforcement}} (enforcement: {{.}}){{end}}{{end}}{{else}}
_No rules._{{end}}

### Associated tools
{{if .AssociatedTools}}{{range .AssociatedTools}}
- ` + "`{{.}}`" + `{{end}}{{else}}
_None._{{end}}
{{with .Narrative}}
{{trim .}}
{{end}}{{end}}`

func newTemplate(text string) (*template.Template, error) {
	return template.New("protocols").Funcs(template.FuncMap{
		"version": func(v string) string { return "v" + strings.TrimPrefix(v, "v") },
		"trim":    strings.TrimSpace,
		"join":    strings.Join,
	}).Option("missingkey=error").Parse(text)
}
