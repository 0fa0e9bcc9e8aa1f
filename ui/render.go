package ui

import (
	"html/template"
	"strings"
)

// renderTemplate executes tmpl; the templates in this package are fixed so
// an execution error only means a programming mistake.
func renderTemplate(tmpl *template.Template, data any) template.HTML {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		panic("ui: " + tmpl.Name() + ": " + err.Error())
	}
	return template.HTML(sb.String())
}
