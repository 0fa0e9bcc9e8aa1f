package ui

import (
	"fmt"
	"html/template"
)

// DefaultProgressColor fills the bar when no colour is given.
const DefaultProgressColor = "#42e695"

// Progress is a horizontal progress bar.
type Progress struct {
	Percent int
	Color   string
	// Text defaults to "N%".
	Text string
}

var progressTmpl = template.Must(template.New("progress").Parse(
	`<div class="progress-bar-container"><div class="progress-bar-bg">` +
		`<div class="progress-bar-fill" style="width:{{.Width}};background:{{.Color}}"></div></div>` +
		`<span class="progress-bar-text">{{.Text}}</span></div>`))

// Render returns the bar with Percent clamped to [0, 100].
func (p Progress) Render() template.HTML {
	pct := min(max(p.Percent, 0), 100)
	color := p.Color
	if color == "" {
		color = DefaultProgressColor
	}
	text := p.Text
	if text == "" {
		text = fmt.Sprintf("%d%%", pct)
	}
	return renderTemplate(progressTmpl, map[string]any{
		"Width": template.CSS(fmt.Sprintf("%d%%", pct)),
		"Color": template.CSS(color),
		"Text":  text,
	})
}

// Spinner is the loading indicator markup.
func Spinner() template.HTML {
	return `<div class="spinner-container"><div class="spinner"><div></div><div></div><div></div><div></div></div></div>`
}
