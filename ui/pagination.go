package ui

import (
	"fmt"
	"html/template"
)

// DefaultPageSize applies when a size is not positive.
const DefaultPageSize = 10

// Page is a clamped pagination state.
type Page struct {
	Page  int
	Size  int
	Total int
	Pages int
}

// NewPage clamps page to [1, Pages] where Pages = max(1, ceil(total/size)).
func NewPage(page, size, total int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	pages := max(1, (total+size-1)/size)
	return Page{Page: min(max(1, page), pages), Size: size, Total: total, Pages: pages}
}

// Offset is the index of the first item on the page.
func (p Page) Offset() int { return (p.Page - 1) * p.Size }

// Link is one pagination control.
type Link struct {
	Label    string
	Target   int
	Disabled bool
}

// Links returns first, previous, next and last controls. Targets outside
// [1, Pages] are disabled.
func (p Page) Links() []Link {
	mk := func(label string, target int) Link {
		return Link{Label: label, Target: target, Disabled: target < 1 || target > p.Pages || target == p.Page}
	}
	return []Link{
		mk("«", 1),
		mk("‹", p.Page-1),
		mk("›", p.Page+1),
		mk("»", p.Pages),
	}
}

// Info is the "page/pages" label.
func (p Page) Info() string { return fmt.Sprintf("%d/%d", p.Page, p.Pages) }

var pageTmpl = template.Must(template.New("page").Parse(
	`<div class="yl-page-bar">{{$links := .Links}}` +
		`{{range slice $links 0 2}}{{template "link" .}}{{end}}` +
		`<span class="yl-page-info">{{.Info}}</span>` +
		`{{range slice $links 2 4}}{{template "link" .}}{{end}}</div>` +
		`{{define "link"}}{{if .Disabled}}<a class="disabled">{{.Label}}</a>{{else}}<a href="?page={{.Target}}" data-page="{{.Target}}">{{.Label}}</a>{{end}}{{end}}`))

// Render returns the pagination bar.
func (p Page) Render() template.HTML {
	return renderTemplate(pageTmpl, p)
}
