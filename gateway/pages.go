package gateway

import (
	"bytes"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ylai/autoplatform/ui"
)

// Placeholders substituted in every served page.
const (
	PlaceholderAssetVersion = "__ASSET_VERSION__"
	PlaceholderHead         = "__HEAD__"
	PlaceholderFooter       = "__FOOTER__"
)

// Pages renders HTML pages from a pages directory, filling in the asset
// version and the shared head and footer partials. Files are read on every
// request so edits show up without a restart.
type Pages struct {
	fsys         fs.FS
	assetVersion string
}

// NewPages serves pages from dir.
func NewPages(dir, assetVersion string) *Pages {
	return &Pages{fsys: os.DirFS(dir), assetVersion: assetVersion}
}

// NewPagesFS serves pages from fsys.
func NewPagesFS(fsys fs.FS, assetVersion string) *Pages {
	return &Pages{fsys: fsys, assetVersion: assetVersion}
}

// Render reads the page at name, relative to the pages directory, and
// substitutes the placeholders. Missing partials render as empty strings.
func (p *Pages) Render(name string) ([]byte, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	page, err := fs.ReadFile(p.fsys, name)
	if err != nil {
		return nil, err
	}
	return p.Substitute(page), nil
}

// Substitute fills the placeholders of an already loaded page.
func (p *Pages) Substitute(page []byte) []byte {
	return []byte(strings.NewReplacer(
		PlaceholderAssetVersion, p.assetVersion,
		PlaceholderHead, p.partial("head.html"),
		PlaceholderFooter, p.partial("footer.html"),
	).Replace(string(page)))
}

func (p *Pages) partial(name string) string {
	b, err := fs.ReadFile(p.fsys, path.Join("_partials", name))
	if err != nil {
		return ""
	}
	return string(b)
}

// cleanName rejects names that would escape the pages directory.
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	if !fs.ValidPath(name) {
		return "", fs.ErrNotExist
	}
	return name, nil
}

// HTMLName maps an extensionless page name to its file: "run" -> "run.html".
// The second result is false when name already names a file.
func HTMLName(name string) (string, bool) {
	if path.Ext(name) != "" {
		return name, false
	}
	return name + ".html", true
}

var modulePage = template.Must(template.New("module").Parse(`<!doctype html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
__HEAD__
</head>
<body>
<main id="{{.RootID}}" data-module="{{.Name}}">{{.Body}}</main>
__FOOTER__
</body>
</html>
`))

// ModulePage is the data of a server-rendered module page.
type ModulePage struct {
	Title  string
	Name   string
	RootID string
	Body   template.HTML
}

// ModuleEntry is one row of the module index.
type ModuleEntry struct {
	Name   string
	Title  string
	Routes int
}

var moduleIndex = template.Must(template.New("index").Parse(
	`<table class="yl-modules"><thead><tr><th>Module</th><th>Routes</th></tr></thead><tbody>` +
		`{{range .Entries}}<tr><td><a href="/modules/{{.Name}}">{{.Title}}</a></td><td>{{.Routes}}</td></tr>{{end}}` +
		`</tbody></table>{{.Pager}}`))

// RenderModuleIndex renders one page of the module index with its
// pagination bar.
func RenderModuleIndex(entries []ModuleEntry, pg ui.Page) template.HTML {
	var sb strings.Builder
	if err := moduleIndex.Execute(&sb, struct {
		Entries []ModuleEntry
		Pager   template.HTML
	}{entries, pg.Render()}); err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(sb.String())
}

// RenderModule wraps a mounted module's markup in a full page.
func (p *Pages) RenderModule(data ModulePage) ([]byte, error) {
	var buf bytes.Buffer
	if err := modulePage.Execute(&buf, data); err != nil {
		return nil, err
	}
	return p.Substitute(buf.Bytes()), nil
}
