package console

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ylai/autoplatform/httpclient"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderMarkdown converts task documentation to HTML. Raw HTML in the
// source is escaped.
func RenderMarkdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// DocFile maps a doc id to its file name: "1", "task_1" and "task_1.md"
// all name task_1.md.
func DocFile(id string) string {
	if strings.HasSuffix(id, ".md") {
		return id
	}
	if !strings.HasPrefix(id, "task_") {
		id = "task_" + id
	}
	return id + ".md"
}

// Doc is a rendered task document.
type Doc struct {
	ID       string
	Markdown string
	HTML     template.HTML
}

// Doc fetches the markdown of task document id and renders it.
func (c *Console) Doc(ctx context.Context, id string, opts ...httpclient.RequestOption) (Doc, error) {
	env, err := c.client.Get(ctx, PathDocs+url.PathEscape(id), opts...)
	if err != nil {
		return Doc{}, err
	}
	return c.render(id, []byte(env.Text()))
}

// StatusDoc renders the project status markdown from /api/status, if the
// backend provides one.
func (c *Console) StatusDoc(ctx context.Context) (Doc, error) {
	status, err := httpclient.GetJSON[struct {
		Markdown string `json:"markdown"`
	}](ctx, c.client, PathStatus)
	if err != nil {
		return Doc{}, err
	}
	return c.render("status", []byte(status.Markdown))
}

func (c *Console) render(id string, md []byte) (Doc, error) {
	out, err := RenderMarkdown(md)
	if err != nil {
		return Doc{}, err
	}
	return Doc{ID: id, Markdown: string(md), HTML: out}, nil
}
