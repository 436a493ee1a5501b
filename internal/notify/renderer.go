package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns a named template and its data into an HTML body.
type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

// TemplateRenderer serves templates/<name>.html. A key referenced by the
// template but absent from data is an error.
type TemplateRenderer struct {
	tmpl *template.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	return NewTemplateRendererFS(templateFS, "templates/*.html")
}

func NewTemplateRendererFS(fsys fs.FS, pattern string) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Option("missingkey=error").ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{tmpl: tmpl}, nil
}

func (r *TemplateRenderer) Render(name string, data map[string]any) (string, error) {
	file := name
	if !strings.HasSuffix(file, ".html") {
		file += ".html"
	}
	t := r.tmpl.Lookup(file)
	if t == nil {
		return "", fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
