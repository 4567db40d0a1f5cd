package page

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"

	sprig "github.com/go-task/slim-sprig/v3"
)

//go:embed page.html.tmpl
var defaultTemplate string

// Data is what page template gets to work with.
type Data struct {
	Title      string
	Stylesheet string
	Body       string
	Categories []string
	SourceFile string
	Generator  string
}

// Renderer produces complete HTML pages.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses template from path or the built-in one when path is
// empty.
func NewRenderer(path string) (*Renderer, error) {
	text := defaultTemplate
	name := "page.html.tmpl"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read page template: %w", err)
		}
		text, name = string(data), path
	}

	funcMap := sprig.FuncMap()
	funcMap["raw"] = func(s string) template.HTML {
		return template.HTML(s) //nolint:gosec
	}

	tmpl, err := template.New(name).Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page template %s: %w", name, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render expands template with data.
func (r *Renderer) Render(data Data) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := r.tmpl.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("unable to render page %q: %w", data.Title, err)
	}
	return buf.Bytes(), nil
}
