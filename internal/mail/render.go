package mail

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var files embed.FS

// Renderer turns a job into subject and body text.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	entries, err := files.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	r := &Renderer{templates: make(map[string]*template.Template, len(entries))}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".tmpl")
		tmpl, err := template.New(name).Option("missingkey=zero").ParseFS(files, "templates/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the "subject" and "body" blocks of the job's template.
func (r *Renderer) Render(job Job) (string, string, error) {
	tmpl, ok := r.templates[job.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", job.Template)
	}
	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", job.Data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", job.Data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
