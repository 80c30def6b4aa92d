// Package prompts renders crew system prompts.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Template is a named text/template prompt. Parsing happens on first use.
type Template struct {
	Name    string
	Content string

	once   sync.Once
	parsed *template.Template
	err    error
}

// New creates a new template
func New(name string, content string) *Template {
	return &Template{Name: name, Content: content}
}

// Render renders the template with the given data. Missing keys are an error.
func (t *Template) Render(data map[string]interface{}) (string, error) {
	t.once.Do(func() {
		t.parsed, t.err = template.New(t.Name).Option("missingkey=error").Parse(t.Content)
	})
	if t.err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", t.Name, t.err)
	}

	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.Name, err)
	}

	return buf.String(), nil
}

// IsTemplate reports whether content uses template actions
func IsTemplate(content string) bool {
	return strings.Contains(content, "{{")
}

// RenderString renders content as a one-off template. Plain text is returned unchanged.
func RenderString(name, content string, data map[string]interface{}) (string, error) {
	if !IsTemplate(content) {
		return content, nil
	}
	return New(name, content).Render(data)
}
