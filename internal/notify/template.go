package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `SOS alert in your area.
Location: {{.Latitude}}, {{.Longitude}}
Time: {{.Time}}
Open the app for details.`

// TemplateData provides fields for rendering push content.
type TemplateData struct {
	AlertID   string
	Latitude  string
	Longitude string
	Time      string
}

// Template renders push message bodies.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a push template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("push-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("push template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
