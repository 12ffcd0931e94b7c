package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Имена шаблонов писем.
const (
	TemplateNewOpportunity   = "nova_oportunidade"
	TemplateWinner           = "vencedor"
	TemplateParticipantThank = "agradecimento"
	TemplateWinnerDepartment = "vencedor_secretaria"
	TemplateQuestionAnswered = "pergunta_respondida"
)

//go:embed templates.yaml
var defaultCatalog []byte

type templateSource struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *htmltemplate.Template
}

// Catalog - набор шаблонов писем: тема как text/template, тело как html/template.
type Catalog struct {
	templates map[string]compiled
}

// DefaultCatalog разбирает встроенный templates.yaml.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var sources map[string]templateSource
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	c := &Catalog{templates: make(map[string]compiled, len(sources))}
	for name, src := range sources {
		subj, err := template.New(name).Option("missingkey=error").Parse(src.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		body, err := htmltemplate.New(name).Option("missingkey=error").Parse(src.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		c.templates[name] = compiled{subject: subj, body: body}
	}
	return c, nil
}

// Render возвращает тему и HTML-тело письма.
func (c *Catalog) Render(name string, data map[string]string) (subject, body string, err error) {
	t, ok := c.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}

	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := t.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return singleLine(sb.String()), bb.String(), nil
}

// singleLine схлопывает пробельные символы: тема письма - одна строка заголовка.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
