package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	texttemplate "text/template"
	"time"

	"birdcount/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// messageFuncs are shared by the html and text message templates.
var messageFuncs = map[string]any{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") },
}

// templateRenderer renders roster notifications such as the leader digest.
// A message named "x" is made of x_subject.txt, x.html and x.txt under templates/.
type templateRenderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewTemplateRenderer parses every embedded message template once. It panics
// if a template does not parse, which only a broken build can cause.
func NewTemplateRenderer() domain.EmailTemplateRenderer {
	return &templateRenderer{
		html: template.Must(template.New("messages").Funcs(template.FuncMap(messageFuncs)).ParseFS(templateFS, "templates/*.html")),
		text: texttemplate.Must(texttemplate.New("messages").Funcs(texttemplate.FuncMap(messageFuncs)).ParseFS(templateFS, "templates/*.txt")),
	}
}

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// Render builds the subject and both bodies of the named message for data.
func (r *templateRenderer) Render(message string, data any) (subject, htmlBody, textBody string, err error) {
	if subject, err = execute(r.text, message+"_subject.txt", data); err != nil {
		return "", "", "", fmt.Errorf("%s message subject: %w", message, err)
	}
	if htmlBody, err = execute(r.html, message+".html", data); err != nil {
		return "", "", "", fmt.Errorf("%s message html body: %w", message, err)
	}
	if textBody, err = execute(r.text, message+".txt", data); err != nil {
		return "", "", "", fmt.Errorf("%s message text body: %w", message, err)
	}
	return strings.TrimSpace(subject), htmlBody, textBody, nil
}

func execute(set executor, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
