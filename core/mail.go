package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	tmplFS      fs.FS
	textTmpls   *texttmpl.Template
	htmlTmpls   *htmltmpl.Template
	tmplInit    sync.Once
	tmplInitErr error
)

// InitMailTemplates points the mailer at the (embedded) template FS.
// Templates are parsed lazily on first render.
func InitMailTemplates(fsys fs.FS) {
	tmplFS = fsys
}

func loadTemplates() error {
	tmplInit.Do(func() {
		if tmplFS == nil {
			return
		}
		if textTmpls, tmplInitErr = texttmpl.ParseFS(tmplFS, "templates/*.txt.tmpl"); tmplInitErr != nil {
			tmplInitErr = errors.Wrap(tmplInitErr, "parsing text templates")
			return
		}
		if htmlTmpls, tmplInitErr = htmltmpl.ParseFS(tmplFS, "templates/*.html.tmpl"); tmplInitErr != nil {
			tmplInitErr = errors.Wrap(tmplInitErr, "parsing html templates")
		}
	})
	return tmplInitErr
}

type (
	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData wraps template data with app-wide context.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

// Render resolves the message contents: the plain BodyStr is used as-is,
// otherwise TemplateName is rendered against the template FS.
func (m *EmailMessage) Render(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}
	if err := loadTemplates(); err != nil {
		return err
	}
	data.Data = m.TemplateData

	if textTmpls != nil {
		if tmpl := textTmpls.Lookup(m.TemplateName + ".txt.tmpl"); tmpl != nil {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return errors.Wrapf(err, "rendering %s.txt.tmpl", m.TemplateName)
			}
			m.TextContent = buf.String()
		}
	}
	if htmlTmpls != nil {
		if tmpl := htmlTmpls.Lookup(m.TemplateName + ".html.tmpl"); tmpl != nil {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return errors.Wrapf(err, "rendering %s.html.tmpl", m.TemplateName)
			}
			m.HTMLContent = buf.String()
		}
	}
	return nil
}
