// Package templates renders email bodies from named templates. Templates are
// compiled once at init; Render produces subject, text, and HTML variants.
package templates

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	"strings"
	texttpl "text/template"
	"time"
)

// Template names.
const (
	Welcome = "welcome"
)

// defaultFn supports pipe usage: {{ .Name | default "there" }}
func defaultFn(fallback any, value any) any {
	if s, ok := value.(string); ok {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	if value == nil {
		return fallback
	}
	return value
}

func baseFuncs() map[string]any {
	return map[string]any{
		"now":        func() time.Time { return time.Now().UTC() },
		"formatTime": func(t time.Time, layout string) string { return t.Format(layout) },
		"upper":      strings.ToUpper,
		"default":    defaultFn,
	}
}

var (
	htmlFuncMap = htmpl.FuncMap(baseFuncs())
	textFuncMap = texttpl.FuncMap(baseFuncs())
)

const (
	welcomeSubject = `Welcome to {{ .AppName | default "our service" }}!`

	welcomeText = `Hi {{ .Name | default "there" }},

Your account is ready. You can sign in with your username or email address.

Thanks,
The {{ .AppName | default "service" }} team
`

	welcomeHTML = `<html><body>
<p>Hi {{ .Name | default "there" }},</p>
<p>Your account is ready. You can sign in with your username or email address.</p>
<p>Thanks,<br>The {{ .AppName | default "service" }} team</p>
</body></html>`
)

type templateSet struct {
	subject *texttpl.Template
	text    *texttpl.Template
	html    *htmpl.Template
}

var sets = map[string]templateSet{
	Welcome: {
		subject: texttpl.Must(texttpl.New("welcome.subject").Funcs(textFuncMap).Parse(welcomeSubject)),
		text:    texttpl.Must(texttpl.New("welcome.text").Funcs(textFuncMap).Parse(welcomeText)),
		html:    htmpl.Must(htmpl.New("welcome.html").Funcs(htmlFuncMap).Parse(welcomeHTML)),
	},
}

// Render renders subject, text, and HTML bodies for a named template.
func Render(name string, data any) (subject string, text string, html string, err error) {
	set, ok := sets[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err = set.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec subject %q: %w", name, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err = set.text.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec text %q: %w", name, err)
	}
	text = buf.String()

	buf.Reset()
	if err = set.html.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec html %q: %w", name, err)
	}
	return subject, text, buf.String(), nil
}
