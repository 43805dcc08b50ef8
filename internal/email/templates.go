package email

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

// Message es un mail ya renderizado.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type templateSet struct {
	subject *texttpl.Template
	text    *texttpl.Template
	html    *htmltpl.Template
}

// Templates renderiza los mensajes por Template.
type Templates struct {
	set map[Template]templateSet
}

type source struct {
	subject, text, html string
}

var builtin = map[Template]source{
	TemplateOTPLogin: {
		subject: `Tu código de acceso`,
		text:    "Tu código de acceso es {{.Code}}.\nVence en {{.TTL}}.\n",
		html:    `<p>Tu código de acceso es <strong>{{.Code}}</strong>.</p><p>Vence en {{.TTL}}.</p>`,
	},
	TemplatePasswordReset: {
		subject: `Restablecer contraseña`,
		text:    "Usá este token para restablecer tu contraseña: {{.Token}}\n{{if .Link}}{{.Link}}\n{{end}}Vence en {{.TTL}}.\n",
		html:    `<p>Usá este token para restablecer tu contraseña: <code>{{.Token}}</code></p>{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>{{end}}<p>Vence en {{.TTL}}.</p>`,
	},
	TemplateUserInvite: {
		subject: `Te invitaron a {{.AppName}}`,
		text:    "Te invitaron a {{.AppName}}.\nUsuario: {{.Email}}\nContraseña temporal: {{.Password}}\n",
		html:    `<p>Te invitaron a <strong>{{.AppName}}</strong>.</p><p>Usuario: {{.Email}}<br>Contraseña temporal: <code>{{.Password}}</code></p>`,
	},
}

// DefaultTemplates compila los templates incluidos.
func DefaultTemplates() *Templates {
	t := &Templates{set: make(map[Template]templateSet, len(builtin))}
	for name, src := range builtin {
		t.set[name] = templateSet{
			subject: texttpl.Must(texttpl.New(string(name) + "_subject").Parse(src.subject)),
			text:    texttpl.Must(texttpl.New(string(name) + "_txt").Parse(src.text)),
			html:    htmltpl.Must(htmltpl.New(string(name) + "_html").Parse(src.html)),
		}
	}
	return t
}

// Render arma el Message para tpl.
func (t *Templates) Render(to string, tpl Template, data map[string]any) (Message, error) {
	ts, ok := t.set[tpl]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, tpl)
	}
	if data == nil {
		data = map[string]any{}
	}
	var subj, txt, html bytes.Buffer
	if err := ts.subject.Execute(&subj, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", tpl, err)
	}
	if err := ts.text.Execute(&txt, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", tpl, err)
	}
	if err := ts.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", tpl, err)
	}
	return Message{To: to, Subject: subj.String(), TextBody: txt.String(), HTMLBody: html.String()}, nil
}
