package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"storefront/internal/config"

	gomail "github.com/wneessen/go-mail"
)

const TemplateConfirmOrder = "order/confirm_order"

//go:embed templates
var templateFS embed.FS

// テンプレート名 -> 解析済みテンプレート
func loadTemplates() (map[string]*template.Template, error) {
	out := map[string]*template.Template{}
	for _, name := range []string{TemplateConfirmOrder} {
		t, err := template.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse mail template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// Render は件名と本文(HTML)を返す。site_nameは自動で入る
func (s *Sender) Render(name string, data map[string]string) (string, string, error) {
	t, ok := s.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}
	ctx := map[string]string{"site_name": s.siteName}
	for k, v := range data {
		ctx[k] = v
	}

	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", ctx); err != nil {
		return "", "", err
	}
	if err := t.ExecuteTemplate(&body, "body", ctx); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

// Sender はSMTPでメールを送る。
type Sender struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	siteName  string
	templates map[string]*template.Template
}

func NewSender(cfg config.Config) (*Sender, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Sender{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		username:  cfg.SMTPUser,
		password:  cfg.SMTPPassword,
		from:      cfg.SMTPFrom,
		siteName:  cfg.SiteName,
		templates: tmpl,
	}, nil
}

func (s *Sender) Send(ctx context.Context, to string, name string, data map[string]string) error {
	subject, body, err := s.Render(name, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}
	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
