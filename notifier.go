package mailauth

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"text/template"
	"time"
)

// Notifier delivers a plaintext login code to a user out-of-band, typically
// by email. Delivery failures are reported to the caller but never retried.
type Notifier interface {
	Notify(ctx context.Context, email, code string) error
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(ctx context.Context, email, code string) error

func (f NotifierFunc) Notify(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

// ConsoleNotifier is a development implementation that logs codes to console.
type ConsoleNotifier struct{}

func (c *ConsoleNotifier) Notify(ctx context.Context, email, code string) error {
	log.Printf("\n=== EMAIL: Login code ===")
	log.Printf("To: %s", email)
	log.Printf("Subject: Your Login Code")
	log.Printf("Body: Use this code to log in: %s", code)
	log.Printf("=========================\n")
	return nil
}

// MessageParams is passed as data when executing the message template.
type MessageParams struct {
	Email          string
	SiteName       string
	Code           string
	CodeExpiration time.Duration

	// LoginURL is the magic link: BaseURL with the code attached as the
	// login_code query parameter.
	LoginURL string
}

// DefaultMessageTemplate is the default for TemplateNotifier.Template.
const DefaultMessageTemplate = `Hi {{.Email}},

This is your login code for {{.SiteName}}:

{{.Code}}

Alternatively, you can log in by opening this link:

{{.LoginURL}}

The code is valid for {{printf "%.f" .CodeExpiration.Minutes}} minutes.

If you did not request a login code, you can ignore this message.
`

// TemplateNotifier renders a login-code message from a template and hands it
// to a send function. It composes the magic-link URL carrying the code in the
// login_code query parameter.
type TemplateNotifier struct {
	// Send delivers the rendered message. Required.
	Send func(ctx context.Context, to, subject, body string) error

	// BaseURL of the application, used to build the magic link. Required.
	BaseURL string

	// SiteName shown in the message. Defaults to BaseURL.
	SiteName string

	// Subject line. Defaults to "Your Login Code".
	Subject string

	// Template for the message body. Defaults to DefaultMessageTemplate.
	Template *template.Template

	// CodeExpiration shown in the message. Defaults to
	// DefaultCodeExpiration; keep it in sync with the CodeIssuer.
	CodeExpiration time.Duration
}

func (n *TemplateNotifier) Notify(ctx context.Context, email, code string) error {
	if n.Send == nil {
		return fmt.Errorf("notifier send function not configured")
	}

	siteName := n.SiteName
	if siteName == "" {
		siteName = n.BaseURL
	}
	subject := n.Subject
	if subject == "" {
		subject = "Your Login Code"
	}
	expiration := n.CodeExpiration
	if expiration == 0 {
		expiration = DefaultCodeExpiration
	}
	tmpl := n.Template
	if tmpl == nil {
		tmpl = defaultMessageTemplate
	}

	params := MessageParams{
		Email:          email,
		SiteName:       siteName,
		Code:           code,
		CodeExpiration: expiration,
		LoginURL:       LoginURL(n.BaseURL, code),
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, params); err != nil {
		return fmt.Errorf("failed to render login message: %w", err)
	}

	return n.Send(ctx, email, subject, body.String())
}

var defaultMessageTemplate = template.Must(template.New("login-code").Parse(DefaultMessageTemplate))

// LoginCodeParam is the query parameter carrying a login code in magic-link
// URLs. The name is a wire contract; issued links embed it and the HTTP layer
// honors it on any incoming page URL.
const LoginCodeParam = "login_code"

// LoginURL composes the magic-link URL for a code: baseURL with the code as
// the login_code query parameter.
func LoginURL(baseURL, code string) string {
	return fmt.Sprintf("%s/?%s=%s", baseURL, LoginCodeParam, url.QueryEscape(code))
}
