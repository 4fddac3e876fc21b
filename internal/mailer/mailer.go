package mailer

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// ProviderSendGrid delivers mails through the SendGrid v3 API.
	ProviderSendGrid = "sendgrid"
	// ProviderLog only logs the magic link, for development.
	ProviderLog = "log"

	// DefaultSubject is the default for Config.Subject.
	DefaultSubject = "Focal Pics Sign-in Link"
	// DefaultSiteName is the default for Config.SiteName.
	DefaultSiteName = "Focal"
)

// DefaultTemplate is the plain text body of the magic-link mail.
const DefaultTemplate = `Hi {{.Email}},

Follow this link to sign into {{.SiteName}}:

{{.Link}}

The link is valid for {{printf "%.f" .Expiration.Minutes}} minutes and can be used once.

If you did not request a sign-in link, you can ignore this email.
`

// DefaultHTMLTemplate is the HTML body of the magic-link mail.
const DefaultHTMLTemplate = `<h1>Sign into {{.SiteName}}</h1>
<p><a href="{{.Link}}">Sign in</a></p>
<p>The link is valid for {{printf "%.f" .Expiration.Minutes}} minutes and can be used once.</p>`

var (
	textTemplate = template.Must(template.New("magic-link").Parse(DefaultTemplate))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("magic-link").Parse(DefaultHTMLTemplate))
)

type (
	// A MagicLink is a sign-in link to deliver.
	MagicLink struct {
		To         string
		Link       string
		Expiration time.Duration
	}

	// A Mailer delivers magic links.
	Mailer interface {
		SendMagicLink(ctx context.Context, m MagicLink) error
	}

	// Config holds the mailer configuration.
	Config struct {
		Provider string
		APIKey   string
		Endpoint string
		From     string
		Subject  string
		SiteName string
	}

	// Params is passed as data when executing the mail templates.
	Params struct {
		Email      string
		SiteName   string
		Link       string
		Expiration time.Duration
	}
)

// New returns the mailer of the configured provider.
func New(cfg Config) (Mailer, error) {
	switch cfg.Provider {
	case ProviderSendGrid:
		return NewSendGrid(cfg)
	case "", ProviderLog:
		return &Log{SiteName: cfg.SiteName}, nil
	default:
		return nil, errors.Errorf("unsupported mail provider: %s", cfg.Provider)
	}
}

// Render executes the text and HTML templates.
func Render(p Params) (text, html string, err error) {
	var b bytes.Buffer
	if err = textTemplate.Execute(&b, p); err != nil {
		return "", "", errors.Wrap(err, "could not render text template")
	}
	text = b.String()

	b.Reset()
	if err = htmlTemplate.Execute(&b, p); err != nil {
		return "", "", errors.Wrap(err, "could not render html template")
	}
	return text, b.String(), nil
}

// Log is a Mailer logging the magic link instead of sending it.
type Log struct {
	SiteName string
}

// SendMagicLink implements Mailer.
func (l *Log) SendMagicLink(_ context.Context, m MagicLink) error {
	logrus.WithFields(logrus.Fields{
		"site": l.SiteName,
		"to":   m.To,
		"link": m.Link,
	}).Info("mailer: magic link")
	return nil
}
