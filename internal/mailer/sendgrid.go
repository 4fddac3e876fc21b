package mailer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// DefaultSendGridEndpoint is the SendGrid v3 mail send endpoint.
const DefaultSendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

const sendTimeout = 10 * time.Second

// SendGrid delivers magic links through the SendGrid transactional API.
type SendGrid struct {
	cfg    Config
	client *sendgrid.Client
}

// NewSendGrid returns a new SendGrid mailer.
func NewSendGrid(cfg Config) (*SendGrid, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid api key not found")
	}
	if cfg.From == "" {
		return nil, errors.New("mail sender not found")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSendGridEndpoint
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}

	client := sendgrid.NewSendClient(cfg.APIKey)
	client.BaseURL = cfg.Endpoint

	return &SendGrid{
		cfg:    cfg,
		client: client,
	}, nil
}

// SendMagicLink implements Mailer.
// Any non-2xx response is an error.
func (s *SendGrid) SendMagicLink(ctx context.Context, m MagicLink) error {
	text, html, err := Render(Params{
		Email:      m.To,
		SiteName:   s.cfg.SiteName,
		Link:       m.Link,
		Expiration: m.Expiration,
	})
	if err != nil {
		return err
	}

	message := mail.NewV3MailInit(
		mail.NewEmail(s.cfg.SiteName, s.cfg.From),
		s.cfg.Subject,
		mail.NewEmail("", m.To),
		mail.NewContent("text/plain", text),
		mail.NewContent("text/html", html),
	)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return errors.Wrap(err, "could not send mail")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := resp.Body
		if len(body) > 512 {
			body = body[:512]
		}
		return errors.Errorf("mail delivery failed with status %d: %s", resp.StatusCode, strings.TrimSpace(body))
	}
	return nil
}
