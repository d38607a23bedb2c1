package sendgrid

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	DefaultFromEmail string
	DefaultFromName  string
	MaxRetries       int
	RetryBackoff     time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		DefaultFromEmail: envutil.String("SENDGRID_FROM_EMAIL", ""),
		DefaultFromName:  envutil.String("SENDGRID_FROM_NAME", "Course Market"),
		MaxRetries:       envutil.Int("SENDGRID_MAX_RETRIES", 3),
		RetryBackoff:     envutil.Duration("SENDGRID_RETRY_BACKOFF", time.Second),
	}
}

// sender is satisfied by *sendgrid.Client.
type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type client struct {
	log    *logger.Logger
	cfg    Config
	sender sender
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.DefaultFromEmail) == "" {
		return nil, fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	return newClient(log, cfg, sg.NewSendClient(cfg.APIKey)), nil
}

func newClient(log *logger.Logger, cfg Config, s sender) *client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &client{log: log.With("client", "SendGridClient"), cfg: cfg, sender: s}
}

type EmailAddress struct {
	Email string
	Name  string
}

type SendEmailRequest struct {
	From       EmailAddress
	To         []EmailAddress
	Subject    string
	Text       string
	HTML       string
	Categories []string
	CustomArgs map[string]string
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	if body == "" {
		body = "<empty body>"
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, body)
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	msg, err := c.build(req)
	if err != nil {
		return nil, err
	}

	backoff := c.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.sender.SendWithContext(ctx, msg)
		if err == nil && resp != nil && resp.StatusCode < 300 {
			return &SendEmailResult{StatusCode: resp.StatusCode, MessageID: header(resp, "X-Message-Id")}, nil
		}
		if err == nil {
			if resp == nil {
				err = &HTTPError{StatusCode: 0}
			} else {
				err = &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body}
			}
		}
		if !retryable(resp, err) || attempt >= c.cfg.MaxRetries {
			return nil, err
		}
		c.log.Warn("sendgrid send retrying",
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", backoff.String(),
			"error", err,
		)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
}

func (c *client) build(req SendEmailRequest) (*mail.SGMailV3, error) {
	from := req.From
	if strings.TrimSpace(from.Email) == "" {
		from = EmailAddress{Email: c.cfg.DefaultFromEmail, Name: c.cfg.DefaultFromName}
	}
	if strings.TrimSpace(from.Email) == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("sendgrid: Subject required")
	}
	text, html := strings.TrimSpace(req.Text), strings.TrimSpace(req.HTML)
	if text == "" && html == "" {
		return nil, fmt.Errorf("sendgrid: Text or HTML content required")
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(strings.TrimSpace(from.Name), strings.TrimSpace(from.Email)))
	m.Subject = subject

	p := mail.NewPersonalization()
	for _, to := range req.To {
		addr := strings.TrimSpace(to.Email)
		if addr == "" {
			continue
		}
		p.AddTos(mail.NewEmail(strings.TrimSpace(to.Name), addr))
	}
	if len(p.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	for k, v := range req.CustomArgs {
		p.SetCustomArg(k, v)
	}
	m.AddPersonalizations(p)

	// text/plain must precede text/html
	if text != "" {
		m.AddContent(mail.NewContent("text/plain", text))
	}
	if html != "" {
		m.AddContent(mail.NewContent("text/html", html))
	}
	if len(req.Categories) > 0 {
		m.AddCategories(req.Categories...)
	}
	return m, nil
}

func retryable(resp *rest.Response, err error) bool {
	if resp == nil {
		// transport failure
		return err != nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

func header(resp *rest.Response, key string) string {
	if resp == nil || resp.Headers == nil {
		return ""
	}
	for k, v := range resp.Headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	}
	return ""
}
