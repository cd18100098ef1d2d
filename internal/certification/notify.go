package certification

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Notice describes a certificate email.
type Notice struct {
	ToName            string
	ToEmail           string
	CourseTitle       string
	CertificateNumber string
	VerifyURL         string
}

// Notifier tells a learner about a new certificate.
type Notifier interface {
	CertificateIssued(ctx context.Context, n Notice) error
}

// NopNotifier sends nothing.
type NopNotifier struct{}

func (NopNotifier) CertificateIssued(context.Context, Notice) error { return nil }

const defaultSendGridHost = "https://api.sendgrid.com"

// SendGridNotifier mails notices through the SendGrid v3 API.
type SendGridNotifier struct {
	apiKey   string
	host     string
	fromName string
	from     string
}

// SendGridOption configures a SendGridNotifier.
type SendGridOption func(*SendGridNotifier)

// WithSendGridHost overrides the API host.
func WithSendGridHost(host string) SendGridOption {
	return func(n *SendGridNotifier) { n.host = host }
}

// NewSendGridNotifier creates a notifier sending as from.
func NewSendGridNotifier(apiKey, from string, opts ...SendGridOption) *SendGridNotifier {
	n := &SendGridNotifier{
		apiKey:   apiKey,
		host:     defaultSendGridHost,
		fromName: "Film Forge Academy",
		from:     from,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *SendGridNotifier) CertificateIssued(ctx context.Context, notice Notice) error {
	subject := fmt.Sprintf("Your certificate for %s", notice.CourseTitle)
	plain := fmt.Sprintf(
		"Congratulations %s!\n\nYou earned the %s certificate (%s).\nAnyone can verify it at %s\n",
		notice.ToName, notice.CourseTitle, notice.CertificateNumber, notice.VerifyURL,
	)
	body := fmt.Sprintf(
		`<p>Congratulations %s!</p><p>You earned the <strong>%s</strong> certificate (%s).</p><p><a href="%s">Verify certificate</a></p>`,
		html.EscapeString(notice.ToName), html.EscapeString(notice.CourseTitle),
		html.EscapeString(notice.CertificateNumber), html.EscapeString(notice.VerifyURL),
	)

	msg := mail.NewSingleEmail(
		mail.NewEmail(n.fromName, n.from),
		subject,
		mail.NewEmail(notice.ToName, notice.ToEmail),
		plain,
		body,
	)

	req := sendgrid.GetRequest(n.apiKey, "/v3/mail/send", n.host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(msg)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
