package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/sendgrid"
)

const (
	KindEnrollmentConfirmed = "enrollment_confirmed"
	KindPaymentReceipt      = "payment_receipt"
	KindPaymentRefunded     = "payment_refunded"
	KindCourseCompleted     = "course_completed"
)

type Recipient struct {
	Email string
	Name  string
}

type Message struct {
	Kind    string
	To      Recipient
	Subject string
	Text    string
	HTML    string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type noop struct {
	log *logger.Logger
}

func NewNoop(log *logger.Logger) Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &noop{log: log.With("notifier", "noop")}
}

func (n *noop) Notify(_ context.Context, msg Message) error {
	n.log.Debug("notification dropped (no provider configured)", "kind", msg.Kind, "email", msg.To.Email)
	return nil
}

type emailNotifier struct {
	log    *logger.Logger
	client sendgrid.Client
}

func NewEmail(log *logger.Logger, client sendgrid.Client) Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &emailNotifier{log: log.With("notifier", "sendgrid"), client: client}
}

func (n *emailNotifier) Notify(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To.Email)
	if to == "" {
		return nil
	}
	res, err := n.client.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: to, Name: msg.To.Name}},
		Subject:    msg.Subject,
		Text:       msg.Text,
		HTML:       msg.HTML,
		Categories: []string{msg.Kind},
	})
	if err != nil {
		return fmt.Errorf("send %s email: %w", msg.Kind, err)
	}
	n.log.Debug("notification sent", "kind", msg.Kind, "email", to, "message_id", res.MessageID)
	return nil
}

func EnrollmentConfirmed(to Recipient, courseTitle string) Message {
	return Message{
		Kind:    KindEnrollmentConfirmed,
		To:      to,
		Subject: "You're enrolled: " + courseTitle,
		Text:    fmt.Sprintf("Hi %s,\n\nYou are now enrolled in %q. You can start learning right away.", greeting(to), courseTitle),
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>You are now enrolled in <strong>%s</strong>. You can start learning right away.</p>",
			html.EscapeString(greeting(to)), html.EscapeString(courseTitle)),
	}
}

type Receipt struct {
	ReceiptNumber string
	InvoiceNumber string
	Amount        string
	Currency      string
	Description   string
}

func PaymentReceipt(to Recipient, r Receipt) Message {
	text := fmt.Sprintf("Hi %s,\n\nWe received your payment of %s %s for %s.\nReceipt: %s\nInvoice: %s",
		greeting(to), r.Amount, r.Currency, r.Description, r.ReceiptNumber, r.InvoiceNumber)
	body := fmt.Sprintf("<p>Hi %s,</p><p>We received your payment of <strong>%s %s</strong> for %s.</p><p>Receipt: %s<br>Invoice: %s</p>",
		html.EscapeString(greeting(to)), html.EscapeString(r.Amount), html.EscapeString(r.Currency),
		html.EscapeString(r.Description), html.EscapeString(r.ReceiptNumber), html.EscapeString(r.InvoiceNumber))
	return Message{Kind: KindPaymentReceipt, To: to, Subject: "Payment receipt " + r.ReceiptNumber, Text: text, HTML: body}
}

func PaymentRefunded(to Recipient, r Receipt) Message {
	text := fmt.Sprintf("Hi %s,\n\nYour payment of %s %s (receipt %s) has been refunded.", greeting(to), r.Amount, r.Currency, r.ReceiptNumber)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your payment of <strong>%s %s</strong> (receipt %s) has been refunded.</p>",
		html.EscapeString(greeting(to)), html.EscapeString(r.Amount), html.EscapeString(r.Currency), html.EscapeString(r.ReceiptNumber))
	return Message{Kind: KindPaymentRefunded, To: to, Subject: "Refund processed", Text: text, HTML: body}
}

func CourseCompleted(to Recipient, courseTitle string) Message {
	return Message{
		Kind:    KindCourseCompleted,
		To:      to,
		Subject: "Course completed: " + courseTitle,
		Text:    fmt.Sprintf("Congratulations %s,\n\nYou completed %q.", greeting(to), courseTitle),
		HTML: fmt.Sprintf("<p>Congratulations %s,</p><p>You completed <strong>%s</strong>.</p>",
			html.EscapeString(greeting(to)), html.EscapeString(courseTitle)),
	}
}

func greeting(to Recipient) string {
	if n := strings.TrimSpace(to.Name); n != "" {
		return n
	}
	return "there"
}
