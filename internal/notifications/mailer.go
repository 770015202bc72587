package notifications

import (
	"bytes"
	"fmt"
	"net/smtp"
	"os"
	"text/template"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
)

const orderPlacedSubject = "Order Confirmation"

// CRLF line endings per RFC 5322; smtp.SendMail rejects bare LF in headers.
const orderPlacedBody = `Thank you for your order!

Order number: {{.OrderNumber}}
Payment method: {{.PaymentMethod}}
Shipping address: {{.ShippingAddress}}
{{- if .GiftMessage}}
Gift message: {{.GiftMessage}}
{{- end}}

Items:
{{- range .Items}}
  - {{.ProductName}} x{{.Quantity}} @ {{.Price}} = {{.Subtotal}}
{{- end}}

Total: {{.TotalAmount}}

We are processing your order now.
`

var orderPlacedTemplate = template.Must(template.New("order_placed").Parse(orderPlacedBody))

// Mailer sends plain-text mail over SMTP with PLAIN auth.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewMailerFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD
// and SMTP_FROM.
func NewMailerFromEnv() (*Mailer, error) {
	m := &Mailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
	}
	if m.host == "" || m.port == "" {
		return nil, fmt.Errorf("SMTP_HOST and SMTP_PORT must be set")
	}
	if m.from == "" {
		m.from = "no-reply@example.com"
	}
	return m, nil
}

// SendOrderPlaced renders the order summary and mails it to the buyer.
func (m *Mailer) SendOrderPlaced(to string, event kafka.OrderPlacedEvent) error {
	var body bytes.Buffer
	if err := orderPlacedTemplate.Execute(&body, event); err != nil {
		return fmt.Errorf("rendering order placed email: %w", err)
	}

	message := []byte("To: " + to + "\r\n" +
		"From: " + m.from + "\r\n" +
		"Subject: " + orderPlacedSubject + "\r\n" +
		"\r\n" +
		body.String() + "\r\n")

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, message); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
