package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/martinlindhe/base36"
)

var ErrMailerNotConfigured = errors.New("mailer is not configured")

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Addr        string
	Username    string
	Password    string
	ImplicitTLS bool
	FromName    string
	TLSConfig   *tls.Config
}

// Email is a message to a single recipient. At least one of Text or HTML
// must be set.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// SentArchiver stores a copy of every delivered message.
type SentArchiver interface {
	Save(ctx context.Context, raw []byte) error
}

// Mailer delivers email through an SMTP relay.
type Mailer struct {
	cfg      SMTPConfig
	hostname string
	archive  SentArchiver
	dialer   net.Dialer
}

// NewMailer creates a new Mailer. archive may be nil.
func NewMailer(cfg SMTPConfig, archive SentArchiver) *Mailer {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return &Mailer{
		cfg:      cfg,
		hostname: hostname,
		archive:  archive,
		dialer:   net.Dialer{Timeout: 15 * time.Second},
	}
}

// Send composes and delivers msg.
func (m *Mailer) Send(ctx context.Context, msg Email) error {
	if m.cfg.Username == "" || m.cfg.Addr == "" {
		return ErrMailerNotConfigured
	}

	raw, err := m.compose(msg, time.Now())
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	if err := m.deliver(ctx, msg.To, raw); err != nil {
		return err
	}

	if m.archive != nil {
		if err := m.archive.Save(ctx, raw); err != nil {
			log.Printf("[Mail] could not archive message to %s: %v", msg.To, err)
		}
	}
	return nil
}

func (m *Mailer) compose(msg Email, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(msg.Subject)
	h.SetMessageID(m.messageID(now))
	h.SetAddressList("From", []*mail.Address{{Name: m.cfg.FromName, Address: m.cfg.Username}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})

	var buf bytes.Buffer

	if msg.HTML == "" || msg.Text == "" {
		contentType, body := "text/plain", msg.Text
		if msg.HTML != "" {
			contentType, body = "text/html", msg.HTML
		}
		h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(body)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	iw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	for _, part := range []struct{ contentType, body string }{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// messageID builds time.random@hostname, both halves base36 encoded.
func (m *Mailer) messageID(now time.Time) string {
	var sb strings.Builder
	sb.WriteString(base36.EncodeBytes([]byte(now.UTC().Format("20060102150405.000"))))
	sb.WriteRune('.')

	b := make([]byte, 16)
	_, _ = rand.Read(b)
	sb.WriteString(base36.EncodeBytes(b))
	sb.WriteRune('@')
	sb.WriteString(m.hostname)
	return sb.String()
}

func (m *Mailer) deliver(ctx context.Context, to string, raw []byte) error {
	host, _, err := net.SplitHostPort(m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}
	tlsConfig := m.cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: host}
	}

	conn, err := m.dialer.DialContext(ctx, "tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if m.cfg.ImplicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if err = c.Hello(m.hostname); err != nil {
		return err
	}

	if !m.cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if err = c.Auth(sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err = c.Mail(m.cfg.Username, nil); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = bytes.NewReader(raw).WriteTo(w); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

// SendVerificationCode emails a one-time checkout code.
func (m *Mailer) SendVerificationCode(ctx context.Context, to, code string) error {
	err := m.Send(ctx, Email{
		To:      to,
		Subject: "Código de verificación",
		Text:    fmt.Sprintf("Tu código de verificación es: %s", code),
	})
	if err == nil {
		log.Printf("[Mail] verification code sent to %s", to)
	}
	return err
}

// OrderConfirmation is the data rendered into the confirmation email.
type OrderConfirmation struct {
	To          string
	OrderID     string
	Total       string
	Address     string
	City        string
	Region      string
	TrackingURL string
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<h2>✅ ¡Gracias por tu compra!</h2>
<p>Tu pedido <strong>#{{.OrderID}}</strong> fue confirmado exitosamente.</p>
<p><strong>Total:</strong> ${{.Total}}</p>
<p><strong>Dirección:</strong> {{.Address}}, {{.City}}, {{.Region}}</p>
{{if .TrackingURL}}<p>Sigue tu pedido aquí: <a href="{{.TrackingURL}}">{{.TrackingURL}}</a></p>
{{else}}<p>Puedes hacer seguimiento desde tu correo o directamente en nuestra web.</p>
{{end}}<hr>
<p style="font-size:12px;color:gray;">Este es un mensaje automático, por favor no respondas.</p>
`))

// SendOrderConfirmation emails the HTML order confirmation.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, c OrderConfirmation) error {
	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, c); err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return m.Send(ctx, Email{
		To:      c.To,
		Subject: "📦 Confirmación de tu pedido",
		HTML:    body.String(),
	})
}
