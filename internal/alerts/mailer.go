package alerts

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/pkg/logger"
)

const (
	// smtpImplicitTLSPort is the SMTPS port. Servers on it speak TLS
	// from the first byte, so the client must handshake before the SMTP
	// greeting; plaintext-then-STARTTLS would wait forever.
	smtpImplicitTLSPort = 465

	smtpDialTimeout    = 10 * time.Second
	smtpSessionTimeout = 30 * time.Second
)

// Mailer sends violation alert emails over SMTP
type Mailer struct {
	host        string
	port        int
	username    string
	password    string
	recipient   string
	implicitTLS bool
	logger      *logger.Logger
}

// NewMailer creates a new SMTP mailer. Port 465 is treated as implicit
// TLS; any other port starts in plaintext and upgrades via STARTTLS when
// the server offers it.
func NewMailer(host string, port int, username, password, recipient string, logger *logger.Logger) *Mailer {
	return &Mailer{
		host:        host,
		port:        port,
		username:    username,
		password:    password,
		recipient:   recipient,
		implicitTLS: port == smtpImplicitTLSPort,
		logger:      logger.Named("alert-mailer"),
	}
}

// SendViolationAlert emails a single unauthorized-activity alert
func (m *Mailer) SendViolationAlert(rec telemetry.Record) error {
	subject := "Unauthorized Drone Alert"
	var body strings.Builder
	fmt.Fprintf(&body, "Unauthorized activity detected.\r\n\r\n")
	fmt.Fprintf(&body, "Callsign: %s\r\n", rec.ID)
	fmt.Fprintf(&body, "Location: latitude %.4f, longitude %.4f\r\n", rec.Latitude, rec.Longitude)
	fmt.Fprintf(&body, "Cause: %s\r\n", rec.Reason)
	fmt.Fprintf(&body, "Provenance: %s\r\n", rec.Provenance)
	fmt.Fprintf(&body, "Time: %s\r\n", time.UnixMilli(rec.TimestampMillis).UTC().Format(time.RFC3339))

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.username, m.recipient, subject, body.String())

	if err := m.send([]byte(msg)); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	m.logger.Info("Alert email sent",
		logger.String("drone_id", rec.ID),
		logger.String("recipient", m.recipient),
	)
	return nil
}

// send runs one SMTP session. The whole session runs under a deadline
// so a stalled server cannot hang the caller.
func (m *Mailer) send(msg []byte) error {
	conn, err := m.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	conn.SetDeadline(time.Now().Add(smtpSessionTimeout))

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open SMTP session: %w", err)
	}
	defer client.Close()

	if !m.implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && m.username != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(m.username); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(m.recipient); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}

	return client.Quit()
}

func (m *Mailer) dial() (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	if m.implicitTLS {
		return tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: m.host})
	}
	return dialer.Dial("tcp", addr)
}
