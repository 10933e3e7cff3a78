package alerts

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/pkg/logger"
)

type smtpCapture struct {
	mu   sync.Mutex
	data string
}

func (c *smtpCapture) message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// fakeSMTPServer speaks just enough of the plaintext SMTP dialogue to
// accept one message, capturing its body.
func fakeSMTPServer(t *testing.T) (int, *smtpCapture) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	capture := &smtpCapture{}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 fake ready\r\n")

		inData := false
		var body strings.Builder
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			if inData {
				if line == "." {
					inData = false
					capture.mu.Lock()
					capture.data = body.String()
					capture.mu.Unlock()
					fmt.Fprintf(conn, "250 OK\r\n")
					continue
				}
				body.WriteString(line + "\n")
				continue
			}

			switch {
			case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
				fmt.Fprintf(conn, "250-fake\r\n250 SIZE 1048576\r\n")
			case strings.HasPrefix(line, "DATA"):
				inData = true
				fmt.Fprintf(conn, "354 end with .\r\n")
			case strings.HasPrefix(line, "QUIT"):
				fmt.Fprintf(conn, "221 bye\r\n")
				return
			default:
				fmt.Fprintf(conn, "250 OK\r\n")
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, capture
}

func testMailerLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return log
}

func violationRecord() telemetry.Record {
	return telemetry.Record{
		ID:              "D1",
		Latitude:        37.3,
		Longitude:       -115.8,
		Status:          telemetry.StatusUnauthorized,
		Reason:          "Restricted Zone: Area51",
		Provenance:      telemetry.ProvenanceLive,
		TimestampMillis: 1700000000000,
	}
}

func TestSendViolationAlert_PlaintextSession(t *testing.T) {
	log := testMailerLogger(t)

	port, capture := fakeSMTPServer(t)
	mailer := NewMailer("127.0.0.1", port, "alerts@example.com", "", "ops@example.com", log)

	if err := mailer.SendViolationAlert(violationRecord()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	msg := capture.message()
	if !strings.Contains(msg, "Subject: Unauthorized Drone Alert") {
		t.Errorf("message missing subject:\n%s", msg)
	}
	if !strings.Contains(msg, "Callsign: D1") || !strings.Contains(msg, "Restricted Zone: Area51") {
		t.Errorf("message missing violation details:\n%s", msg)
	}
	if !strings.Contains(msg, "To: ops@example.com") {
		t.Errorf("message missing recipient:\n%s", msg)
	}
}

func TestSendViolationAlert_ImplicitTLSServerDoesNotHang(t *testing.T) {
	log := testMailerLogger(t)

	// A server that speaks TLS from the first byte, the way port-465
	// SMTPS servers do. The send must fail promptly (the certificate is
	// untrusted) rather than wait for a plaintext greeting.
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse server port: %v", err)
	}

	mailer := NewMailer(u.Hostname(), port, "alerts@example.com", "", "ops@example.com", log)
	mailer.implicitTLS = true

	done := make(chan error, 1)
	go func() { done <- mailer.SendViolationAlert(violationRecord()) }()

	select {
	case sendErr := <-done:
		if sendErr == nil {
			t.Error("expected an error from an untrusted TLS server")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send hung against a TLS-first server")
	}
}
