package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/smallbiznis/datasync/internal/notify/domain"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
)

//go:embed templates/*.txt
var templates embed.FS

var summaryTemplate = template.Must(template.ParseFS(templates, "templates/summary.txt"))

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails a plain-text activity summary over SMTP.
type EmailNotifier struct {
	cfg  SMTPConfig
	send sendFunc
}

func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg}
	n.send = n.sendMail
	return n
}

func (n *EmailNotifier) Notify(ctx context.Context, activityID string, summary recorddomain.ActivityRecord, status recorddomain.ActivityStatus) error {
	if len(n.cfg.To) == 0 {
		return fmt.Errorf("%w: no recipients", domain.ErrNotify)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotify, err)
	}

	subject, body, err := renderSummary(activityID, summary, status)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotify, err)
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	msg := buildMessage(n.cfg.From, n.cfg.To, subject, body)

	if err := n.send(addr, auth, n.cfg.From, n.cfg.To, msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotify, err)
	}
	return nil
}

// Subject returns the mail subject for an activity outcome.
func Subject(activityID string, status recorddomain.ActivityStatus) string {
	return fmt.Sprintf("Activity %s %s", activityID, title(status))
}

func title(status recorddomain.ActivityStatus) string {
	if status == recorddomain.ActivityFailed {
		return "Failed"
	}
	return "Completed"
}

func renderSummary(activityID string, summary recorddomain.ActivityRecord, status recorddomain.ActivityStatus) (string, string, error) {
	var body bytes.Buffer
	err := summaryTemplate.Execute(&body, map[string]interface{}{
		"ActivityID": activityID,
		"Title":      title(status),
		"Summary":    summary,
		"Elapsed":    summary.Elapsed().Round(time.Millisecond),
	})
	if err != nil {
		return "", "", fmt.Errorf("render summary: %w", err)
	}
	return Subject(activityID, status), body.String(), nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return msg.Bytes()
}

// sendMail uses implicit TLS on 465 and smtp.SendMail (STARTTLS when offered) otherwise.
func (n *EmailNotifier) sendMail(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	if n.cfg.Port != 465 {
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

var _ domain.Notifier = (*EmailNotifier)(nil)
