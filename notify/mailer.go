package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notifier announces schedule creation. Implementations are best-effort;
// the schedule record is already committed by the time they run.
type Notifier interface {
	ScheduleCreated(personName, mobile string, dueAt time.Time) error
}

// Config holds SMTP settings. An empty Host disables mail entirely.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// From is the sender address on outgoing notifications.
	From string `mapstructure:"from"`
	// Domain builds the recipient address from the person's name, e.g.
	// name "jane.doe" with domain "example.org" mails jane.doe@example.org.
	Domain string `mapstructure:"domain"`
}

// Mailer sends schedule-creation notifications over SMTP with STARTTLS.
type Mailer struct {
	cfg Config
	log *zap.SugaredLogger

	// send is swapped out in tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewMailer creates a mailer. The zero-config mailer is a no-op.
func NewMailer(cfg Config, log *zap.SugaredLogger) *Mailer {
	m := &Mailer{cfg: cfg, log: log}
	m.send = func(addr, from string, to []string, msg []byte) error {
		return smtp.SendMail(addr, nil, from, to, msg)
	}
	return m
}

// ScheduleCreated mails the configured recipient about a new schedule.
func (m *Mailer) ScheduleCreated(personName, mobile string, dueAt time.Time) error {
	if m.cfg.Host == "" {
		if m.log != nil {
			m.log.Warnw("SMTP not configured, skipping schedule notification")
		}
		return nil
	}

	to := recipient(personName, m.cfg.Domain)
	subject := "New On-Call Schedule Created"
	body := fmt.Sprintf(
		"A new on-call schedule has been created:\n\nUser: %s\nMobile: %s\nDate: %s\n",
		personName, mobile, dueAt.Format("2006-01-02 15:04"))

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if m.log != nil {
		m.log.Infow("Sending schedule notification", "to", to, "due_at", dueAt)
	}
	return m.send(addr, m.cfg.From, []string{to}, []byte(msg.String()))
}

// recipient derives the mailbox from the person's name. Spaces collapse
// so "Jane Doe" becomes jane.doe@domain.
func recipient(personName, domain string) string {
	local := strings.ToLower(strings.TrimSpace(personName))
	local = strings.Join(strings.Fields(local), ".")
	return local + "@" + domain
}
