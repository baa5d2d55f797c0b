package email

import (
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is one email to deliver.
type Message struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Config holds the SMTP settings. When Host is empty the mailer runs
// in log-only mode: every message is printed instead of sent, which
// keeps local development working without an SMTP account.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

const (
	queueSize   = 256
	maxAttempts = 3
)

// Mailer delivers email off the request path. Enqueue never blocks a
// handler: messages go onto a buffered channel consumed by a single
// worker goroutine, and a full queue drops the message with a warning
// rather than delaying the response. Delivery failures are retried a
// bounded number of times and then logged; an email is a secondary
// effect and must never roll back the state change that triggered it.
type Mailer struct {
	cfg   Config
	queue chan Message
	log   zerolog.Logger
	wg    sync.WaitGroup
}

func NewMailer(cfg Config, logger zerolog.Logger) *Mailer {
	return &Mailer{
		cfg:   cfg,
		queue: make(chan Message, queueSize),
		log:   logger.With().Str("component", "mailer").Logger(),
	}
}

// Start launches the delivery worker.
func (m *Mailer) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range m.queue {
			m.deliver(msg)
		}
	}()
}

// Close drains the queue and stops the worker.
func (m *Mailer) Close() {
	close(m.queue)
	m.wg.Wait()
}

// Enqueue hands a message to the worker. Non-blocking.
func (m *Mailer) Enqueue(to, subject, body string) {
	msg := Message{
		ID:      uuid.NewString(),
		To:      to,
		Subject: subject,
		Body:    body,
	}

	select {
	case m.queue <- msg:
	default:
		m.log.Warn().Str("mailId", msg.ID).Str("to", to).Msg("mail queue full, dropping message")
	}
}

func (m *Mailer) deliver(msg Message) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = m.send(msg); err == nil {
			m.log.Info().Str("mailId", msg.ID).Str("to", msg.To).Str("subject", msg.Subject).Msg("mail delivered")
			return
		}
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	m.log.Error().Err(err).Str("mailId", msg.ID).Str("to", msg.To).Msg("mail delivery failed, giving up")
}

func (m *Mailer) send(msg Message) error {
	// Log-only mode for local development.
	if m.cfg.Host == "" {
		m.log.Info().
			Str("mailId", msg.ID).
			Str("to", msg.To).
			Str("subject", msg.Subject).
			Msg("SMTP not configured, logging mail instead of sending")
		return nil
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.From, msg.To, msg.Subject, msg.Body)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	return smtp.SendMail(addr, auth, m.cfg.From, []string{msg.To}, []byte(body))
}
