// Package notify delivers alerts outside the dashboard: WhatsApp through a
// Twilio-compatible messaging gateway, e-mail over SMTP, and realtime
// "alert.created" events on Redis. The Dispatcher decides which alerts go
// out and records per-channel success in the alert's sent flags.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// ErrNoAddress is returned when a recipient lacks the address a channel needs.
var ErrNoAddress = errors.New("recipient has no address for this channel")

// Recipient is the broker an alert is delivered to.
type Recipient struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

// Message is channel-neutral content; channels pick what they can render.
type Message struct {
	Subject string
	Body    string
}

// Channel sends a message to a recipient.
type Channel interface {
	Name() domain.Channel
	Send(ctx context.Context, to Recipient, msg Message) error
}

// recipientFor builds the recipient of p and reports which channels the
// profile opted into and has an address for.
func recipientFor(p *domain.Profile) (Recipient, map[domain.Channel]bool) {
	r := Recipient{UserID: p.ID, Name: p.Name}
	opted := map[domain.Channel]bool{}
	if p.Email != nil && strings.TrimSpace(*p.Email) != "" {
		r.Email = strings.TrimSpace(*p.Email)
		opted[domain.ChannelEmail] = p.NotifyEmail
	}
	if p.Phone != nil && strings.TrimSpace(*p.Phone) != "" {
		r.Phone = strings.TrimSpace(*p.Phone)
		opted[domain.ChannelWhatsApp] = p.NotifyWhatsApp
	}
	return r, opted
}

var priorityLabel = map[domain.Priority]string{
	domain.PriorityUrgent: "Urgente",
	domain.PriorityHigh:   "Alta",
	domain.PriorityMedium: "Média",
	domain.PriorityLow:    "Baixa",
}

// AlertMessage renders one alert.
func AlertMessage(a domain.Alert) Message {
	label := priorityLabel[a.Priority]
	if label == "" {
		label = string(a.Priority)
	}
	body := a.Title
	if a.Message != "" {
		body += "\n\n" + a.Message
	}
	return Message{
		Subject: fmt.Sprintf("[%s] %s", label, a.Title),
		Body:    body,
	}
}

// alreadySent reports whether ch's flag is set on a.
func alreadySent(a domain.Alert, ch domain.Channel) bool {
	switch ch {
	case domain.ChannelEmail:
		return a.SentEmail
	case domain.ChannelWhatsApp:
		return a.SentWhatsApp
	}
	return false
}
