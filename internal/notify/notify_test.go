package notify

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
)

func TestRecipientFor(t *testing.T) {
	p := &domain.Profile{ID: "u1", Name: "Ana", Email: strp(" a@b.c "), Phone: strp(""), NotifyEmail: true, NotifyWhatsApp: true}
	r, opted := recipientFor(p)
	if r.Email != "a@b.c" || r.Phone != "" || r.UserID != "u1" {
		t.Fatalf("recipient = %+v", r)
	}
	if !opted[domain.ChannelEmail] || opted[domain.ChannelWhatsApp] {
		t.Fatalf("opted = %v", opted)
	}
}

func TestAlertMessage(t *testing.T) {
	m := AlertMessage(domain.Alert{Title: "Renovação", Message: "Apólice 123", Priority: domain.PriorityMedium})
	if m.Subject != "[Média] Renovação" {
		t.Fatalf("subject = %q", m.Subject)
	}
	if m.Body != "Renovação\n\nApólice 123" {
		t.Fatalf("body = %q", m.Body)
	}
	if m := AlertMessage(domain.Alert{Title: "x"}); m.Body != "x" {
		t.Fatalf("body without message = %q", m.Body)
	}
}

func TestAlreadySent(t *testing.T) {
	a := domain.Alert{SentEmail: true}
	if !alreadySent(a, domain.ChannelEmail) || alreadySent(a, domain.ChannelWhatsApp) {
		t.Fatal("unexpected sent flags")
	}
	if alreadySent(a, domain.Channel("sms")) {
		t.Fatal("unknown channel reported as sent")
	}
}

func TestRedisPublisher_UnreachableServer(t *testing.T) {
	p := NewRedisPublisher(config.RedisConfig{Addr: "127.0.0.1:1", Channel: "alertas"})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.PublishCreated(ctx, domain.Alert{ID: "a1", OwnerID: "u1"}); err == nil {
		t.Fatal("expected publish error")
	}
	if err := p.Ping(ctx); err == nil {
		t.Fatal("expected ping error")
	}
}
