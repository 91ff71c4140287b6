package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel composes plain-text mail and submits it over SMTP.
type EmailChannel struct {
	addr     string
	auth     smtp.Auth
	from     *mail.Address
	sendMail sendMailFunc
	now      func() time.Time
}

// NewEmailChannel validates cfg and returns a channel. PLAIN auth is used
// when a username is configured.
func NewEmailChannel(cfg config.SMTPConfig) (*EmailChannel, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" || cfg.Port <= 0 {
		return nil, errors.New("smtp: host and port required")
	}
	from, err := mail.ParseAddress(strings.TrimSpace(cfg.From))
	if err != nil {
		return nil, errors.New("smtp: invalid sender address")
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &EmailChannel{
		addr:     net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		auth:     auth,
		from:     from,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

// Name implements Channel.
func (c *EmailChannel) Name() domain.Channel { return domain.ChannelEmail }

// Send implements Channel. SMTP submission is not cancellable; ctx is only
// checked before the message is built.
func (c *EmailChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to.Email) == "" {
		return ErrNoAddress
	}
	raw, err := c.compose(to, msg)
	if err != nil {
		return err
	}
	return c.sendMail(c.addr, c.auth, c.from.Address, []string{to.Email}, raw)
}

func (c *EmailChannel) compose(to Recipient, msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(c.now())
	h.SetAddressList("From", []*mail.Address{c.from})
	h.SetAddressList("To", []*mail.Address{{Name: to.Name, Address: to.Email}})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
