package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// WhatsAppChannel sends messages through a Twilio-compatible REST gateway.
type WhatsAppChannel struct {
	cfg        config.WhatsAppConfig
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewWhatsAppChannel validates cfg and returns a channel.
func NewWhatsAppChannel(cfg config.WhatsAppConfig) (*WhatsAppChannel, error) {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("whatsapp: account sid and auth token required")
	}
	if cfg.From == "" {
		return nil, errors.New("whatsapp: sender required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &WhatsAppChannel{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
	}, nil
}

// Name implements Channel.
func (c *WhatsAppChannel) Name() domain.Channel { return domain.ChannelWhatsApp }

// Send implements Channel.
func (c *WhatsAppChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	if strings.TrimSpace(to.Phone) == "" {
		return ErrNoAddress
	}
	body := strings.TrimSpace(msg.Body)
	if msg.Subject != "" {
		body = "*" + msg.Subject + "*\n" + body
	}

	form := url.Values{}
	form.Set("To", whatsappAddr(to.Phone))
	form.Set("From", whatsappAddr(c.cfg.From))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	_, err := c.doForm(ctx, endpoint, form)
	return err
}

// whatsappAddr prefixes a phone number with the gateway's channel scheme.
func whatsappAddr(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

type gatewayMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// HTTPError is a non-2xx gateway response.
type HTTPError struct {
	StatusCode int
	Body       string
	APIError   *apiError
}

func (e *HTTPError) Error() string {
	if e.APIError != nil && strings.TrimSpace(e.APIError.Message) != "" {
		return fmt.Sprintf("whatsapp gateway http %d: %s (code=%d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	return fmt.Sprintf("whatsapp gateway http %d: %s", e.StatusCode, msg)
}

func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (c *WhatsAppChannel) doForm(ctx context.Context, endpoint string, form url.Values) (*gatewayMessage, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, resp, err := c.doFormOnce(ctx, endpoint, form)
		if err == nil {
			return out, nil
		}
		if !retryable(err) || attempt >= c.maxRetries {
			return nil, err
		}

		wait := retryAfter(resp, backoff)
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Dur("sleep", wait).
			Msg("whatsapp gateway retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

// retryAfter honours a Retry-After header in seconds, capped at 10s.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if resp != nil {
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s >= 0 {
			d := time.Duration(s) * time.Second
			if d > 10*time.Second {
				d = 10 * time.Second
			}
			return d
		}
	}
	return fallback
}

func (c *WhatsAppChannel) doFormOnce(ctx context.Context, endpoint string, form url.Values) (*gatewayMessage, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && strings.TrimSpace(ae.Message) != "" {
			return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw), APIError: &ae}
		}
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out gatewayMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, resp, fmt.Errorf("whatsapp gateway decode: %w", err)
		}
	}
	return &out, resp, nil
}
