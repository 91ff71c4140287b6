package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
	"github.com/tbourn/brokerage-alerts/internal/repo"
	"github.com/tbourn/brokerage-alerts/internal/services"
)

// Dispatcher sends undispatched alerts over the channels each owner opted
// into. A channel's sent flag is set only after that channel succeeds, so
// failures are retried on a later pass.
type Dispatcher struct {
	DB       *gorm.DB
	Channels []Channel

	// MinPriority is the lowest priority sent out (default alta).
	MinPriority domain.Priority
	// Lookback bounds how old an alert may be and still be sent (default 7 days).
	Lookback time.Duration
	// BatchSize caps alerts attempted per pass and is also the page size
	// (default 200). Alerts that no channel can take do not count.
	BatchSize int

	Now func() time.Time
}

// DispatchResult counts one DispatchPending pass. Alerts is every row
// examined; Skipped the ones no channel could take.
type DispatchResult struct {
	Alerts  int `json:"alertas"`
	Sent    int `json:"enviados"`
	Failed  int `json:"falhas"`
	Skipped int `json:"ignorados"`
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) priorities() []domain.Priority {
	minRank := d.MinPriority.Rank()
	if minRank == 0 {
		minRank = domain.PriorityHigh.Rank()
	}
	var out []domain.Priority
	for _, p := range domain.Priorities {
		if p.Rank() >= minRank {
			out = append(out, p)
		}
	}
	return out
}

// DispatchPending sends every pending alert once per opted-in channel.
// Only loading a page or cancellation can fail the pass; per-alert problems
// are logged and counted.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchResult, error) {
	ctx, span := otel.Tracer("notify/Dispatcher").Start(ctx, "DispatchPending")
	defer span.End()

	var res DispatchResult
	if len(d.Channels) == 0 {
		return res, nil
	}
	lookback := d.Lookback
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	batch := d.BatchSize
	if batch <= 0 {
		batch = 200
	}

	since := d.now().Add(-lookback)
	profiles := map[string]*domain.Profile{}
	var (
		cur       repo.DispatchCursor
		attempted int
	)
	for attempted < batch {
		alerts, err := repo.ListUndispatchedAlerts(ctx, d.DB, d.priorities(), since, cur, batch)
		if err != nil {
			return res, fmt.Errorf("load undispatched alerts: %w", err)
		}
		for _, a := range alerts {
			if attempted >= batch {
				break
			}
			res.Alerts++
			cur = repo.DispatchCursor{CreatedAt: a.CreatedAt, ID: a.ID}

			p, ok := profiles[a.OwnerID]
			if !ok {
				p, err = repo.GetProfile(ctx, d.DB, a.OwnerID)
				if err != nil && !errors.Is(err, repo.ErrNotFound) {
					log.Error().Err(err).Str("owner_id", a.OwnerID).Msg("profile lookup failed")
				}
				profiles[a.OwnerID] = p
			}
			if p == nil {
				res.Skipped++
				continue
			}
			sent, failed := d.sendAlert(ctx, a, p)
			res.Sent += sent
			res.Failed += failed
			if sent == 0 && failed == 0 {
				res.Skipped++
				continue
			}
			attempted++
		}
		if len(alerts) < batch {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	span.SetAttributes(attribute.Int("alerts", res.Alerts), attribute.Int("sent", res.Sent), attribute.Int("failed", res.Failed))
	return res, nil
}

// sendAlert fans a out to every eligible channel concurrently.
func (d *Dispatcher) sendAlert(ctx context.Context, a domain.Alert, p *domain.Profile) (sent, failed int) {
	to, opted := recipientFor(p)
	msg := AlertMessage(a)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, ch := range d.Channels {
		ch := ch
		if !opted[ch.Name()] || alreadySent(a, ch.Name()) {
			continue
		}
		g.Go(func() error {
			l := log.With().Str("alert_id", a.ID).Str("owner_id", a.OwnerID).Str("channel", string(ch.Name())).Logger()
			if err := ch.Send(ctx, to, msg); err != nil {
				l.Warn().Err(err).Msg("dispatch failed; will retry on next pass")
				mu.Lock()
				failed++
				mu.Unlock()
				return err
			}
			if _, err := repo.MarkAlertSent(ctx, d.DB, a.ID, ch.Name()); err != nil {
				l.Error().Err(err).Msg("sent flag not recorded")
			}
			mu.Lock()
			sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sent, failed
}

// SendDigest sends the owner's unread summary over every opted-in channel.
// Nothing is sent when there are no unread alerts or no profile.
func (d *Dispatcher) SendDigest(ctx context.Context, ownerID string, sum *services.Summary) error {
	if sum == nil || sum.Total == 0 || len(d.Channels) == 0 {
		return nil
	}
	p, err := repo.GetProfile(ctx, d.DB, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	to, opted := recipientFor(p)
	msg := DigestMessage(sum)

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, ch := range d.Channels {
		ch := ch
		if !opted[ch.Name()] {
			continue
		}
		g.Go(func() error {
			if err := ch.Send(ctx, to, msg); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// DigestMessage renders the daily summary.
func DigestMessage(sum *services.Summary) Message {
	body := fmt.Sprintf("Você tem %d alerta(s) não lido(s):\n"+
		"- Urgente: %d\n- Alta: %d\n- Média: %d\n- Baixa: %d",
		sum.Total, sum.Urgent, sum.High, sum.Medium, sum.Low)
	return Message{Subject: "Resumo diário de alertas", Body: body}
}
