package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
	"github.com/tbourn/brokerage-alerts/internal/notify"
	"github.com/tbourn/brokerage-alerts/internal/rules"
	"github.com/tbourn/brokerage-alerts/internal/services"
)

// Job names, also the suffix of their SCHEDULE_<NAME> variables.
const (
	JobBirthdays   = "aniversarios"
	JobRenewals    = "renovacoes"
	JobInstallment = "parcelas"
	JobTasks       = "tarefas"
	JobCommissions = "comissoes"
	JobDispatch    = "despacho"
	JobDigest      = "resumo"
	JobCleanup     = "limpeza"
)

// AlertStore is what the jobs need from the alert service.
type AlertStore interface {
	Persist(ctx context.Context, candidates []domain.Alert) services.PersistResult
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
	Summary(ctx context.Context, ownerID string) (*services.Summary, error)
	OwnersWithUnread(ctx context.Context) ([]string, error)
}

// Notifier sends alerts out of the dashboard.
type Notifier interface {
	DispatchPending(ctx context.Context) (notify.DispatchResult, error)
	SendDigest(ctx context.Context, ownerID string, sum *services.Summary) error
}

// Deps wires the job bodies.
type Deps struct {
	Rules    *rules.Registry
	Alerts   AlertStore
	Notifier Notifier // optional; nil disables dispatch and digests

	RetentionDays int
	Now           func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DefaultJobs builds the built-in jobs with the trigger times of cfg.
func DefaultJobs(cfg config.SchedulerConfig, d Deps) []JobConfig {
	at := func(name string) string {
		if v, ok := cfg.Jobs[name]; ok && v != "" {
			return v
		}
		return config.DefaultJobTimes[name]
	}
	job := func(name string, body Body) JobConfig {
		return JobConfig{Name: name, TimeOfDay: at(name), Timezone: cfg.Timezone, Body: body}
	}
	return []JobConfig{
		job(JobBirthdays, d.Scan(domain.KindClientBirthday)),
		job(JobRenewals, d.Scan(domain.KindRenewalDue)),
		job(JobInstallment, d.Scan(domain.KindInstallmentDue, domain.KindConsortiumDue, domain.KindFinancingDue, domain.KindHealthPlanAdjust)),
		job(JobTasks, d.Scan(domain.KindTaskOverdue, domain.KindDocumentPending)),
		job(JobCommissions, d.Scan(domain.KindCommissionPending, domain.KindClaimPending)),
		job(JobDispatch, d.Dispatch),
		job(JobDigest, d.Digest),
		job(JobCleanup, d.Cleanup),
	}
}

// Scan returns a body that evaluates the given kinds in order, persists
// their candidates through deduplication and then dispatches pending
// notifications. A failing evaluator is logged and the others still run;
// the body reports an error only when at least one evaluator failed.
func (d Deps) Scan(kinds ...domain.AlertKind) Body {
	return func(ctx context.Context) (RunResult, error) {
		var (
			res  RunResult
			pr   services.PersistResult
			errs []error
		)
		now := d.now()
		for _, ev := range d.Rules.Select(kinds...) {
			l := log.With().Str("evaluator", string(ev.Kind())).Logger()
			cands, err := ev.Evaluate(ctx, now)
			if err != nil {
				l.Error().Err(err).Msg("evaluator failed")
				errs = append(errs, fmt.Errorf("%s: %w", ev.Kind(), err))
				continue
			}
			one := d.Alerts.Persist(ctx, cands)
			l.Debug().Int("candidates", one.Candidates).Int("created", one.Created).Msg("evaluator done")
			pr.Add(one)
		}
		res.Created, res.Duplicates, res.Failed = pr.Created, pr.Duplicates, pr.Failed
		if len(pr.Alerts) > 0 {
			res.ByKind = map[string]int{}
			for _, a := range pr.Alerts {
				res.ByKind[string(a.Kind)]++
			}
		}

		if d.Notifier != nil && pr.Created > 0 {
			dr, err := d.Notifier.DispatchPending(ctx)
			if err != nil {
				log.Error().Err(err).Msg("dispatch after scan failed")
			}
			res.Dispatched = dr.Sent
		}
		return res, errors.Join(errs...)
	}
}

// Dispatch sends every pending notification.
func (d Deps) Dispatch(ctx context.Context) (RunResult, error) {
	if d.Notifier == nil {
		return RunResult{}, nil
	}
	dr, err := d.Notifier.DispatchPending(ctx)
	return RunResult{Dispatched: dr.Sent, Failed: dr.Failed}, err
}

// Digest sends the unread summary to every user with unread alerts.
func (d Deps) Digest(ctx context.Context) (RunResult, error) {
	var res RunResult
	if d.Notifier == nil {
		return res, nil
	}
	owners, err := d.Alerts.OwnersWithUnread(ctx)
	if err != nil {
		return res, fmt.Errorf("list owners: %w", err)
	}
	for _, owner := range owners {
		l := log.With().Str("owner_id", owner).Logger()
		sum, err := d.Alerts.Summary(ctx, owner)
		if err != nil {
			l.Error().Err(err).Msg("summary failed")
			res.Failed++
			continue
		}
		if err := d.Notifier.SendDigest(ctx, owner, sum); err != nil {
			l.Warn().Err(err).Msg("digest not delivered")
			res.Failed++
			continue
		}
		res.Dispatched++
	}
	return res, nil
}

// Cleanup deletes alerts older than the retention window.
func (d Deps) Cleanup(ctx context.Context) (RunResult, error) {
	days := d.RetentionDays
	if days <= 0 {
		days = 90
	}
	cutoff := d.now().UTC().AddDate(0, 0, -days)
	n, err := d.Alerts.Cleanup(ctx, cutoff)
	return RunResult{Deleted: n}, err
}
