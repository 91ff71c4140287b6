// Package rules implements the alert rule evaluators: one per alert kind,
// each scanning its own back-office table for a time-based condition and
// proposing candidate alerts.
//
// Evaluators are read-only and deterministic: the same table state and the
// same "now" yield the same candidates. A row that cannot be turned into a
// candidate (no owner, no id, a panic while rendering) is logged and skipped;
// only a failed query aborts an evaluation.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// Evaluator proposes candidate alerts of a single kind. Candidates are fully
// populated except ID and CreatedAt.
type Evaluator interface {
	Kind() domain.AlertKind
	Evaluate(ctx context.Context, now time.Time) ([]domain.Alert, error)
}

// Registry holds the configured evaluators in a stable order.
type Registry struct {
	order []domain.AlertKind
	byKnd map[domain.AlertKind]Evaluator
}

// NewRegistry builds every evaluator over db. Calendar days are computed in
// loc; a nil loc means UTC.
func NewRegistry(db *gorm.DB, cfg config.AlertsConfig, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	r := &Registry{byKnd: map[domain.AlertKind]Evaluator{}}
	for _, e := range []Evaluator{
		Renewal(db, loc, cfg.RenewalLookaheadDays),
		Installment(db, loc, cfg.InstallmentLookaheadDays),
		Consortium(db, loc, cfg.InstallmentLookaheadDays),
		Financing(db, loc, cfg.InstallmentLookaheadDays),
		HealthPlan(db, loc, cfg.HealthPlanLookaheadDays),
		OverdueTask(db, loc),
		Document(db, loc, cfg.DocumentLookaheadDays),
		Commission(db, loc, cfg.CommissionAgeDays),
		Claim(db, loc, cfg.ClaimStaleDays),
		Birthday(db, loc),
	} {
		r.order = append(r.order, e.Kind())
		r.byKnd[e.Kind()] = e
	}
	return r
}

// All returns every evaluator.
func (r *Registry) All() []Evaluator {
	return r.Select(r.order...)
}

// Select returns the evaluators of the given kinds, skipping unknown kinds.
func (r *Registry) Select(kinds ...domain.AlertKind) []Evaluator {
	out := make([]Evaluator, 0, len(kinds))
	for _, k := range kinds {
		if e, ok := r.byKnd[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the evaluator of kind k.
func (r *Registry) Get(k domain.AlertKind) (Evaluator, bool) {
	e, ok := r.byKnd[k]
	return e, ok
}

// fact is what a candidate alert is derived from.
type fact struct {
	ownerID  string
	entityID string
	day      *time.Time // reference calendar day, UTC midnight
}

// rule is the shared shape of all table-driven evaluators: load rows for a
// coarse window around today, reduce each to a fact, keep the ones whose
// distance to today (in days, negative when past) is accepted, and render
// their text.
type rule[T any] struct {
	kind   domain.AlertKind
	db     *gorm.DB
	loc    *time.Location
	load   func(ctx context.Context, db *gorm.DB, today time.Time) ([]T, error)
	fact   func(row T, loc *time.Location) fact
	accept func(daysUntil int) bool
	text   func(row T, daysUntil int) (title, message string)
}

func (r *rule[T]) Kind() domain.AlertKind { return r.kind }

func (r *rule[T]) Evaluate(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	ctx, span := otel.Tracer("rules").Start(ctx, "Evaluate",
		trace.WithAttributes(attribute.String("alert.kind", string(r.kind))),
	)
	defer span.End()

	today := domain.Today(now, r.loc)
	rows, err := r.load(ctx, r.db, today)
	if err != nil {
		return nil, fmt.Errorf("%s: load: %w", r.kind, err)
	}

	out := make([]domain.Alert, 0, len(rows))
	for i := range rows {
		if c, ok := r.candidate(rows[i], today); ok {
			out = append(out, c)
		}
	}
	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Int("candidates", len(out)))
	return out, nil
}

func (r *rule[T]) candidate(row T, today time.Time) (c domain.Alert, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("evaluator", string(r.kind)).Interface("panic", rec).Msg("row skipped")
			ok = false
		}
	}()

	f := r.fact(row, r.loc)
	if f.day == nil {
		return c, false
	}
	if f.ownerID == "" || f.entityID == "" {
		log.Warn().Str("evaluator", string(r.kind)).Str("entity_id", f.entityID).Msg("row without owner or id skipped")
		return c, false
	}
	d := domain.DaysBetween(today, *f.day)
	if !r.accept(d) {
		return c, false
	}
	title, msg := r.text(row, d)
	return newCandidate(r.kind, f, d, title, msg), true
}

func newCandidate(kind domain.AlertKind, f fact, daysUntil int, title, msg string) domain.Alert {
	info, _ := kind.Info()
	entityKind := info.EntityKind
	entityID := f.entityID
	day := *f.day
	return domain.Alert{
		OwnerID:       f.ownerID,
		Kind:          kind,
		Title:         title,
		Message:       msg,
		Priority:      domain.PriorityFor(kind, daysUntil),
		EntityKind:    &entityKind,
		EntityID:      &entityID,
		ReferenceDate: &day,
	}
}

// dateDay normalizes a DATE column value. Drivers return those as UTC
// midnight, so no timezone conversion applies.
func dateDay(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := domain.Date(*t)
	return &d
}

// instantDay returns the calendar day of a timestamp in loc.
func instantDay(t time.Time, loc *time.Location) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := domain.Today(t, loc)
	return &d
}

// within accepts reference days from today up to n days ahead.
func within(n int) func(int) bool {
	return func(d int) bool { return d >= 0 && d <= n }
}

// upTo accepts anything up to n days ahead, overdue included.
func upTo(n int) func(int) bool {
	return func(d int) bool { return d <= n }
}

// olderThan accepts reference days at least n days in the past.
func olderThan(n int) func(int) bool {
	return func(d int) bool { return -d >= n }
}

// rangeLoader adapts a repo range query to a window of n days ahead of
// today, with one day of slack on each side.
func rangeLoader[T any](q func(context.Context, *gorm.DB, time.Time, time.Time) ([]T, error), n int) func(context.Context, *gorm.DB, time.Time) ([]T, error) {
	return func(ctx context.Context, db *gorm.DB, today time.Time) ([]T, error) {
		return q(ctx, db, today.AddDate(0, 0, -1), today.AddDate(0, 0, n+2))
	}
}

// beforeLoader adapts a repo "before" query to a cutoff of today+offset
// days, plus one day of slack.
func beforeLoader[T any](q func(context.Context, *gorm.DB, time.Time) ([]T, error), offset int) func(context.Context, *gorm.DB, time.Time) ([]T, error) {
	return func(ctx context.Context, db *gorm.DB, today time.Time) ([]T, error) {
		return q(ctx, db, today.AddDate(0, 0, offset+2))
	}
}
