// Package services – AlertService
//
// This file implements AlertService, the application-level component that
// owns the lifecycle of alerts: listing and fetching for the owning user,
// manual creation, the false→true read transition, deletion, the dashboard
// summary, and deduplicated persistence of evaluator candidates.
//
// Deduplication: a candidate is dropped when an alert with the same
// (owner, kind, entity id, reference date) already exists. By default read
// alerts also count, so an acknowledged condition does not re-fire until its
// reference date changes or the old alert is deleted; with RefireAfterRead
// only unread alerts suppress. The check and the insert are not atomic: two
// concurrent writers may both insert the same key, which is accepted.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
	"github.com/tbourn/brokerage-alerts/internal/repo"
	"github.com/tbourn/brokerage-alerts/internal/utils"
)

// AlertRepo defines the repository contract required by AlertService.
type AlertRepo interface {
	CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error
	GetAlert(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Alert, error)
	CountAlerts(ctx context.Context, db *gorm.DB, ownerID string, f repo.AlertFilter) (int64, error)
	ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, f repo.AlertFilter, offset, limit int) ([]domain.Alert, error)
	FindAlertByKey(ctx context.Context, db *gorm.DB, key domain.DedupKey, unreadOnly bool) (*domain.Alert, error)
	MarkAlertRead(ctx context.Context, db *gorm.DB, id, ownerID string) (bool, error)
	MarkAllAlertsRead(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)
	DeleteAlert(ctx context.Context, db *gorm.DB, id, ownerID string) error
	DeleteReadAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)
	DeleteAlertsOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
	CountUnreadByPriority(ctx context.Context, db *gorm.DB, ownerID string) (map[domain.Priority]int64, error)
	CountUnreadByKind(ctx context.Context, db *gorm.DB, ownerID string) (map[domain.AlertKind]int64, error)
	AlertsStats(ctx context.Context, db *gorm.DB, ownerID string) (repo.AlertStats, error)
	ListOwnersWithUnread(ctx context.Context, db *gorm.DB) ([]string, error)
}

// Publisher receives every newly created alert, e.g. to push it to open
// dashboards. Publish errors are logged and never fail the creation.
type Publisher interface {
	PublishCreated(ctx context.Context, a domain.Alert) error
}

// AlertService provides alert operations scoped to the owning user.
type AlertService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the alert repository used by this service.
	Repo AlertRepo
	// Publisher is optional.
	Publisher Publisher

	// RefireAfterRead lets a read alert's key produce a new alert.
	RefireAfterRead bool

	// Optional guards for manual alerts (0 disables).
	MaxTitleRunes   int
	MaxMessageRunes int
}

// NewAlertService constructs an AlertService with default length guards.
func NewAlertService(db *gorm.DB, r AlertRepo) *AlertService {
	return &AlertService{
		DB:              db,
		Repo:            r,
		MaxTitleRunes:   255,
		MaxMessageRunes: 2000,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/AlertService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// ListPage returns a page of the user's alerts, newest first, and the total
// matching f. It applies defaults for invalid page/pageSize.
func (s *AlertService) ListPage(ctx context.Context, ownerID string, f repo.AlertFilter, page, pageSize int) ([]domain.Alert, int64, error) {
	ctx, span := startSpan(ctx, "ListPage",
		attribute.String("user.id", ownerID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	if f.Kind != nil && !f.Kind.Valid() {
		return nil, 0, ErrInvalidKind
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return nil, 0, ErrInvalidPriority
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountAlerts(ctx, s.DB, ownerID, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Alert{}, 0, nil
	}
	items, err := s.Repo.ListAlertsPage(ctx, s.DB, ownerID, f, offset, pageSize)
	return items, total, err
}

// Get returns one of the user's alerts.
func (s *AlertService) Get(ctx context.Context, ownerID, id string) (*domain.Alert, error) {
	ctx, span := startSpan(ctx, "Get", attribute.String("user.id", ownerID), attribute.String("alert.id", id))
	defer span.End()

	a, err := s.Repo.GetAlert(ctx, s.DB, id, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	return a, err
}

// CreateInput is a manually created alert.
type CreateInput struct {
	Kind          domain.AlertKind
	Title         string
	Message       string
	Priority      domain.Priority // empty: the kind's default
	EntityKind    *string         // nil: the kind's entity kind when EntityID is set
	EntityID      *string
	ReferenceDate *time.Time
}

// Create validates and persists a manual alert. When an entity id is given
// the alert goes through deduplication, and an existing alert with the same
// key is returned with created=false instead of inserting a second one.
func (s *AlertService) Create(ctx context.Context, ownerID string, in CreateInput) (a *domain.Alert, created bool, err error) {
	ctx, span := startSpan(ctx, "Create", attribute.String("user.id", ownerID), attribute.String("alert.kind", string(in.Kind)))
	defer span.End()

	info, ok := in.Kind.Info()
	if !ok {
		return nil, false, ErrInvalidKind
	}
	title := normalizeTitle(in.Title)
	if title == "" {
		return nil, false, ErrTitleRequired
	}
	msg := strings.TrimSpace(in.Message)
	if s.MaxTitleRunes > 0 && utf8.RuneCountInString(title) > s.MaxTitleRunes {
		return nil, false, ErrTooLong
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(msg) > s.MaxMessageRunes {
		return nil, false, ErrTooLong
	}
	prio := in.Priority
	if prio == "" {
		prio = info.DefaultPriority
	}
	if !prio.Valid() {
		return nil, false, ErrInvalidPriority
	}

	alert := domain.Alert{
		OwnerID:    ownerID,
		Kind:       in.Kind,
		Title:      title,
		Message:    msg,
		Priority:   prio,
		EntityKind: in.EntityKind,
		EntityID:   trimmedOrNil(in.EntityID),
	}
	if in.ReferenceDate != nil {
		d := domain.Date(*in.ReferenceDate)
		alert.ReferenceDate = &d
	}
	if alert.EntityID == nil {
		if err := s.insert(ctx, &alert); err != nil {
			return nil, false, err
		}
		return &alert, true, nil
	}
	if alert.EntityKind == nil {
		ek := info.EntityKind
		alert.EntityKind = &ek
	}

	existing, err := s.findDuplicate(ctx, alert.Key())
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := s.insert(ctx, &alert); err != nil {
		return nil, false, err
	}
	return &alert, true, nil
}

// MarkRead marks one alert as read and returns it. Marking an alert that is
// already read is a no-op; the flag never goes back to false.
func (s *AlertService) MarkRead(ctx context.Context, ownerID, id string) (*domain.Alert, error) {
	ctx, span := startSpan(ctx, "MarkRead", attribute.String("user.id", ownerID), attribute.String("alert.id", id))
	defer span.End()

	if _, err := s.Repo.MarkAlertRead(ctx, s.DB, id, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return s.Get(ctx, ownerID, id)
}

// MarkAllRead marks every unread alert of the user as read.
func (s *AlertService) MarkAllRead(ctx context.Context, ownerID string) (int64, error) {
	ctx, span := startSpan(ctx, "MarkAllRead", attribute.String("user.id", ownerID))
	defer span.End()

	return s.Repo.MarkAllAlertsRead(ctx, s.DB, ownerID)
}

// Delete removes one of the user's alerts.
func (s *AlertService) Delete(ctx context.Context, ownerID, id string) error {
	ctx, span := startSpan(ctx, "Delete", attribute.String("user.id", ownerID), attribute.String("alert.id", id))
	defer span.End()

	err := s.Repo.DeleteAlert(ctx, s.DB, id, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAlertNotFound
	}
	return err
}

// DeleteAllRead removes every read alert of the user and returns how many.
func (s *AlertService) DeleteAllRead(ctx context.Context, ownerID string) (int64, error) {
	ctx, span := startSpan(ctx, "DeleteAllRead", attribute.String("user.id", ownerID))
	defer span.End()

	return s.Repo.DeleteReadAlerts(ctx, s.DB, ownerID)
}

// Summary is the dashboard snapshot of a user's unread alerts. Every
// priority bucket and every kind is present, zero when empty, and Total is
// the sum of the priority buckets.
type Summary struct {
	Urgent int64                      `json:"urgente"`
	High   int64                      `json:"alta"`
	Medium int64                      `json:"media"`
	Low    int64                      `json:"baixa"`
	Total  int64                      `json:"total"`
	ByKind map[domain.AlertKind]int64 `json:"por_tipo"`
}

// Summary computes the user's unread snapshot fresh from the store.
func (s *AlertService) Summary(ctx context.Context, ownerID string) (*Summary, error) {
	ctx, span := startSpan(ctx, "Summary", attribute.String("user.id", ownerID))
	defer span.End()

	byPrio, err := s.Repo.CountUnreadByPriority(ctx, s.DB, ownerID)
	if err != nil {
		return nil, err
	}
	byKind, err := s.CountByKind(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Urgent: byPrio[domain.PriorityUrgent],
		High:   byPrio[domain.PriorityHigh],
		Medium: byPrio[domain.PriorityMedium],
		Low:    byPrio[domain.PriorityLow],
		ByKind: byKind,
	}
	sum.Total = sum.Urgent + sum.High + sum.Medium + sum.Low
	return sum, nil
}

// CountByKind returns the user's unread counts for every kind.
func (s *AlertService) CountByKind(ctx context.Context, ownerID string) (map[domain.AlertKind]int64, error) {
	ctx, span := startSpan(ctx, "CountByKind", attribute.String("user.id", ownerID))
	defer span.End()

	counts, err := s.Repo.CountUnreadByKind(ctx, s.DB, ownerID)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AlertKind]int64, len(domain.Kinds()))
	for _, info := range domain.Kinds() {
		out[info.Kind] = counts[info.Kind]
	}
	return out, nil
}

// OwnersWithUnread lists the users that have at least one unread alert.
func (s *AlertService) OwnersWithUnread(ctx context.Context) ([]string, error) {
	ctx, span := startSpan(ctx, "OwnersWithUnread")
	defer span.End()

	return s.Repo.ListOwnersWithUnread(ctx, s.DB)
}

// Stats returns the list fingerprint inputs used for ETags.
func (s *AlertService) Stats(ctx context.Context, ownerID string) (repo.AlertStats, error) {
	return s.Repo.AlertsStats(ctx, s.DB, ownerID)
}

// PersistResult counts the outcome of one Persist call.
type PersistResult struct {
	Candidates int            `json:"candidatos"`
	Created    int            `json:"criados"`
	Duplicates int            `json:"duplicados"`
	Failed     int            `json:"falhas"`
	Alerts     []domain.Alert `json:"-"`
}

// Add accumulates o into r.
func (r *PersistResult) Add(o PersistResult) {
	r.Candidates += o.Candidates
	r.Created += o.Created
	r.Duplicates += o.Duplicates
	r.Failed += o.Failed
	r.Alerts = append(r.Alerts, o.Alerts...)
}

// Persist runs deduplication over candidates and inserts the survivors,
// one candidate at a time. A failed lookup or insert drops that candidate
// with a logged error; the rest of the batch still runs. Created alerts are
// returned in r.Alerts.
func (s *AlertService) Persist(ctx context.Context, candidates []domain.Alert) PersistResult {
	ctx, span := startSpan(ctx, "Persist", attribute.Int("candidates", len(candidates)))
	defer span.End()

	res := PersistResult{Candidates: len(candidates)}
	for i := range candidates {
		c := candidates[i]
		c.ID, c.CreatedAt, c.Read, c.SentEmail, c.SentWhatsApp = "", time.Time{}, false, false, false
		if c.ReferenceDate != nil {
			d := domain.Date(*c.ReferenceDate)
			c.ReferenceDate = &d
		}

		l := log.With().Str("owner_id", c.OwnerID).Str("kind", string(c.Kind)).Str("entity_id", deref(c.EntityID)).Logger()

		existing, err := s.findDuplicate(ctx, c.Key())
		if err != nil {
			l.Error().Err(err).Msg("dedup lookup failed; candidate dropped")
			res.Failed++
			continue
		}
		if existing != nil {
			res.Duplicates++
			continue
		}
		if err := s.insert(ctx, &c); err != nil {
			l.Error().Err(err).Msg("insert failed; candidate dropped")
			res.Failed++
			continue
		}
		res.Created++
		res.Alerts = append(res.Alerts, c)
	}
	span.SetAttributes(attribute.Int("created", res.Created), attribute.Int("duplicates", res.Duplicates), attribute.Int("failed", res.Failed))
	return res
}

// Cleanup deletes every alert created before cutoff.
func (s *AlertService) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "Cleanup", attribute.String("cutoff", cutoff.Format(time.RFC3339)))
	defer span.End()

	n, err := s.Repo.DeleteAlertsOlderThan(ctx, s.DB, cutoff)
	if err != nil {
		return n, err
	}
	if purged, perr := repo.PurgeExpiredIdempotency(ctx, s.DB, time.Now().UTC()); perr != nil {
		log.Warn().Err(perr).Msg("idempotency purge failed")
	} else if purged > 0 {
		log.Debug().Int64("purged", purged).Msg("expired idempotency keys removed")
	}
	return n, nil
}

// findDuplicate returns the alert suppressing key, or nil.
func (s *AlertService) findDuplicate(ctx context.Context, key domain.DedupKey) (*domain.Alert, error) {
	a, err := s.Repo.FindAlertByKey(ctx, s.DB, key, s.RefireAfterRead)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AlertService) insert(ctx context.Context, a *domain.Alert) error {
	if err := s.Repo.CreateAlert(ctx, s.DB, a); err != nil {
		return err
	}
	if s.Publisher != nil {
		if err := s.Publisher.PublishCreated(ctx, *a); err != nil {
			log.Warn().Err(err).Str("alert_id", a.ID).Msg("publish alert.created failed")
		}
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeTitle trims whitespace and collapses inner runs to one space.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)
