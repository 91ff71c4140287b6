package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/brokerage-alerts/internal/domain"
	"github.com/tbourn/brokerage-alerts/internal/repo"
)

func newAlertDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Alert{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestAlertService(t *testing.T) *AlertService {
	t.Helper()
	return NewAlertService(newAlertDB(t), repo.Alerts{})
}

func strp(s string) *string { return &s }

func renewalCandidate(owner, policy string, ref time.Time) domain.Alert {
	return domain.Alert{
		OwnerID:       owner,
		Kind:          domain.KindRenewalDue,
		Title:         "Renovação de apólice",
		Message:       "vence em breve",
		Priority:      domain.PriorityHigh,
		EntityKind:    strp("apolice"),
		EntityID:      strp(policy),
		ReferenceDate: &ref,
	}
}

type recordingPublisher struct {
	got []domain.Alert
	err error
}

func (p *recordingPublisher) PublishCreated(_ context.Context, a domain.Alert) error {
	p.got = append(p.got, a)
	return p.err
}

// failingRepo wraps the real repository and fails lookups for one entity.
type failingRepo struct {
	repo.Alerts
	failEntity string
}

func (r failingRepo) FindAlertByKey(ctx context.Context, db *gorm.DB, key domain.DedupKey, unreadOnly bool) (*domain.Alert, error) {
	if key.EntityID != nil && *key.EntityID == r.failEntity {
		return nil, errors.New("storage unavailable")
	}
	return r.Alerts.FindAlertByKey(ctx, db, key, unreadOnly)
}

func TestNewAlertService_Defaults(t *testing.T) {
	s := NewAlertService(nil, repo.Alerts{})
	if s.MaxTitleRunes != 255 || s.MaxMessageRunes != 2000 || s.RefireAfterRead {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestPersist_IdempotentDedup(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()
	ref := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)
	batch := []domain.Alert{renewalCandidate("u1", "p1", ref)}

	first := s.Persist(ctx, batch)
	if first.Created != 1 || first.Duplicates != 0 || len(first.Alerts) != 1 || first.Alerts[0].ID == "" {
		t.Fatalf("first run = %+v", first)
	}
	second := s.Persist(ctx, batch)
	if second.Created != 0 || second.Duplicates != 1 {
		t.Fatalf("second run = %+v", second)
	}

	kind := domain.KindRenewalDue
	items, total, err := s.ListPage(ctx, "u1", repo.AlertFilter{Kind: &kind}, 1, 20)
	if err != nil || total != 1 || len(items) != 1 || items[0].Read {
		t.Fatalf("list = %+v total=%d err=%v", items, total, err)
	}
}

func TestPersist_DuplicateWithinSameBatch(t *testing.T) {
	s := newTestAlertService(t)
	ref := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)
	c := renewalCandidate("u1", "p1", ref)

	res := s.Persist(context.Background(), []domain.Alert{c, c})
	if res.Created != 1 || res.Duplicates != 1 || res.Candidates != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPersist_ReadAlertSuppressesByDefault(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()
	ref := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)
	batch := []domain.Alert{renewalCandidate("u1", "p1", ref)}

	first := s.Persist(ctx, batch)
	if _, err := s.MarkRead(ctx, "u1", first.Alerts[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	if res := s.Persist(ctx, batch); res.Created != 0 || res.Duplicates != 1 {
		t.Fatalf("read alert must suppress re-fire by default: %+v", res)
	}

	// A new reference date is a new condition.
	next := batch[0]
	nextRef := ref.AddDate(1, 0, 0)
	next.ReferenceDate = &nextRef
	if res := s.Persist(ctx, []domain.Alert{next}); res.Created != 1 {
		t.Fatalf("new reference date must alert again: %+v", res)
	}
}

func TestPersist_RefireAfterRead(t *testing.T) {
	s := newTestAlertService(t)
	s.RefireAfterRead = true
	ctx := context.Background()
	ref := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)
	batch := []domain.Alert{renewalCandidate("u1", "p1", ref)}

	first := s.Persist(ctx, batch)
	if res := s.Persist(ctx, batch); res.Created != 0 {
		t.Fatalf("unread alert must still suppress: %+v", res)
	}
	if _, err := s.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	res := s.Persist(ctx, batch)
	if res.Created != 1 || res.Alerts[0].ID == first.Alerts[0].ID {
		t.Fatalf("read alert should re-fire with RefireAfterRead: %+v", res)
	}
}

func TestPersist_FailureDropsOnlyThatCandidate(t *testing.T) {
	db := newAlertDB(t)
	s := NewAlertService(db, failingRepo{failEntity: "bad"})
	ref := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)

	res := s.Persist(context.Background(), []domain.Alert{
		renewalCandidate("u1", "p1", ref),
		renewalCandidate("u1", "bad", ref),
		renewalCandidate("u1", "p2", ref),
	})
	if res.Created != 2 || res.Failed != 1 || res.Duplicates != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPersist_ClearsCallerControlledFields(t *testing.T) {
	s := newTestAlertService(t)
	ref := time.Date(2025, 6, 25, 15, 30, 0, 0, time.UTC)
	c := renewalCandidate("u1", "p1", ref)
	c.ID, c.Read, c.SentEmail = "fixed", true, true

	res := s.Persist(context.Background(), []domain.Alert{c})
	a := res.Alerts[0]
	if a.ID == "fixed" || a.Read || a.SentEmail {
		t.Fatalf("candidate fields leaked: %+v", a)
	}
	if !a.ReferenceDate.Equal(time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("reference date not truncated: %v", a.ReferenceDate)
	}
}

func TestPersist_PublishesCreatedAlerts(t *testing.T) {
	s := newTestAlertService(t)
	pub := &recordingPublisher{err: errors.New("redis down")}
	s.Publisher = pub
	ref := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)

	res := s.Persist(context.Background(), []domain.Alert{renewalCandidate("u1", "p1", ref)})
	if res.Created != 1 || len(pub.got) != 1 || pub.got[0].ID != res.Alerts[0].ID {
		t.Fatalf("publish not called for created alert: res=%+v got=%+v", res, pub.got)
	}
	s.Persist(context.Background(), []domain.Alert{renewalCandidate("u1", "p1", ref)})
	if len(pub.got) != 1 {
		t.Fatalf("duplicates must not be published")
	}
}

func TestMarkRead_Monotonic(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()
	a, _, err := s.Create(ctx, "u1", CreateInput{Kind: domain.KindTaskOverdue, Title: "Ligar"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := s.MarkRead(ctx, "u1", a.ID)
		if err != nil || !got.Read {
			t.Fatalf("MarkRead #%d = %+v, %v", i, got, err)
		}
	}
	if n, _ := s.MarkAllRead(ctx, "u1"); n != 0 {
		t.Fatalf("MarkAllRead after read should change nothing, got %d", n)
	}
	got, _ := s.Get(ctx, "u1", a.ID)
	if !got.Read {
		t.Fatalf("read flag reverted")
	}

	if _, err := s.MarkRead(ctx, "u2", a.ID); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("foreign MarkRead = %v, want ErrAlertNotFound", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newTestAlertService(t)
	s.MaxTitleRunes = 5
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"kind", CreateInput{Kind: "x", Title: "a"}, ErrInvalidKind},
		{"title", CreateInput{Kind: domain.KindTaskOverdue, Title: "   "}, ErrTitleRequired},
		{"long", CreateInput{Kind: domain.KindTaskOverdue, Title: "ãããããã"}, ErrTooLong},
		{"priority", CreateInput{Kind: domain.KindTaskOverdue, Title: "ok", Priority: "critica"}, ErrInvalidPriority},
	}
	for _, c := range cases {
		if _, _, err := s.Create(ctx, "u1", c.in); !errors.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
}

func TestCreate_DefaultsAndDedupOnEntity(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()
	ref := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	in := CreateInput{Kind: domain.KindCommissionPending, Title: "  Cobrar   seguradora ", EntityID: strp("m1"), ReferenceDate: &ref}
	a, created, err := s.Create(ctx, "u1", in)
	if err != nil || !created {
		t.Fatalf("Create = %+v, %v, %v", a, created, err)
	}
	if a.Title != "Cobrar seguradora" || a.Priority != domain.PriorityMedium || *a.EntityKind != "comissao" {
		t.Fatalf("unexpected defaults: %+v", a)
	}

	again, created, err := s.Create(ctx, "u1", in)
	if err != nil || created || again.ID != a.ID {
		t.Fatalf("second Create = %+v, %v, %v", again, created, err)
	}

	// No entity id: never deduplicated.
	free := CreateInput{Kind: domain.KindTaskOverdue, Title: "Lembrete", Priority: domain.PriorityUrgent}
	_, c1, _ := s.Create(ctx, "u1", free)
	_, c2, _ := s.Create(ctx, "u1", free)
	if !c1 || !c2 {
		t.Fatalf("alerts without entity must always be created")
	}
}

func TestSummary_ZeroFilledAndConsistent(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()

	empty, err := s.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if empty.Total != 0 || len(empty.ByKind) != len(domain.Kinds()) {
		t.Fatalf("empty summary = %+v", empty)
	}

	for _, p := range []domain.Priority{domain.PriorityUrgent, domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityLow} {
		if _, _, err := s.Create(ctx, "u1", CreateInput{Kind: domain.KindTaskOverdue, Title: "t", Priority: p}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	read, _, _ := s.Create(ctx, "u1", CreateInput{Kind: domain.KindClientBirthday, Title: "t"})
	_, _ = s.MarkRead(ctx, "u1", read.ID)
	_, _, _ = s.Create(ctx, "u2", CreateInput{Kind: domain.KindTaskOverdue, Title: "t"})

	sum, err := s.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Urgent != 2 || sum.High != 1 || sum.Medium != 0 || sum.Low != 1 {
		t.Fatalf("buckets = %+v", sum)
	}
	if sum.Total != sum.Urgent+sum.High+sum.Medium+sum.Low || sum.Total != 4 {
		t.Fatalf("total = %d", sum.Total)
	}
	if sum.ByKind[domain.KindTaskOverdue] != 4 || sum.ByKind[domain.KindClientBirthday] != 0 {
		t.Fatalf("by kind = %v", sum.ByKind)
	}
	if _, ok := sum.ByKind[domain.KindDocumentPending]; !ok {
		t.Fatalf("kinds must be zero-filled: %v", sum.ByKind)
	}
}

func TestDeleteAllRead_LeavesUnread(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		a, _, err := s.Create(ctx, "u1", CreateInput{Kind: domain.KindTaskOverdue, Title: fmt.Sprintf("t%d", i)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, a.ID)
	}
	for _, id := range ids[:3] {
		if _, err := s.MarkRead(ctx, "u1", id); err != nil {
			t.Fatalf("MarkRead: %v", err)
		}
	}

	n, err := s.DeleteAllRead(ctx, "u1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteAllRead = %d, %v", n, err)
	}
	_, total, _ := s.ListPage(ctx, "u1", repo.AlertFilter{}, 1, 20)
	if total != 2 {
		t.Fatalf("remaining = %d, want 2", total)
	}
}

func TestDeleteAndGet_NotFound(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()
	if err := s.Delete(ctx, "u1", "missing"); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("Delete = %v", err)
	}
	if _, err := s.Get(ctx, "u1", "missing"); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("Get = %v", err)
	}
}

func TestListPage_RejectsUnknownFilters(t *testing.T) {
	s := newTestAlertService(t)
	bad := domain.AlertKind("nope")
	if _, _, err := s.ListPage(context.Background(), "u1", repo.AlertFilter{Kind: &bad}, 1, 10); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("err = %v", err)
	}
	prio := domain.Priority("x")
	if _, _, err := s.ListPage(context.Background(), "u1", repo.AlertFilter{Priority: &prio}, 1, 10); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("err = %v", err)
	}
}

func TestCleanup_DeletesOldAlerts(t *testing.T) {
	s := newTestAlertService(t)
	ctx := context.Background()
	old := domain.Alert{OwnerID: "u1", Kind: domain.KindTaskOverdue, Title: "old", Priority: domain.PriorityLow, CreatedAt: time.Now().UTC().AddDate(0, 0, -120)}
	if err := repo.CreateAlert(ctx, s.DB, &old); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _, _ = s.Create(ctx, "u1", CreateInput{Kind: domain.KindTaskOverdue, Title: "new"})

	n, err := s.Cleanup(ctx, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil || n != 1 {
		t.Fatalf("Cleanup = %d, %v", n, err)
	}
}
