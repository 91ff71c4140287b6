package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/brokerage-alerts/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid schema leakage across tests.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strp(s string) *string { return &s }

func datep(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func seedAlert(t *testing.T, db *gorm.DB, a domain.Alert) domain.Alert {
	t.Helper()
	if a.Title == "" {
		a.Title = "t"
	}
	if a.Priority == "" {
		a.Priority = domain.PriorityMedium
	}
	if a.Kind == "" {
		a.Kind = domain.KindTaskOverdue
	}
	if err := CreateAlert(context.Background(), db, &a); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	return a
}

func TestCreateAlert_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	a := &domain.Alert{OwnerID: "u1", Kind: domain.KindTaskOverdue, Title: "x", Priority: domain.PriorityHigh}
	if err := CreateAlert(context.Background(), db, a); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateAlert_SetsIDAndCreatedAt(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	start := time.Now().UTC().Add(-time.Minute)

	a := &domain.Alert{OwnerID: "u1", Kind: domain.KindRenewalDue, Title: "Renovação", Priority: domain.PriorityHigh,
		EntityKind: strp("apolice"), EntityID: strp("p1"), ReferenceDate: datep(2025, 3, 10)}
	if err := CreateAlert(context.Background(), db, a); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if len(a.ID) != 36 || a.CreatedAt.Before(start) {
		t.Fatalf("unexpected generated fields: id=%q created=%v", a.ID, a.CreatedAt)
	}

	got, err := GetAlert(context.Background(), db, a.ID, "u1")
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got.Kind != domain.KindRenewalDue || got.Read || got.SentEmail || got.SentWhatsApp {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.ReferenceDate == nil || !got.ReferenceDate.Equal(*datep(2025, 3, 10)) {
		t.Fatalf("reference date mismatch: %v", got.ReferenceDate)
	}
}

func TestGetAlert_ScopedToOwner(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	a := seedAlert(t, db, domain.Alert{OwnerID: "u1"})

	if _, err := GetAlert(context.Background(), db, a.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestListAlertsPage_FiltersOrderAndCount(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	seedAlert(t, db, domain.Alert{ID: "a1", OwnerID: "u1", Kind: domain.KindRenewalDue, Priority: domain.PriorityHigh, CreatedAt: base})
	seedAlert(t, db, domain.Alert{ID: "a2", OwnerID: "u1", Kind: domain.KindRenewalDue, Priority: domain.PriorityLow, CreatedAt: base.Add(time.Hour), Read: true})
	seedAlert(t, db, domain.Alert{ID: "a3", OwnerID: "u1", Kind: domain.KindTaskOverdue, Priority: domain.PriorityHigh, CreatedAt: base.Add(2 * time.Hour)})
	seedAlert(t, db, domain.Alert{ID: "b1", OwnerID: "u2", Kind: domain.KindRenewalDue, CreatedAt: base})

	ctx := context.Background()
	all, err := ListAlertsPage(ctx, db, "u1", AlertFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListAlertsPage: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a3" || all[2].ID != "a1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	kind := domain.KindRenewalDue
	unread := false
	f := AlertFilter{Kind: &kind, Read: &unread}
	got, err := ListAlertsPage(ctx, db, "u1", f, 0, 10)
	if err != nil || len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("filtered list = %+v, %v", got, err)
	}
	n, err := CountAlerts(ctx, db, "u1", f)
	if err != nil || n != 1 {
		t.Fatalf("CountAlerts = %d, %v", n, err)
	}

	prio := domain.PriorityHigh
	n, _ = CountAlerts(ctx, db, "u1", AlertFilter{Priority: &prio})
	if n != 2 {
		t.Fatalf("priority filter count = %d", n)
	}

	page2, _ := ListAlertsPage(ctx, db, "u1", AlertFilter{}, 2, 2)
	if len(page2) != 1 || page2[0].ID != "a1" {
		t.Fatalf("second page = %+v", page2)
	}
}

func TestFindAlertByKey_MatchesNullsAndReadState(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()

	ref := datep(2025, 5, 1)
	seedAlert(t, db, domain.Alert{ID: "k1", OwnerID: "u1", Kind: domain.KindRenewalDue, EntityID: strp("p1"), ReferenceDate: ref, Read: true})
	seedAlert(t, db, domain.Alert{ID: "k2", OwnerID: "u1", Kind: domain.KindTaskOverdue})

	key := domain.DedupKey{OwnerID: "u1", Kind: domain.KindRenewalDue, EntityID: strp("p1"), ReferenceDate: datep(2025, 5, 1)}
	if got, err := FindAlertByKey(ctx, db, key, false); err != nil || got.ID != "k1" {
		t.Fatalf("any-state lookup = %+v, %v", got, err)
	}
	if _, err := FindAlertByKey(ctx, db, key, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unread-only lookup should miss read alert, got %v", err)
	}

	other := key
	other.ReferenceDate = datep(2025, 5, 2)
	if _, err := FindAlertByKey(ctx, db, other, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("different reference date must not match, got %v", err)
	}

	nullKey := domain.DedupKey{OwnerID: "u1", Kind: domain.KindTaskOverdue}
	if got, err := FindAlertByKey(ctx, db, nullKey, true); err != nil || got.ID != "k2" {
		t.Fatalf("null-key lookup = %+v, %v", got, err)
	}
}

func TestMarkAlertRead_ChangedAlreadyAndMissing(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()
	a := seedAlert(t, db, domain.Alert{OwnerID: "u1"})

	changed, err := MarkAlertRead(ctx, db, a.ID, "u1")
	if err != nil || !changed {
		t.Fatalf("first mark = %v, %v", changed, err)
	}
	changed, err = MarkAlertRead(ctx, db, a.ID, "u1")
	if err != nil || changed {
		t.Fatalf("second mark = %v, %v", changed, err)
	}
	if _, err := MarkAlertRead(ctx, db, a.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign owner mark should be ErrNotFound, got %v", err)
	}
	if _, err := MarkAlertRead(ctx, db, "nope", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing mark should be ErrNotFound, got %v", err)
	}
}

func TestMarkAllAlertsRead_OnlyOwner(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()
	seedAlert(t, db, domain.Alert{OwnerID: "u1"})
	seedAlert(t, db, domain.Alert{OwnerID: "u1"})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Read: true})
	seedAlert(t, db, domain.Alert{OwnerID: "u2"})

	n, err := MarkAllAlertsRead(ctx, db, "u1")
	if err != nil || n != 2 {
		t.Fatalf("MarkAllAlertsRead = %d, %v", n, err)
	}
	unread := false
	if left, _ := CountAlerts(ctx, db, "u2", AlertFilter{Read: &unread}); left != 1 {
		t.Fatalf("other owner's alerts must stay unread, got %d", left)
	}
}

func TestDeleteAlert_AndDeleteReadAlerts(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedAlert(t, db, domain.Alert{OwnerID: "u1", Read: true})
	}
	keep := seedAlert(t, db, domain.Alert{OwnerID: "u1"})
	seedAlert(t, db, domain.Alert{OwnerID: "u1"})
	seedAlert(t, db, domain.Alert{OwnerID: "u2", Read: true})

	n, err := DeleteReadAlerts(ctx, db, "u1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteReadAlerts = %d, %v", n, err)
	}
	if left, _ := CountAlerts(ctx, db, "u1", AlertFilter{}); left != 2 {
		t.Fatalf("expected 2 remaining, got %d", left)
	}
	if left, _ := CountAlerts(ctx, db, "u2", AlertFilter{}); left != 1 {
		t.Fatalf("other owner's alerts must remain, got %d", left)
	}

	if err := DeleteAlert(ctx, db, keep.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete should be ErrNotFound, got %v", err)
	}
	if err := DeleteAlert(ctx, db, keep.ID, "u1"); err != nil {
		t.Fatalf("DeleteAlert: %v", err)
	}
	if err := DeleteAlert(ctx, db, keep.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestDeleteAlertsOlderThan(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()
	now := time.Now().UTC()

	seedAlert(t, db, domain.Alert{OwnerID: "u1", CreatedAt: now.AddDate(0, 0, -100)})
	seedAlert(t, db, domain.Alert{OwnerID: "u2", CreatedAt: now.AddDate(0, 0, -91), Read: true})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", CreatedAt: now.AddDate(0, 0, -10)})

	n, err := DeleteAlertsOlderThan(ctx, db, now.AddDate(0, 0, -90))
	if err != nil || n != 2 {
		t.Fatalf("DeleteAlertsOlderThan = %d, %v", n, err)
	}
}

func TestCountUnreadGroupings(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()

	seedAlert(t, db, domain.Alert{OwnerID: "u1", Kind: domain.KindRenewalDue, Priority: domain.PriorityUrgent})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Kind: domain.KindRenewalDue, Priority: domain.PriorityHigh})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Kind: domain.KindClientBirthday, Priority: domain.PriorityLow})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Kind: domain.KindClientBirthday, Priority: domain.PriorityLow, Read: true})
	seedAlert(t, db, domain.Alert{OwnerID: "u2", Kind: domain.KindRenewalDue, Priority: domain.PriorityUrgent})

	byPrio, err := CountUnreadByPriority(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountUnreadByPriority: %v", err)
	}
	if byPrio[domain.PriorityUrgent] != 1 || byPrio[domain.PriorityHigh] != 1 || byPrio[domain.PriorityLow] != 1 {
		t.Fatalf("unexpected priority counts: %v", byPrio)
	}
	if _, ok := byPrio[domain.PriorityMedium]; ok {
		t.Fatalf("empty bucket should be absent at repo level: %v", byPrio)
	}

	byKind, err := CountUnreadByKind(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountUnreadByKind: %v", err)
	}
	if byKind[domain.KindRenewalDue] != 2 || byKind[domain.KindClientBirthday] != 1 {
		t.Fatalf("unexpected kind counts: %v", byKind)
	}
}

func TestListOwnersWithUnread(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	seedAlert(t, db, domain.Alert{OwnerID: "u2"})
	seedAlert(t, db, domain.Alert{OwnerID: "u1"})
	seedAlert(t, db, domain.Alert{OwnerID: "u1"})
	seedAlert(t, db, domain.Alert{OwnerID: "u3", Read: true})

	owners, err := ListOwnersWithUnread(context.Background(), db)
	if err != nil {
		t.Fatalf("ListOwnersWithUnread: %v", err)
	}
	if len(owners) != 2 || owners[0] != "u1" || owners[1] != "u2" {
		t.Fatalf("unexpected owners: %v", owners)
	}
}

func TestListUndispatchedAlerts_AndMarkAlertSent(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()
	now := time.Now().UTC()

	urgent := seedAlert(t, db, domain.Alert{OwnerID: "u1", Priority: domain.PriorityUrgent, CreatedAt: now.Add(-2 * time.Hour)})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Priority: domain.PriorityLow, CreatedAt: now.Add(-time.Hour)})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Priority: domain.PriorityHigh, SentEmail: true, SentWhatsApp: true, CreatedAt: now})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Priority: domain.PriorityHigh, Read: true, CreatedAt: now})
	seedAlert(t, db, domain.Alert{OwnerID: "u1", Priority: domain.PriorityHigh, CreatedAt: now.AddDate(0, 0, -30)})

	prios := []domain.Priority{domain.PriorityUrgent, domain.PriorityHigh}
	got, err := ListUndispatchedAlerts(ctx, db, prios, now.AddDate(0, 0, -7), DispatchCursor{}, 10)
	if err != nil {
		t.Fatalf("ListUndispatchedAlerts: %v", err)
	}
	if len(got) != 1 || got[0].ID != urgent.ID {
		t.Fatalf("unexpected undispatched alerts: %+v", got)
	}

	changed, err := MarkAlertSent(ctx, db, urgent.ID, domain.ChannelWhatsApp)
	if err != nil || !changed {
		t.Fatalf("MarkAlertSent = %v, %v", changed, err)
	}
	changed, _ = MarkAlertSent(ctx, db, urgent.ID, domain.ChannelWhatsApp)
	if changed {
		t.Fatalf("sent flag must flip only once")
	}
	// still listed: e-mail flag is false
	if got, _ := ListUndispatchedAlerts(ctx, db, prios, now.AddDate(0, 0, -7), DispatchCursor{}, 10); len(got) != 1 {
		t.Fatalf("alert with a pending channel should still be listed")
	}
	_, _ = MarkAlertSent(ctx, db, urgent.ID, domain.ChannelEmail)
	if got, _ := ListUndispatchedAlerts(ctx, db, prios, now.AddDate(0, 0, -7), DispatchCursor{}, 10); len(got) != 0 {
		t.Fatalf("fully sent alert should not be listed: %+v", got)
	}

	if _, err := MarkAlertSent(ctx, db, urgent.ID, domain.Channel("fax")); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestListUndispatchedAlerts_CursorPagesPastEarlierRows(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	var ids []string
	for i := 0; i < 3; i++ {
		a := seedAlert(t, db, domain.Alert{OwnerID: "u1", Priority: domain.PriorityUrgent, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		ids = append(ids, a.ID)
	}
	prios := []domain.Priority{domain.PriorityUrgent}
	since := base.AddDate(0, 0, -1)

	first, err := ListUndispatchedAlerts(ctx, db, prios, since, DispatchCursor{}, 2)
	if err != nil || len(first) != 2 || first[0].ID != ids[0] || first[1].ID != ids[1] {
		t.Fatalf("first page = %+v, err=%v", first, err)
	}
	last := first[len(first)-1]
	second, err := ListUndispatchedAlerts(ctx, db, prios, since, DispatchCursor{CreatedAt: last.CreatedAt, ID: last.ID}, 2)
	if err != nil || len(second) != 1 || second[0].ID != ids[2] {
		t.Fatalf("second page = %+v, err=%v", second, err)
	}
}

func TestAlertsStats(t *testing.T) {
	db := newTestDB(t, &domain.Alert{})
	ctx := context.Background()

	st, err := AlertsStats(ctx, db, "u1")
	if err != nil || st != (AlertStats{}) {
		t.Fatalf("empty stats = %+v %v", st, err)
	}

	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	seedAlert(t, db, domain.Alert{OwnerID: "u1", CreatedAt: t1})
	sent := seedAlert(t, db, domain.Alert{OwnerID: "u1", CreatedAt: t1.Add(time.Hour), Read: true})

	st, err = AlertsStats(ctx, db, "u1")
	if err != nil || st.Count != 2 || st.Unread != 1 || st.Sent != 0 ||
		st.LatestCreatedAt == nil || !st.LatestCreatedAt.Equal(t1.Add(time.Hour)) {
		t.Fatalf("stats = %+v %v", st, err)
	}

	_, _ = MarkAlertSent(ctx, db, sent.ID, domain.ChannelEmail)
	_, _ = MarkAlertSent(ctx, db, sent.ID, domain.ChannelWhatsApp)
	if st, _ = AlertsStats(ctx, db, "u1"); st.Sent != 2 {
		t.Fatalf("sent flags = %d, want 2", st.Sent)
	}
}
