// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Alert
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Every query that takes an ownerID is
// scoped to that owner; rows of other owners behave as if missing.
//
// Error semantics:
//   - When an alert is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// AlertFilter narrows listings. Nil fields do not filter.
type AlertFilter struct {
	Kind     *domain.AlertKind
	Read     *bool
	Priority *domain.Priority
}

func (f AlertFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Kind != nil {
		q = q.Where("tipo = ?", *f.Kind)
	}
	if f.Read != nil {
		q = q.Where("lido = ?", *f.Read)
	}
	if f.Priority != nil {
		q = q.Where("prioridade = ?", *f.Priority)
	}
	return q
}

// CreateAlert inserts a. When a.ID is empty a UUID is generated, and a zero
// CreatedAt is set to the current UTC time.
func CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(a).Error
}

// GetAlert fetches a single alert by its ID and owner.
func GetAlert(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Alert, error) {
	var a domain.Alert
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountAlerts returns the number of ownerID's alerts matching f.
func CountAlerts(ctx context.Context, db *gorm.DB, ownerID string, f AlertFilter) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Alert{}).Where("user_id = ?", ownerID)
	err := f.apply(q).Count(&total).Error
	return total, err
}

// ListAlertsPage returns a page of ownerID's alerts matching f, newest first.
// Ties on created_at are broken by id so pages are stable.
func ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, f AlertFilter, offset, limit int) ([]domain.Alert, error) {
	var out []domain.Alert
	q := db.WithContext(ctx).Where("user_id = ?", ownerID)
	err := f.apply(q).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FindAlertByKey returns the most recent alert with the given dedup key.
// With unreadOnly, read alerts are ignored. Nil key parts match NULL columns.
func FindAlertByKey(ctx context.Context, db *gorm.DB, key domain.DedupKey, unreadOnly bool) (*domain.Alert, error) {
	q := db.WithContext(ctx).Where("user_id = ? AND tipo = ?", key.OwnerID, key.Kind)
	if key.EntityID == nil {
		q = q.Where("entidade_id IS NULL")
	} else {
		q = q.Where("entidade_id = ?", *key.EntityID)
	}
	if key.ReferenceDate == nil {
		q = q.Where("data_referencia IS NULL")
	} else {
		q = q.Where("data_referencia = ?", domain.Date(*key.ReferenceDate))
	}
	if unreadOnly {
		q = q.Where("lido = ?", false)
	}

	var a domain.Alert
	if err := q.Order("created_at desc").First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkAlertRead sets lido on one alert. It reports whether the flag changed;
// an alert that was already read yields (false, nil). ErrNotFound is returned
// when the alert does not exist for ownerID.
func MarkAlertRead(ctx context.Context, db *gorm.DB, id, ownerID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("id = ? AND user_id = ? AND lido = ?", id, ownerID, false).
		Update("lido", true)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if _, err := GetAlert(ctx, db, id, ownerID); err != nil {
		return false, err
	}
	return false, nil
}

// MarkAllAlertsRead marks every unread alert of ownerID as read and returns
// how many rows changed.
func MarkAllAlertsRead(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("user_id = ? AND lido = ?", ownerID, false).
		Update("lido", true)
	return res.RowsAffected, res.Error
}

// DeleteAlert removes one alert, or returns ErrNotFound.
func DeleteAlert(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&domain.Alert{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteReadAlerts removes every read alert of ownerID.
func DeleteReadAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("user_id = ? AND lido = ?", ownerID, true).
		Delete(&domain.Alert{})
	return res.RowsAffected, res.Error
}

// DeleteAlertsOlderThan removes alerts of every owner created before cutoff,
// read or not.
func DeleteAlertsOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.Alert{})
	return res.RowsAffected, res.Error
}

// CountUnreadByPriority groups ownerID's unread alerts by priority. Buckets
// with no alerts are absent from the map.
func CountUnreadByPriority(ctx context.Context, db *gorm.DB, ownerID string) (map[domain.Priority]int64, error) {
	var rows []struct {
		Prioridade string
		N          int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Select("prioridade, COUNT(*) AS n").
		Where("user_id = ? AND lido = ?", ownerID, false).
		Group("prioridade").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Priority]int64, len(rows))
	for _, r := range rows {
		out[domain.Priority(r.Prioridade)] = r.N
	}
	return out, nil
}

// CountUnreadByKind groups ownerID's unread alerts by kind.
func CountUnreadByKind(ctx context.Context, db *gorm.DB, ownerID string) (map[domain.AlertKind]int64, error) {
	var rows []struct {
		Tipo string
		N    int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Select("tipo, COUNT(*) AS n").
		Where("user_id = ? AND lido = ?", ownerID, false).
		Group("tipo").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AlertKind]int64, len(rows))
	for _, r := range rows {
		out[domain.AlertKind(r.Tipo)] = r.N
	}
	return out, nil
}

// ListOwnersWithUnread returns the distinct owners holding unread alerts.
func ListOwnersWithUnread(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("lido = ?", false).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &out).Error
	return out, err
}

// DispatchCursor is the keyset position of the last alert a dispatch pass
// looked at. The zero value starts from the oldest alert.
type DispatchCursor struct {
	CreatedAt time.Time
	ID        string
}

// ListUndispatchedAlerts returns unread alerts created after since, with one
// of the given priorities, that still miss at least one sent flag. Rows come
// oldest first, strictly after cur, at most limit of them. Paging by cursor
// lets a pass move past alerts no channel can deliver.
func ListUndispatchedAlerts(ctx context.Context, db *gorm.DB, priorities []domain.Priority, since time.Time, cur DispatchCursor, limit int) ([]domain.Alert, error) {
	q := db.WithContext(ctx).
		Where("lido = ? AND created_at >= ?", false, since).
		Where("prioridade IN ?", priorities).
		Where("enviado_email = ? OR enviado_whatsapp = ?", false, false)
	if cur.ID != "" {
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", cur.CreatedAt, cur.CreatedAt, cur.ID)
	}
	var out []domain.Alert
	err := q.Order("created_at asc").Order("id asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkAlertSent flips the sent flag of ch on one alert. It reports whether
// the flag changed; a flag already set yields (false, nil).
func MarkAlertSent(ctx context.Context, db *gorm.DB, id string, ch domain.Channel) (bool, error) {
	col := ch.Column()
	if col == "" {
		return false, gorm.ErrInvalidField
	}
	res := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("id = ? AND "+col+" = ?", id, false).
		Update(col, true)
	return res.RowsAffected > 0, res.Error
}

// AlertStats is the aggregate an owner's list ETag is built from. Every
// write path moves at least one field: inserts and deletes Count, reads
// Unread, dispatch Sent.
type AlertStats struct {
	Count           int64
	Unread          int64
	Sent            int64 // set enviado_* flags, summed over both channels
	LatestCreatedAt *time.Time
}

// AlertsStats returns the owner's AlertStats; LatestCreatedAt is nil when the
// owner has no alerts.
func AlertsStats(ctx context.Context, db *gorm.DB, ownerID string) (AlertStats, error) {
	var st AlertStats
	q := db.WithContext(ctx).Model(&domain.Alert{}).Where("user_id = ?", ownerID)

	if err := q.Session(&gorm.Session{}).Count(&st.Count).Error; err != nil {
		return AlertStats{}, err
	}
	if st.Count == 0 {
		return st, nil
	}
	if err := q.Session(&gorm.Session{}).Where("lido = ?", false).Count(&st.Unread).Error; err != nil {
		return AlertStats{}, err
	}
	var sentEmail, sentWA int64
	if err := q.Session(&gorm.Session{}).Where("enviado_email = ?", true).Count(&sentEmail).Error; err != nil {
		return AlertStats{}, err
	}
	if err := q.Session(&gorm.Session{}).Where("enviado_whatsapp = ?", true).Count(&sentWA).Error; err != nil {
		return AlertStats{}, err
	}
	st.Sent = sentEmail + sentWA

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return AlertStats{}, err
	}
	st.LatestCreatedAt = &row.CreatedAt
	return st, nil
}
