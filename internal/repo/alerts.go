package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// Alerts exposes the alert repository functions as methods, so services can
// depend on an interface and tests can substitute fakes.
type Alerts struct{}

func (Alerts) CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error {
	return CreateAlert(ctx, db, a)
}

func (Alerts) GetAlert(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Alert, error) {
	return GetAlert(ctx, db, id, ownerID)
}

func (Alerts) CountAlerts(ctx context.Context, db *gorm.DB, ownerID string, f AlertFilter) (int64, error) {
	return CountAlerts(ctx, db, ownerID, f)
}

func (Alerts) ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, f AlertFilter, offset, limit int) ([]domain.Alert, error) {
	return ListAlertsPage(ctx, db, ownerID, f, offset, limit)
}

func (Alerts) FindAlertByKey(ctx context.Context, db *gorm.DB, key domain.DedupKey, unreadOnly bool) (*domain.Alert, error) {
	return FindAlertByKey(ctx, db, key, unreadOnly)
}

func (Alerts) MarkAlertRead(ctx context.Context, db *gorm.DB, id, ownerID string) (bool, error) {
	return MarkAlertRead(ctx, db, id, ownerID)
}

func (Alerts) MarkAllAlertsRead(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return MarkAllAlertsRead(ctx, db, ownerID)
}

func (Alerts) DeleteAlert(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	return DeleteAlert(ctx, db, id, ownerID)
}

func (Alerts) DeleteReadAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return DeleteReadAlerts(ctx, db, ownerID)
}

func (Alerts) DeleteAlertsOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return DeleteAlertsOlderThan(ctx, db, cutoff)
}

func (Alerts) CountUnreadByPriority(ctx context.Context, db *gorm.DB, ownerID string) (map[domain.Priority]int64, error) {
	return CountUnreadByPriority(ctx, db, ownerID)
}

func (Alerts) CountUnreadByKind(ctx context.Context, db *gorm.DB, ownerID string) (map[domain.AlertKind]int64, error) {
	return CountUnreadByKind(ctx, db, ownerID)
}

func (Alerts) AlertsStats(ctx context.Context, db *gorm.DB, ownerID string) (AlertStats, error) {
	return AlertsStats(ctx, db, ownerID)
}

func (Alerts) ListOwnersWithUnread(ctx context.Context, db *gorm.DB) ([]string, error) {
	return ListOwnersWithUnread(ctx, db)
}
