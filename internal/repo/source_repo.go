// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only queries over the back-office
// tables scanned by the alert rules.
//
// Date filters here are coarse: callers pass half-open [from, to) bounds
// with some slack and apply the exact calendar-day checks themselves, so the
// same queries behave identically on Postgres DATE columns and on SQLite
// text timestamps.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
)

func listByDateRange[T any](ctx context.Context, db *gorm.DB, dateCol string, from, to time.Time, preload []string, where string, args ...any) ([]T, error) {
	var out []T
	q := db.WithContext(ctx).
		Where(where, args...).
		Where(dateCol+" IS NOT NULL AND "+dateCol+" >= ? AND "+dateCol+" < ?", from, to)
	for _, p := range preload {
		q = q.Preload(p)
	}
	err := q.Order(dateCol).Order("id").Find(&out).Error
	return out, err
}

func listByDateBefore[T any](ctx context.Context, db *gorm.DB, dateCol string, before time.Time, preload []string, where string, args ...any) ([]T, error) {
	var out []T
	q := db.WithContext(ctx).
		Where(where, args...).
		Where(dateCol+" IS NOT NULL AND "+dateCol+" < ?", before)
	for _, p := range preload {
		q = q.Preload(p)
	}
	err := q.Order(dateCol).Order("id").Find(&out).Error
	return out, err
}

// ListActivePoliciesExpiring returns active policies whose expiry falls in [from, to).
func ListActivePoliciesExpiring(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Policy, error) {
	return listByDateRange[domain.Policy](ctx, db, "data_vencimento", from, to,
		[]string{"Client"}, "status = ?", domain.PolicyStatusActive)
}

// ListOpenInstallmentsDue returns unpaid premium installments due in [from, to).
func ListOpenInstallmentsDue(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Installment, error) {
	return listByDateRange[domain.Installment](ctx, db, "data_vencimento", from, to,
		[]string{"Policy.Client"}, "status = ?", domain.InstallmentStatusOpen)
}

// ListOpenConsortiumInstallmentsDue returns unpaid consortium installments due in [from, to).
func ListOpenConsortiumInstallmentsDue(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.ConsortiumInstallment, error) {
	return listByDateRange[domain.ConsortiumInstallment](ctx, db, "data_vencimento", from, to,
		[]string{"Client"}, "status = ?", domain.InstallmentStatusOpen)
}

// ListOpenFinancingInstallmentsDue returns unpaid financing installments due in [from, to).
func ListOpenFinancingInstallmentsDue(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.FinancingInstallment, error) {
	return listByDateRange[domain.FinancingInstallment](ctx, db, "data_vencimento", from, to,
		[]string{"Client"}, "status = ?", domain.InstallmentStatusOpen)
}

// ListActiveHealthPlansAdjusting returns active health plans with a price
// adjustment in [from, to).
func ListActiveHealthPlansAdjusting(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.HealthPlan, error) {
	return listByDateRange[domain.HealthPlan](ctx, db, "data_reajuste", from, to,
		[]string{"Client"}, "status = ?", domain.HealthPlanStatusActive)
}

// ListOpenTasksDueBefore returns tasks not yet done whose due date is before before.
func ListOpenTasksDueBefore(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.Task, error) {
	return listByDateBefore[domain.Task](ctx, db, "data_vencimento", before,
		nil, "concluida = ?", false)
}

// ListPendingDocumentsDueBefore returns pending documents whose deadline is before before.
func ListPendingDocumentsDueBefore(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.PendingDocument, error) {
	return listByDateBefore[domain.PendingDocument](ctx, db, "data_limite", before,
		[]string{"Client"}, "status = ?", domain.DocumentStatusPending)
}

// ListPendingCommissionsCreatedBefore returns pending commissions created before before.
func ListPendingCommissionsCreatedBefore(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.Commission, error) {
	return listByDateBefore[domain.Commission](ctx, db, "created_at", before,
		[]string{"Policy.Client"}, "status = ?", domain.CommissionStatusPending)
}

// ListOpenClaimsOpenedBefore returns open or in-review claims opened before before.
func ListOpenClaimsOpenedBefore(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.Claim, error) {
	return listByDateBefore[domain.Claim](ctx, db, "data_abertura", before,
		[]string{"Client"}, "status IN ?", []string{domain.ClaimStatusOpen, domain.ClaimStatusInReview})
}

// EachClientWithBirthDate walks every client that has a birth date, in
// batches of size, calling fn once per batch. Month/day matching is left to
// the caller since it has no portable SQL form.
func EachClientWithBirthDate(ctx context.Context, db *gorm.DB, size int, fn func([]domain.Client) error) error {
	if size <= 0 {
		size = 500
	}
	var batch []domain.Client
	res := db.WithContext(ctx).
		Where("data_nascimento IS NOT NULL").
		FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		})
	return res.Error
}

// GetProfile returns the notification profile of a user.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
