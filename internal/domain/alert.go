// Package domain defines the persistence models for alerts and the
// back-office records the alert rules read from. These types are mapped with
// GORM and form the core data layer of the alerting service.
package domain

import (
	"time"
)

// Alert is a persisted notification addressed to one user about a
// time-sensitive condition (a renewal window, an overdue task, ...).
//
// Alerts are append-only facts: content fields are never updated after
// creation. Only Read (false→true) and the per-channel sent flags change.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - OwnerID: user the alert is addressed to; indexed with Kind/Read.
//   - Kind: closed category (see AlertKind).
//   - Title / Message: human-readable text generated per kind.
//   - Priority: derived from kind and time to deadline.
//   - EntityKind / EntityID: weak reference to the record that triggered it.
//   - ReferenceDate: calendar day driving the alert (UTC midnight).
//   - Read: set only by "mark read" actions.
//   - SentEmail / SentWhatsApp: set once each when dispatch succeeds.
//   - CreatedAt: immutable creation timestamp.
type Alert struct {
	ID            string     `json:"id"               gorm:"type:char(36);primaryKey"`
	OwnerID       string     `json:"user_id"          gorm:"column:user_id;type:varchar(64);not null;index:idx_alertas_owner,priority:1;index:idx_alertas_key,priority:1"`
	Kind          AlertKind  `json:"tipo"             gorm:"column:tipo;type:varchar(32);not null;index:idx_alertas_key,priority:2"`
	Title         string     `json:"titulo"           gorm:"column:titulo;type:varchar(255);not null"`
	Message       string     `json:"mensagem"         gorm:"column:mensagem;type:text"`
	Priority      Priority   `json:"prioridade"       gorm:"column:prioridade;type:varchar(16);not null;default:'media'"`
	EntityKind    *string    `json:"entidade_tipo"    gorm:"column:entidade_tipo;type:varchar(32)"`
	EntityID      *string    `json:"entidade_id"      gorm:"column:entidade_id;type:varchar(64);index:idx_alertas_key,priority:3"`
	ReferenceDate *time.Time `json:"data_referencia"  gorm:"column:data_referencia;index:idx_alertas_key,priority:4"`
	Read          bool       `json:"lido"             gorm:"column:lido;not null;default:false;index:idx_alertas_owner,priority:2"`
	SentEmail     bool       `json:"enviado_email"    gorm:"column:enviado_email;not null;default:false"`
	SentWhatsApp  bool       `json:"enviado_whatsapp" gorm:"column:enviado_whatsapp;not null;default:false"`
	CreatedAt     time.Time  `json:"created_at"       gorm:"column:created_at;not null;index"`
}

// TableName returns the database table name for Alert.
func (Alert) TableName() string { return "alertas" }

// DedupKey identifies the condition an alert was raised for. At most one
// unread alert exists per key.
type DedupKey struct {
	OwnerID       string
	Kind          AlertKind
	EntityID      *string
	ReferenceDate *time.Time
}

// Key returns the alert's deduplication key.
func (a Alert) Key() DedupKey {
	return DedupKey{
		OwnerID:       a.OwnerID,
		Kind:          a.Kind,
		EntityID:      a.EntityID,
		ReferenceDate: a.ReferenceDate,
	}
}

// Channel names the outbound channels tracked by the sent flags.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Column returns the sent-flag column for the channel.
func (c Channel) Column() string {
	switch c {
	case ChannelEmail:
		return "enviado_email"
	case ChannelWhatsApp:
		return "enviado_whatsapp"
	}
	return ""
}

// Date truncates t to its calendar day, expressed as UTC midnight. All
// reference dates are stored in this form so keys compare by value.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar day of now in loc, as UTC midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}

// DaysBetween returns the whole number of days from a to b (both calendar
// days as produced by Date).
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
