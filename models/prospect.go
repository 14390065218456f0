package models

import (
	"time"

	"gorm.io/gorm"
)

type ProspectStatus string

const (
	ProspectActive       ProspectStatus = "active"
	ProspectInactive     ProspectStatus = "inactive"
	ProspectBounced      ProspectStatus = "bounced"
	ProspectSpamReported ProspectStatus = "spam_reported"
	ProspectUnsubscribed ProspectStatus = "unsubscribed"
)

type ConsentStatus string

const (
	ConsentUnknown ConsentStatus = "unknown"
	ConsentGranted ConsentStatus = "granted"
	ConsentRevoked ConsentStatus = "revoked"
)

// Prospect represents a single lead eligible to receive outreach email.
// Email is unique among rows that are not soft-deleted.
type Prospect struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Email    string `gorm:"not null;size:255;uniqueIndex:idx_prospects_email_live,where:deleted_at IS NULL" json:"email"`
	Name     string `gorm:"not null;size:255" json:"name"`
	Company  string `gorm:"size:255" json:"company"`
	Position string `gorm:"size:255" json:"position"`
	Phone    string `gorm:"size:50" json:"phone"`
	Website  string `gorm:"size:255" json:"website"`
	Notes    string `gorm:"type:text" json:"notes"`

	SectorID *uint   `gorm:"index" json:"sector_id"`
	Sector   *Sector `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"sector,omitempty"`

	// Delivery and compliance state
	Status         ProspectStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ConsentStatus  ConsentStatus  `gorm:"type:varchar(20);not null" json:"consent_status"`
	ConsentedAt    *time.Time     `json:"consented_at"`
	UnsubscribedAt *time.Time     `json:"unsubscribed_at"`

	CreatedBy *uint          `gorm:"index" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// ValidProspectStatus reports whether s is a known prospect status
func ValidProspectStatus(s ProspectStatus) bool {
	switch s {
	case ProspectActive, ProspectInactive, ProspectBounced, ProspectSpamReported, ProspectUnsubscribed:
		return true
	}
	return false
}

// Unsubscribe moves the prospect to the opted-out terminal state. The first
// unsubscribe time is kept when applied again.
func (p *Prospect) Unsubscribe(now time.Time) {
	if p.Status != ProspectUnsubscribed || p.UnsubscribedAt == nil {
		p.UnsubscribedAt = &now
	}
	p.Status = ProspectUnsubscribed
	p.ConsentStatus = ConsentRevoked
}
