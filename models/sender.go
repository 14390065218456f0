package models

import (
	"strings"
	"time"
)

// Sender represents an outbound identity and its provider configuration.
// At most one sender holds IsDefault; the partial unique index enforces it
// at the storage layer.
type Sender struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Basic identification
	Name      string `gorm:"not null;size:255" json:"name"`
	Email     string `gorm:"not null;size:255;uniqueIndex" json:"email"`
	ReplyTo   string `gorm:"size:255" json:"reply_to"`
	Signature string `gorm:"type:text" json:"signature"`

	// Provider configuration (smtp host/port/user, api keys...). Secret
	// values are encrypted before they are stored.
	SMTPConfig JSONMap `gorm:"column:smtp_config;serializer:json" json:"smtp_config"`

	IsDefault  bool `gorm:"not null;uniqueIndex:idx_senders_single_default,where:is_default = true" json:"is_default"`
	DailyLimit int  `gorm:"not null;default:500" json:"daily_limit"`
	Active     bool `gorm:"not null;index" json:"active"`

	CreatedBy *uint     `gorm:"index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var secretConfigKeys = []string{"password", "pass", "api_key", "apikey", "secret", "token"}

// IsSecretConfigKey reports whether an smtp_config key holds a credential
func IsSecretConfigKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretConfigKeys {
		if k == s || strings.HasSuffix(k, "_"+s) {
			return true
		}
	}
	return false
}

// Sanitize masks credentials before the sender is returned to callers
func (s *Sender) Sanitize() {
	if s.SMTPConfig == nil {
		return
	}
	masked := make(JSONMap, len(s.SMTPConfig))
	for k, v := range s.SMTPConfig {
		if IsSecretConfigKey(k) {
			masked[k] = "********"
			continue
		}
		masked[k] = v
	}
	s.SMTPConfig = masked
}
