package models

import "time"

type SendStatus string

const (
	SendQueued       SendStatus = "queued"
	SendSent         SendStatus = "sent"
	SendDelivered    SendStatus = "delivered"
	SendBounced      SendStatus = "bounced"
	SendFailed       SendStatus = "failed"
	SendSpamReported SendStatus = "spam_reported"
)

// SendStatuses lists every delivery status in lifecycle order
var SendStatuses = []SendStatus{SendQueued, SendSent, SendDelivered, SendBounced, SendFailed, SendSpamReported}

// ValidSendStatus reports whether s is a known delivery status
func ValidSendStatus(s SendStatus) bool {
	for _, known := range SendStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// EmailSend is the per-recipient delivery attempt record. The sending worker
// owns the status transitions; this service only records and aggregates rows.
type EmailSend struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"not null;index:idx_email_sends_campaign_status,priority:1" json:"campaign_id"`
	ProspectID uint `gorm:"not null;index" json:"prospect_id"`
	SenderID   uint `gorm:"not null;index:idx_email_sends_sender_sent,priority:1" json:"sender_id"`

	Campaign *Campaign `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Prospect *Prospect `gorm:"constraint:OnDelete:RESTRICT" json:"prospect,omitempty"`
	Sender   *Sender   `gorm:"constraint:OnDelete:RESTRICT" json:"-"`

	TrackingID       string     `gorm:"not null;size:100;uniqueIndex" json:"tracking_id"`
	MessageID        string     `gorm:"size:255;index" json:"message_id"`
	ProviderResponse JSONMap    `gorm:"serializer:json" json:"provider_response"`
	Status           SendStatus `gorm:"type:varchar(20);not null;index:idx_email_sends_campaign_status,priority:2" json:"status"`

	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at"`
	SentAt      *time.Time `gorm:"index:idx_email_sends_sender_sent,priority:2" json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at"`

	ErrorMessage string `gorm:"type:text" json:"error_message"`

	Credential *Credential `gorm:"foreignKey:EmailSendID" json:"credential,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is the optional one-to-one payload attached to an EmailSend
type Credential struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	EmailSendID    uint       `gorm:"not null;uniqueIndex" json:"email_send_id"`
	EmailSend      *EmailSend `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Username       string     `gorm:"size:255" json:"username"`
	CredentialType string     `gorm:"size:100" json:"credential_type"`
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at"`
	Metadata       JSONMap    `gorm:"serializer:json" json:"metadata"`
	CreatedAt      time.Time  `json:"created_at"`
}
