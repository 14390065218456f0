package models

import "time"

type CampaignType string

const (
	CampaignIndividual CampaignType = "individual"
	CampaignMassive    CampaignType = "massive"
	CampaignScheduled  CampaignType = "scheduled"
)

// CampaignState is derived from the campaign timestamps, it is not stored
type CampaignState string

const (
	StateCreated   CampaignState = "created"
	StateScheduled CampaignState = "scheduled"
	StateStarted   CampaignState = "started"
	StateCompleted CampaignState = "completed"
)

// Campaign binds one template and one sender to a recipient set
type Campaign struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null;size:255" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	TemplateID uint           `gorm:"not null;index" json:"template_id"`
	Template   *EmailTemplate `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"template,omitempty"`
	SenderID   uint           `gorm:"not null;index" json:"sender_id"`
	Sender     *Sender        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"sender,omitempty"`
	SectorID   *uint          `gorm:"index" json:"sector_id"`
	Sector     *Sector        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"sector,omitempty"`

	// Scheduling
	Type        CampaignType `gorm:"type:varchar(20);not null;index" json:"type"`
	ScheduledAt *time.Time   `gorm:"index" json:"scheduled_at"`
	StartedAt   *time.Time   `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`

	TotalRecipients int `gorm:"not null;default:0" json:"total_recipients"`

	CreatedBy uint  `gorm:"not null;index" json:"created_by"`
	Creator   *User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State derives the lifecycle position: created -> scheduled -> started -> completed
func (c *Campaign) State() CampaignState {
	switch {
	case c.CompletedAt != nil:
		return StateCompleted
	case c.StartedAt != nil:
		return StateStarted
	case c.ScheduledAt != nil:
		return StateScheduled
	}
	return StateCreated
}

// Started reports whether the campaign became immutable
func (c *Campaign) Started() bool {
	return c.StartedAt != nil
}

// ValidCampaignType reports whether t is a known campaign type
func ValidCampaignType(t CampaignType) bool {
	switch t {
	case CampaignIndividual, CampaignMassive, CampaignScheduled:
		return true
	}
	return false
}

// CampaignRecipient attaches a prospect to a campaign with optional
// per-recipient placeholder overrides
type CampaignRecipient struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CampaignID       uint      `gorm:"not null;uniqueIndex:idx_campaign_recipients_pair" json:"campaign_id"`
	Campaign         *Campaign `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProspectID       uint      `gorm:"not null;uniqueIndex:idx_campaign_recipients_pair;index" json:"prospect_id"`
	Prospect         *Prospect `gorm:"constraint:OnDelete:CASCADE" json:"prospect,omitempty"`
	PersonalizedData JSONMap   `gorm:"serializer:json" json:"personalized_data"`
	CreatedAt        time.Time `json:"created_at"`
}
