package models

import "time"

// EmailTemplate represents a reusable email body with {{placeholder}} variables
type EmailTemplate struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name     string  `gorm:"not null;size:255" json:"name"`
	SectorID *uint   `gorm:"index" json:"sector_id"`
	Sector   *Sector `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"sector,omitempty"`

	Subject     string   `gorm:"not null;size:500" json:"subject"`
	HTMLContent string   `gorm:"type:text;not null" json:"html_content"`
	TextContent string   `gorm:"type:text" json:"text_content"`
	Variables   []string `gorm:"serializer:json" json:"variables"`

	IsDefault bool `gorm:"not null;index" json:"is_default"`
	Active    bool `gorm:"not null;index" json:"active"`

	CreatedBy uint  `gorm:"not null;index" json:"created_by"`
	Creator   *User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}
