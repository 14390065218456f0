package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"outreach/config"
	"outreach/models"
	"outreach/utils"
	"outreach/utils/testdb"
)

func init() {
	config.AppConfig.Environment = "test"
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.JWTExpiresIn = time.Hour
	config.AppConfig.JWTRefreshExpiresIn = 24 * time.Hour
}

type fixtures struct {
	t  *testing.T
	db *gorm.DB
	n  int
}

func newFixtures(t *testing.T) *fixtures {
	return &fixtures{t: t, db: testdb.Open(t)}
}

func (f *fixtures) seq() int {
	f.n++
	return f.n
}

func (f *fixtures) user(role models.Role) *models.User {
	u := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", f.seq()),
		PasswordHash: "x",
		Name:         "Test User",
		Role:         role,
		Active:       true,
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *fixtures) sector(name string) *models.Sector {
	s := &models.Sector{Name: name, Active: true}
	require.NoError(f.t, f.db.Create(s).Error)
	return s
}

func (f *fixtures) template(createdBy uint, sectorID *uint) *models.EmailTemplate {
	tpl := &models.EmailTemplate{
		Name:        fmt.Sprintf("Template %d", f.seq()),
		SectorID:    sectorID,
		Subject:     "Hello {{first_name}}",
		HTMLContent: "<p>Hi {{first_name}} from {{company}}</p>",
		TextContent: "Hi {{first_name}} from {{company}}",
		Variables:   []string{"first_name", "company"},
		Active:      true,
		CreatedBy:   createdBy,
	}
	require.NoError(f.t, f.db.Create(tpl).Error)
	return tpl
}

func (f *fixtures) sender(dailyLimit int) *models.Sender {
	s := &models.Sender{
		Name:       "Sales",
		Email:      fmt.Sprintf("sender%d@example.com", f.seq()),
		DailyLimit: dailyLimit,
		Active:     true,
	}
	require.NoError(f.t, f.db.Create(s).Error)
	return s
}

func (f *fixtures) prospect(sectorID *uint) *models.Prospect {
	p := &models.Prospect{
		Email:         fmt.Sprintf("prospect%d@example.com", f.seq()),
		Name:          "Prospect",
		SectorID:      sectorID,
		Status:        models.ProspectActive,
		ConsentStatus: models.ConsentUnknown,
	}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

func (f *fixtures) campaign(createdBy, templateID, senderID uint) *models.Campaign {
	c := &models.Campaign{
		Name:       fmt.Sprintf("Campaign %d", f.seq()),
		TemplateID: templateID,
		SenderID:   senderID,
		Type:       models.CampaignMassive,
		CreatedBy:  createdBy,
	}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

func (f *fixtures) send(campaignID, prospectID, senderID uint, status models.SendStatus, sentAt *time.Time) *models.EmailSend {
	s := &models.EmailSend{
		CampaignID: campaignID,
		ProspectID: prospectID,
		SenderID:   senderID,
		TrackingID: fmt.Sprintf("trk-%d", f.seq()),
		Status:     status,
		SentAt:     sentAt,
	}
	require.NoError(f.t, f.db.Create(s).Error)
	return s
}

func requireAppError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code, appErr.Message)
}
