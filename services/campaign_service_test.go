package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/events"
	"outreach/models"
	"outreach/utils"
)

func TestCampaignCreateWithRecipients(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	rec := &events.Recorder{}
	svc := NewCampaignService(f.db, rec)

	admin := f.user(models.RoleAdmin)
	tpl := f.template(admin.ID, nil)
	snd := f.sender(500)
	p1 := f.prospect(nil)
	p2 := f.prospect(nil)

	campaign, err := svc.Create(ctx, CreateCampaignInput{
		Name:       "Launch",
		TemplateID: tpl.ID,
		SenderID:   snd.ID,
		Recipients: []RecipientInput{
			{ProspectID: p1.ID},
			{ProspectID: p2.ID, PersonalizedData: models.JSONMap{"first_name": "Ana"}},
			{ProspectID: 9999},
		},
	}, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignMassive, campaign.Type)
	assert.Equal(t, admin.ID, campaign.CreatedBy)
	assert.Equal(t, 2, campaign.TotalRecipients)
	assert.Equal(t, models.StateCreated, campaign.State())
	assert.Equal(t, []string{events.CampaignCreated, events.CampaignRecipientsAdded}, rec.Keys())

	recipients, total, err := svc.ListRecipients(ctx, campaign.ID, utils.NewPagination(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, recipients, 2)
	assert.Equal(t, "Ana", recipients[1].PersonalizedData["first_name"])
}

func TestCampaignCreateMissingReferences(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	snd := f.sender(500)

	_, err := svc.Create(ctx, CreateCampaignInput{Name: "x", TemplateID: 42, SenderID: snd.ID}, admin.ID)
	requireAppError(t, err, http.StatusNotFound)

	tpl := f.template(admin.ID, nil)
	_, err = svc.Create(ctx, CreateCampaignInput{Name: "x", TemplateID: tpl.ID, SenderID: 42}, admin.ID)
	requireAppError(t, err, http.StatusNotFound)

	missingSector := uint(77)
	_, err = svc.Create(ctx, CreateCampaignInput{Name: "x", TemplateID: tpl.ID, SenderID: snd.ID, SectorID: &missingSector}, admin.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestAddRecipientsIsIdempotent(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(500).ID)
	p1 := f.prospect(nil)
	p2 := f.prospect(nil)

	first, err := svc.AddRecipients(ctx, c.ID, []RecipientInput{{ProspectID: p1.ID}, {ProspectID: p2.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 0, first.Skipped)

	// P1 already attached, P3 does not exist
	second, err := svc.AddRecipients(ctx, c.ID, []RecipientInput{{ProspectID: p1.ID}, {ProspectID: 3333}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Skipped)

	var pairs int64
	require.NoError(t, f.db.Model(&models.CampaignRecipient{}).Where("campaign_id = ?", c.ID).Count(&pairs).Error)
	assert.EqualValues(t, 2, pairs)

	var stored models.Campaign
	require.NoError(t, f.db.First(&stored, c.ID).Error)
	assert.Equal(t, 0, stored.TotalRecipients, "total reflects the rows inserted by the last call")
}

func TestAddRecipientsDuplicatesInOneCall(t *testing.T) {
	f := newFixtures(t)
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(500).ID)
	p := f.prospect(nil)

	res, err := svc.AddRecipients(context.Background(), c.ID, []RecipientInput{{ProspectID: p.ID}, {ProspectID: p.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
}

func TestAddRecipientsUnknownCampaign(t *testing.T) {
	f := newFixtures(t)
	svc := NewCampaignService(f.db, nil)

	_, err := svc.AddRecipients(context.Background(), 404, []RecipientInput{{ProspectID: 1}})
	requireAppError(t, err, http.StatusNotFound)
}

func TestStartedCampaignIsImmutable(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	rec := &events.Recorder{}
	svc := NewCampaignService(f.db, rec)

	admin := f.user(models.RoleAdmin)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(500).ID)

	started, err := svc.MarkStarted(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateStarted, started.State())

	_, err = svc.MarkStarted(ctx, c.ID)
	requireAppError(t, err, http.StatusConflict)

	name := "renamed"
	_, err = svc.Update(ctx, c.ID, UpdateCampaignInput{Name: &name})
	requireAppError(t, err, http.StatusConflict)

	_, err = svc.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	requireAppError(t, err, http.StatusConflict)

	err = svc.Delete(ctx, c.ID)
	requireAppError(t, err, http.StatusConflict)

	var stored models.Campaign
	require.NoError(t, f.db.First(&stored, c.ID).Error)
	assert.Equal(t, c.Name, stored.Name)

	completed, err := svc.MarkCompleted(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, completed.State())

	_, err = svc.MarkCompleted(ctx, c.ID)
	requireAppError(t, err, http.StatusConflict)
	assert.Contains(t, rec.Keys(), events.CampaignStarted)
	assert.Contains(t, rec.Keys(), events.CampaignCompleted)
}

func TestMarkCompletedBeforeStart(t *testing.T) {
	f := newFixtures(t)
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(500).ID)

	_, err := svc.MarkCompleted(context.Background(), c.ID)
	requireAppError(t, err, http.StatusConflict)
}

func TestScheduleCampaign(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(500).ID)

	_, err := svc.Schedule(ctx, c.ID, time.Time{})
	requireAppError(t, err, http.StatusBadRequest)

	at := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	scheduled, err := svc.Schedule(ctx, c.ID, at)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignScheduled, scheduled.Type)
	require.NotNil(t, scheduled.ScheduledAt)
	assert.True(t, scheduled.ScheduledAt.Equal(at))
	assert.Equal(t, models.StateScheduled, scheduled.State())
}

func TestUpdateCampaignChecksReferences(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(500).ID)

	missing := uint(999)
	_, err := svc.Update(ctx, c.ID, UpdateCampaignInput{TemplateID: &missing})
	requireAppError(t, err, http.StatusNotFound)

	other := f.sender(100)
	name := "Q3 push"
	updated, err := svc.Update(ctx, c.ID, UpdateCampaignInput{Name: &name, SenderID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, "Q3 push", updated.Name)
	assert.Equal(t, other.ID, updated.SenderID)
}

func TestDeleteCampaignCascades(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	snd := f.sender(500)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, snd.ID)
	p := f.prospect(nil)
	_, err := svc.AddRecipients(ctx, c.ID, []RecipientInput{{ProspectID: p.ID}})
	require.NoError(t, err)
	send := f.send(c.ID, p.ID, snd.ID, models.SendQueued, nil)
	require.NoError(t, f.db.Create(&models.Credential{EmailSendID: send.ID, Username: "u"}).Error)

	require.NoError(t, svc.Delete(ctx, c.ID))

	for _, model := range []any{&models.Campaign{}, &models.CampaignRecipient{}, &models.EmailSend{}, &models.Credential{}} {
		var n int64
		require.NoError(t, f.db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T rows left", model)
	}

	err = svc.Delete(ctx, c.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestCampaignStats(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	snd := f.sender(500)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, snd.ID)
	p := f.prospect(nil)
	now := time.Now()
	f.send(c.ID, p.ID, snd.ID, models.SendSent, &now)
	f.send(c.ID, p.ID, snd.ID, models.SendSent, &now)
	f.send(c.ID, p.ID, snd.ID, models.SendBounced, &now)

	stats, err := svc.Stats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stats.CampaignID)
	assert.Equal(t, c.Name, stats.CampaignName)
	assert.EqualValues(t, 2, stats.Stats[models.SendSent])
	assert.EqualValues(t, 1, stats.Stats[models.SendBounced])
	assert.NotContains(t, stats.Stats, models.SendDelivered)

	_, err = svc.Stats(ctx, 12345)
	requireAppError(t, err, http.StatusNotFound)
}

func TestListCampaignsFilters(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewCampaignService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	sales := f.user(models.RoleCommercial)
	tpl := f.template(admin.ID, nil)
	snd := f.sender(500)
	f.campaign(admin.ID, tpl.ID, snd.ID)
	f.campaign(sales.ID, tpl.ID, snd.ID)
	f.campaign(sales.ID, tpl.ID, snd.ID)

	list, total, err := svc.List(ctx, CampaignFilter{Pagination: utils.NewPagination(1, 20), CreatedBy: &sales.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, c := range list {
		assert.Equal(t, sales.ID, c.CreatedBy)
	}

	page, total, err := svc.List(ctx, CampaignFilter{Pagination: utils.NewPagination(2, 2)})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 1)

	_, _, err = svc.List(ctx, CampaignFilter{Pagination: utils.NewPagination(1, 20), Type: "drip"})
	requireAppError(t, err, http.StatusBadRequest)
}
