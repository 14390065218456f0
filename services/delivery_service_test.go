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

func TestCheckDailyLimit(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewDeliveryService(f.db, nil)

	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.Local)
	svc.Now = func() time.Time { return now }

	admin := f.user(models.RoleAdmin)
	snd := f.sender(2)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, snd.ID)
	p := f.prospect(nil)

	yesterday := now.Add(-24 * time.Hour)
	f.send(c.ID, p.ID, snd.ID, models.SendSent, &yesterday)
	f.send(c.ID, p.ID, snd.ID, models.SendQueued, nil)

	status, err := svc.CheckDailyLimit(ctx, snd.ID)
	require.NoError(t, err)
	assert.Equal(t, &DailyLimitStatus{SenderID: snd.ID, DailyLimit: 2, SentToday: 0, Remaining: 2, CanSend: true}, status)

	morning := time.Date(2024, 5, 10, 8, 0, 0, 0, time.Local)
	f.send(c.ID, p.ID, snd.ID, models.SendSent, &morning)
	f.send(c.ID, p.ID, snd.ID, models.SendDelivered, &morning)

	status, err = svc.CheckDailyLimit(ctx, snd.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, status.SentToday)
	assert.EqualValues(t, 0, status.Remaining)
	assert.False(t, status.CanSend)

	f.send(c.ID, p.ID, snd.ID, models.SendSent, &morning)
	status, err = svc.CheckDailyLimit(ctx, snd.ID)
	require.NoError(t, err)
	assert.EqualValues(t, -1, status.Remaining)
	assert.False(t, status.CanSend)
}

func TestCheckDailyLimitInactiveSender(t *testing.T) {
	f := newFixtures(t)
	svc := NewDeliveryService(f.db, nil)

	snd := f.sender(10)
	require.NoError(t, f.db.Model(snd).Update("active", false).Error)

	_, err := svc.CheckDailyLimit(context.Background(), snd.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestRecordSend(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	rec := &events.Recorder{}
	svc := NewDeliveryService(f.db, rec)

	admin := f.user(models.RoleAdmin)
	snd := f.sender(10)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, snd.ID)
	p := f.prospect(nil)

	send, err := svc.RecordSend(ctx, RecordSendInput{CampaignID: c.ID, ProspectID: p.ID, SenderID: snd.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SendQueued, send.Status)
	assert.Len(t, send.TrackingID, 36)
	assert.Equal(t, []string{events.EmailSendRecorded}, rec.Keys())

	_, err = svc.RecordSend(ctx, RecordSendInput{CampaignID: c.ID, ProspectID: p.ID, SenderID: snd.ID, TrackingID: send.TrackingID})
	requireAppError(t, err, http.StatusConflict)

	_, err = svc.RecordSend(ctx, RecordSendInput{CampaignID: c.ID, ProspectID: p.ID, SenderID: snd.ID, Status: "opened"})
	requireAppError(t, err, http.StatusBadRequest)

	_, err = svc.RecordSend(ctx, RecordSendInput{CampaignID: 999, ProspectID: p.ID, SenderID: snd.ID})
	requireAppError(t, err, http.StatusNotFound)
}

func TestAttachCredentialOnlyOnce(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewDeliveryService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	snd := f.sender(10)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, snd.ID)
	send := f.send(c.ID, f.prospect(nil).ID, snd.ID, models.SendSent, nil)

	cred, err := svc.AttachCredential(ctx, send.ID, CredentialInput{Username: "jdoe", CredentialType: "portal"})
	require.NoError(t, err)
	assert.Equal(t, send.ID, cred.EmailSendID)

	_, err = svc.AttachCredential(ctx, send.ID, CredentialInput{Username: "other"})
	requireAppError(t, err, http.StatusConflict)

	_, err = svc.AttachCredential(ctx, 4040, CredentialInput{})
	requireAppError(t, err, http.StatusNotFound)

	sends, total, err := svc.ListSends(ctx, c.ID, SendFilter{Pagination: utils.NewPagination(1, 20)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.NotNil(t, sends[0].Credential)
	assert.Equal(t, "jdoe", sends[0].Credential.Username)
}

func TestListSendsStatusFilter(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewDeliveryService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	snd := f.sender(10)
	c := f.campaign(admin.ID, f.template(admin.ID, nil).ID, snd.ID)
	p := f.prospect(nil)
	f.send(c.ID, p.ID, snd.ID, models.SendSent, nil)
	f.send(c.ID, p.ID, snd.ID, models.SendFailed, nil)

	sends, total, err := svc.ListSends(ctx, c.ID, SendFilter{Pagination: utils.NewPagination(1, 20), Status: models.SendFailed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.SendFailed, sends[0].Status)

	_, _, err = svc.ListSends(ctx, c.ID, SendFilter{Pagination: utils.NewPagination(1, 20), Status: "opened"})
	requireAppError(t, err, http.StatusBadRequest)
}

func TestIsValidSendStatus(t *testing.T) {
	for _, s := range models.SendStatuses {
		assert.True(t, IsValidSendStatus(string(s)), s)
	}
	assert.False(t, IsValidSendStatus("opened"))
	assert.False(t, IsValidSendStatus(""))
}
