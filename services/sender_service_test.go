package services

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/config"
	"outreach/events"
	"outreach/models"
	"outreach/utils"
)

func countDefaults(t *testing.T, f *fixtures) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Sender{}).Where("is_default = ?", true).Count(&n).Error)
	return n
}

func TestCreateSender(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	sender, err := svc.Create(ctx, CreateSenderInput{
		Name:       "Sales",
		Email:      " Sales@Example.com ",
		SMTPConfig: models.JSONMap{"host": "smtp.example.com", "password": "hunter2"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sales@example.com", sender.Email)
	assert.Equal(t, 500, sender.DailyLimit)
	assert.True(t, sender.Active)
	assert.Equal(t, "********", sender.SMTPConfig["password"])
	assert.Equal(t, "smtp.example.com", sender.SMTPConfig["host"])

	_, err = svc.Create(ctx, CreateSenderInput{Name: "Dup", Email: "sales@example.com"}, nil)
	requireAppError(t, err, http.StatusConflict)
}

func TestCreateSenderEncryptsSecrets(t *testing.T) {
	f := newFixtures(t)
	prev := config.AppConfig.EncryptionKey
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
	t.Cleanup(func() { config.AppConfig.EncryptionKey = prev })

	svc := NewSenderService(f.db, nil)
	sender, err := svc.Create(context.Background(), CreateSenderInput{
		Name:       "Ops",
		Email:      "ops@example.com",
		SMTPConfig: models.JSONMap{"api_key": "k-123"},
	}, nil)
	require.NoError(t, err)

	var stored models.Sender
	require.NoError(t, f.db.First(&stored, sender.ID).Error)
	raw, ok := stored.SMTPConfig.String("api_key")
	require.True(t, ok)
	assert.NotEqual(t, "k-123", raw)

	plain, err := utils.DecryptConfigSecrets(stored.SMTPConfig)
	require.NoError(t, err)
	assert.Equal(t, "k-123", plain["api_key"])
}

func TestSetDefaultKeepsSingleDefault(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	rec := &events.Recorder{}
	svc := NewSenderService(f.db, rec)

	a, err := svc.Create(ctx, CreateSenderInput{Name: "A", Email: "a@example.com", IsDefault: true}, nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateSenderInput{Name: "B", Email: "b@example.com"}, nil)
	require.NoError(t, err)

	_, err = svc.SetDefault(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countDefaults(t, f))

	def, err := svc.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	reloaded, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
	assert.Equal(t, []string{events.SenderDefaultChanged, events.SenderDefaultChanged}, rec.Keys())
}

func TestSetDefaultConcurrent(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	var ids []uint
	for i := 0; i < 5; i++ {
		s := f.sender(100)
		ids = append(ids, s.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := svc.SetDefault(ctx, id)
			if err != nil {
				assert.True(t, utils.IsConflict(err), "unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 1, countDefaults(t, f))
}

func TestSetDefaultRejectsInactive(t *testing.T) {
	f := newFixtures(t)
	svc := NewSenderService(f.db, nil)

	s := f.sender(100)
	require.NoError(t, f.db.Model(s).Update("active", false).Error)

	_, err := svc.SetDefault(context.Background(), s.ID)
	requireAppError(t, err, http.StatusBadRequest)

	_, err = svc.SetDefault(context.Background(), 999)
	requireAppError(t, err, http.StatusNotFound)
}

func TestGetDefaultNone(t *testing.T) {
	f := newFixtures(t)
	svc := NewSenderService(f.db, nil)

	_, err := svc.GetDefault(context.Background())
	requireAppError(t, err, http.StatusNotFound)
}

func TestUpdateSender(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	a, err := svc.Create(ctx, CreateSenderInput{Name: "A", Email: "a@example.com", IsDefault: true}, nil)
	require.NoError(t, err)
	b := f.sender(100)

	_, err = svc.Update(ctx, b.ID, UpdateSenderInput{Email: utils.Pointer("a@example.com")})
	requireAppError(t, err, http.StatusConflict)

	updated, err := svc.Update(ctx, a.ID, UpdateSenderInput{
		DailyLimit: utils.Pointer(50),
		SMTPConfig: models.JSONMap{"host": "mail.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.DailyLimit)
	assert.Equal(t, "mail.example.com", updated.SMTPConfig["host"])

	deactivated, err := svc.Update(ctx, a.ID, UpdateSenderInput{Active: utils.Pointer(false)})
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.False(t, deactivated.IsDefault)

	_, err = svc.Update(ctx, a.ID, UpdateSenderInput{IsDefault: utils.Pointer(true)})
	requireAppError(t, err, http.StatusBadRequest)

	reactivated, err := svc.Reactivate(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.Active)

	_, err = svc.Reactivate(ctx, a.ID)
	requireAppError(t, err, http.StatusBadRequest)
}

func TestDeleteSenderReferenced(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	used := f.sender(100)
	f.campaign(admin.ID, f.template(admin.ID, nil).ID, used.ID)
	free := f.sender(100)

	_, err := svc.Delete(ctx, used.ID)
	requireAppError(t, err, http.StatusConflict)

	deleted, err := svc.Delete(ctx, free.ID)
	require.NoError(t, err)
	assert.Equal(t, free.Email, deleted.Email)

	_, err = svc.Get(ctx, free.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestDeleteSenderReferencedOnlyBySends(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	campaign := f.campaign(admin.ID, f.template(admin.ID, nil).ID, f.sender(100).ID)
	relay := f.sender(100)
	f.send(campaign.ID, f.prospect(nil).ID, relay.ID, models.SendSent, nil)

	_, err := svc.Delete(ctx, relay.ID)
	requireAppError(t, err, http.StatusConflict)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Sender is referenced by 0 campaign(s) and 1 send(s) and cannot be deleted", appErr.Message)
}

func TestListSendersIncludeInactive(t *testing.T) {
	f := newFixtures(t)
	svc := NewSenderService(f.db, nil)

	f.sender(100)
	off := f.sender(100)
	require.NoError(t, f.db.Model(off).Update("active", false).Error)

	active, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBulkCreateSendersPartial(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	_, err := svc.Create(ctx, CreateSenderInput{Name: "Taken", Email: "taken@example.com"}, nil)
	require.NoError(t, err)

	result := svc.BulkCreate(ctx, []CreateSenderInput{
		{Name: "One", Email: "one@example.com"},
		{Name: "Dup", Email: "taken@example.com"},
		{Name: "Bad", Email: "not-an-email"},
	}, nil)

	assert.Equal(t, utils.BulkSummary{Total: 3, Successful: 1, Failed: 2}, result.Summary)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "one@example.com", result.Created[0].Email)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "Email already exists", result.Errors[0].Error)
	assert.Equal(t, 2, result.Errors[1].Index)
	assert.Equal(t, http.StatusMultiStatus, utils.BulkStatus(result.Summary, http.StatusCreated))
}

func TestBulkUpdateAndDeleteSenders(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSenderService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	a := f.sender(100)
	b := f.sender(100)
	f.campaign(admin.ID, f.template(admin.ID, nil).ID, b.ID)

	upd := svc.BulkUpdate(ctx, []UpdateSenderInput{
		{ID: a.ID, DailyLimit: utils.Pointer(10)},
		{ID: 999, DailyLimit: utils.Pointer(10)},
		{DailyLimit: utils.Pointer(10)},
	})
	assert.Equal(t, utils.BulkSummary{Total: 3, Successful: 1, Failed: 2}, upd.Summary)
	assert.Equal(t, 10, upd.Updated[0].DailyLimit)
	assert.Equal(t, uint(999), upd.Errors[0].ID)

	del := svc.BulkDelete(ctx, []uint{a.ID, b.ID})
	assert.Equal(t, utils.BulkSummary{Total: 2, Successful: 1, Failed: 1}, del.Summary)
	assert.Equal(t, a.ID, del.Deleted[0].ID)
	assert.Equal(t, b.ID, del.Errors[0].ID)

	allFailed := svc.BulkDelete(ctx, []uint{b.ID})
	assert.Equal(t, http.StatusBadRequest, utils.BulkStatus(allFailed.Summary, http.StatusOK))
}
