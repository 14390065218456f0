package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/models"
	"outreach/utils"
)

func TestSectorCRUD(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSectorService(f.db, nil)

	created, err := svc.Create(ctx, SectorInput{Name: "  Energy ", Description: "Oil and gas"})
	require.NoError(t, err)
	assert.Equal(t, "Energy", created.Name)
	assert.True(t, created.Active)

	_, err = svc.Create(ctx, SectorInput{Name: "Energy"})
	requireAppError(t, err, http.StatusConflict)

	updated, err := svc.Update(ctx, created.ID, UpdateSectorInput{Active: utils.Pointer(false)})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, len(active)+1)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	requireAppError(t, err, http.StatusNotFound)

	err = svc.Delete(ctx, created.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestDeleteSectorWithProspects(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSectorService(f.db, nil)
	prospects := NewProspectService(f.db, nil)

	sector := f.sector("Legal")
	p := f.prospect(&sector.ID)

	err := svc.Delete(ctx, sector.ID)
	requireAppError(t, err, http.StatusConflict)

	// soft-deleted prospects still reference the sector
	require.NoError(t, prospects.Delete(ctx, p.ID))
	err = svc.Delete(ctx, sector.ID)
	requireAppError(t, err, http.StatusConflict)

	_, err = svc.Get(ctx, sector.ID)
	require.NoError(t, err)
}

func TestDeleteSectorWithTemplates(t *testing.T) {
	f := newFixtures(t)
	svc := NewSectorService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	sector := f.sector("Media")
	f.template(admin.ID, &sector.ID)

	err := svc.Delete(context.Background(), sector.ID)
	requireAppError(t, err, http.StatusConflict)
}

func TestSectorStats(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSectorService(f.db, nil)

	admin := f.user(models.RoleAdmin)
	sector := f.sector("Travel")
	f.prospect(&sector.ID)
	bounced := f.prospect(&sector.ID)
	require.NoError(t, f.db.Model(bounced).Update("status", models.ProspectBounced).Error)
	f.template(admin.ID, &sector.ID)

	stats, err := svc.Stats(ctx, sector.ID)
	require.NoError(t, err)
	assert.Equal(t, sector.ID, stats.Sector.ID)
	assert.EqualValues(t, 2, stats.Stats.TotalProspects)
	assert.EqualValues(t, 1, stats.Stats.ActiveProspects)
	assert.EqualValues(t, 1, stats.Stats.Templates)
	assert.EqualValues(t, 0, stats.Stats.Campaigns)
}

func TestSectorBulkImport(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSectorService(f.db, nil)

	f.sector("Retail")

	result := svc.BulkImport(ctx, []SectorInput{
		{Name: "Retail", Description: "Shops"},
		{Name: "Aerospace"},
		{Name: ""},
	})
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Index)

	var retail models.Sector
	require.NoError(t, f.db.Where("name = ?", "Retail").First(&retail).Error)
	assert.Equal(t, "Shops", retail.Description)
}

func TestSectorNameMustNotBeBlank(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	svc := NewSectorService(f.db, nil)

	_, err := svc.Create(ctx, SectorInput{Name: "   "})
	requireAppError(t, err, http.StatusBadRequest)

	finance := f.sector("Finance")
	_, err = svc.Update(ctx, finance.ID, UpdateSectorInput{Name: utils.Pointer("\t ")})
	requireAppError(t, err, http.StatusBadRequest)

	result := svc.BulkImport(ctx, []SectorInput{{Name: "  "}, {Name: " Mining "}})
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].Index)
	assert.Equal(t, "name is required", result.Errors[0].Error)

	var count int64
	require.NoError(t, f.db.Model(&models.Sector{}).Where("name = ?", "").Count(&count).Error)
	assert.Zero(t, count)

	got, err := svc.Get(ctx, finance.ID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", got.Name)
}
