package briefing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{TranslateError: true, Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Brew{}, &pipeline.Run{}, &pipeline.CuratorLog{}, &pipeline.EditorLog{}))
	return db
}

func seed(t *testing.T, db *gorm.DB, brewID uint64, n int) []string {
	t.Helper()
	require.NoError(t, db.Create(&models.Brew{ID: brewID, UserID: 1, Name: "b", Topics: []string{"x"}, DeliveryTime: "07:00", IsActive: true}).Error)
	base := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("run-%d-%02d", brewID, i)
		ids = append(ids, id)
		created := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, db.Create(&pipeline.Run{RunID: id, BrewID: brewID, UserID: 1,
			CurrentStage: pipeline.StageCompleted, CreatedAt: created, UpdatedAt: created}).Error)
		parsed := created.Add(time.Minute)
		require.NoError(t, db.Create(&pipeline.CuratorLog{RunID: id, BrewID: brewID, UserID: 1,
			Articles: datatypes.JSON("[]"), ArticleCount: i, CuratorNotes: "notes", RawResponse: "r", Prompt: "p", ParsedAt: &parsed}).Error)
		require.NoError(t, db.Create(&pipeline.EditorLog{RunID: id, BrewID: brewID, UserID: 1,
			Draft:   datatypes.JSON(`{"subject":"Day ` + fmt.Sprint(i) + `","intro":"hi","articles":[],"outro":""}`),
			Subject: "Day " + fmt.Sprint(i), RawResponse: "r", Prompt: "p", ParsedAt: &parsed,
			EmailSent: true, EmailSentTime: &parsed}).Error)
	}
	return ids
}

func TestList_PaginatesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ids := seed(t, db, 10, 5)
	svc := NewService(db)

	page, err := svc.List(context.Background(), 1, 10, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[4], page.Items[0].RunID)
	assert.Equal(t, "Day 4", page.Items[0].Subject)
	assert.Equal(t, 4, page.Items[0].ArticleCount)
	assert.True(t, page.Items[0].EmailSent)
	assert.Equal(t, pipeline.StageCompleted, page.Items[0].Stage)

	page, err = svc.List(context.Background(), 1, 10, 2, 4)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].RunID)

	page, err = svc.List(context.Background(), 1, 10, 1000, -3)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)

	page, err = svc.List(context.Background(), 1, 10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, page.Limit)
}

func TestList_OwnershipAndEmpty(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, 10, 1)
	svc := NewService(db)

	_, err := svc.List(context.Background(), 2, 10, 20, 0)
	assert.ErrorIs(t, err, pipeline.ErrBrewNotFound)

	require.NoError(t, db.Create(&models.Brew{ID: 11, UserID: 1, Name: "empty", Topics: []string{"x"}, DeliveryTime: "07:00", IsActive: true}).Error)
	page, err := svc.List(context.Background(), 1, 11, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestGet(t *testing.T) {
	db := openTestDB(t)
	ids := seed(t, db, 10, 2)
	svc := NewService(db)

	d, err := svc.Get(context.Background(), 1, ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids[1], d.Run.RunID)
	require.NotNil(t, d.Draft)
	assert.Equal(t, "Day 1", d.Draft.Subject)
	assert.Equal(t, "notes", d.CuratorNotes)
	assert.Equal(t, 1, d.ArticleCount)
	assert.True(t, d.EmailSent)

	_, err = svc.Get(context.Background(), 2, ids[1])
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)

	// a run that failed in curator has no outputs yet
	require.NoError(t, db.Create(&pipeline.Run{RunID: "bare", BrewID: 10, UserID: 1, CurrentStage: pipeline.StageCurator}).Error)
	d, err = svc.Get(context.Background(), 1, "bare")
	require.NoError(t, err)
	assert.Nil(t, d.Draft)
	assert.Equal(t, pipeline.StageCurator, d.Run.CurrentStage)
}
