package feedback

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
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
	require.NoError(t, db.AutoMigrate(&pipeline.Run{}, &pipeline.EditorLog{}, &Feedback{}))
	return db
}

// seedBriefing stores a completed run for user 1 with a two-article draft.
func seedBriefing(t *testing.T, db *gorm.DB, runID string, parsed bool) {
	t.Helper()
	require.NoError(t, db.Create(&pipeline.Run{RunID: runID, BrewID: 1, UserID: 1, CurrentStage: pipeline.StageCompleted}).Error)
	el := &pipeline.EditorLog{
		RunID:       runID,
		BrewID:      1,
		UserID:      1,
		Draft:       datatypes.JSON(`{"subject":"S","intro":"I","articles":[{"position":1,"headline":"First","source":"A"},{"position":2,"headline":"Second","source":"B"}],"outro":""}`),
		RawResponse: "raw",
		Prompt:      "p",
	}
	if parsed {
		now := time.Now().UTC()
		el.ParsedAt = &now
	}
	require.NoError(t, db.Create(el).Error)
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := openTestDB(t)
	return NewService(db, log.NewStdLogger(io.Discard)), db
}

func count(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&Feedback{}).Count(&n).Error)
	return n
}

func TestToggle_SameReactionTwiceRemoves(t *testing.T) {
	svc, db := newService(t)
	seedBriefing(t, db, "run-1", true)
	ctx := context.Background()

	res, err := svc.Toggle(ctx, 1, "run-1", 1, Like)
	require.NoError(t, err)
	assert.Equal(t, ActionSubmitted, res.Action)
	require.NotNil(t, res.FeedbackType)
	assert.Equal(t, Like, *res.FeedbackType)
	assert.EqualValues(t, 1, count(t, db))

	var fb Feedback
	require.NoError(t, db.First(&fb).Error)
	assert.Equal(t, "First", fb.ArticleTitle)
	assert.Equal(t, "A", fb.ArticleSource)

	res, err = svc.Toggle(ctx, 1, "run-1", 1, Like)
	require.NoError(t, err)
	assert.Equal(t, ActionRemoved, res.Action)
	assert.Nil(t, res.FeedbackType)
	assert.Zero(t, count(t, db))
}

func TestToggle_DifferentReactionUpdatesInPlace(t *testing.T) {
	svc, db := newService(t)
	seedBriefing(t, db, "run-1", true)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 1, "run-1", 0, Like)
	require.NoError(t, err)
	var before Feedback
	require.NoError(t, db.First(&before).Error)

	res, err := svc.Toggle(ctx, 1, "run-1", 0, Dislike)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.EqualValues(t, 1, count(t, db))

	var after Feedback
	require.NoError(t, db.First(&after).Error)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, Dislike, after.FeedbackType)
	assert.Empty(t, after.ArticleTitle)
}

func TestToggle_Validation(t *testing.T) {
	svc, db := newService(t)
	seedBriefing(t, db, "run-1", true)
	seedBriefing(t, db, "run-raw", false)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 1, "run-1", 1, Reaction("meh"))
	assert.ErrorIs(t, err, ErrInvalidReaction)
	_, err = svc.Toggle(ctx, 1, "run-1", 3, Like)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = svc.Toggle(ctx, 1, "run-1", -1, Like)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = svc.Toggle(ctx, 2, "run-1", 0, Like)
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
	_, err = svc.Toggle(ctx, 1, "run-raw", 0, Like)
	assert.ErrorIs(t, err, ErrNoBriefing)
	assert.Zero(t, count(t, db))
}

func TestStatus(t *testing.T) {
	svc, db := newService(t)
	seedBriefing(t, db, "run-1", true)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 1, "run-1", 0, Like)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, 1, "run-1", 2, Dislike)
	require.NoError(t, err)

	st, err := svc.Status(ctx, 1, "run-1")
	require.NoError(t, err)
	require.NotNil(t, st.Overall)
	assert.Equal(t, Like, *st.Overall)
	require.Len(t, st.Articles, 2)
	assert.Nil(t, st.Articles[0].Reaction)
	assert.Equal(t, "Second", st.Articles[1].Headline)
	require.NotNil(t, st.Articles[1].Reaction)
	assert.Equal(t, Dislike, *st.Articles[1].Reaction)

	_, err = svc.Status(ctx, 2, "run-1")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestRecentFeedbackSkipsOverall(t *testing.T) {
	svc, db := newService(t)
	seedBriefing(t, db, "run-1", true)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 1, "run-1", 0, Like)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, 1, "run-1", 1, Dislike)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, 1, "run-1", 2, Like)
	require.NoError(t, err)

	hints, err := svc.RecentFeedback(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, hints, 2)
	assert.Equal(t, pipeline.FeedbackHint{Type: "like", Title: "Second", Source: "B"}, hints[0])
	assert.Equal(t, "dislike", hints[1].Type)

	var _ pipeline.FeedbackSource = svc
}
