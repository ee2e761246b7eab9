package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/ai"
	"github.com/dhirajc963/timebrew.news/internal/email"
	"github.com/dhirajc963/timebrew.news/internal/models"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testLogger = log.NewStdLogger(io.Discard)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Brew{}, &Run{}, &CuratorLog{}, &EditorLog{}))
	return db
}

func seedBrew(t *testing.T, db *gorm.DB, userID uint64) (*models.User, *models.Brew) {
	t.Helper()
	u := &models.User{}
	if err := db.First(u, userID).Error; err != nil {
		u = &models.User{
			ID:        userID,
			Email:     fmt.Sprintf("reader%d@example.com", userID),
			FirstName: "Ada",
			LastName:  "Lovelace",
			Timezone:  "America/New_York",
			IsActive:  true,
		}
		require.NoError(t, db.Create(u).Error)
	}
	b := &models.Brew{
		UserID:       userID,
		Name:         "Morning Tech",
		Topics:       []string{"AI", "Go"},
		DeliveryTime: "07:30",
		IsActive:     true,
	}
	require.NoError(t, db.Create(b).Error)
	return u, b
}

// scriptedGen answers by stage: the curator's system prompt differs from the
// editor's.
type scriptedGen struct {
	mu       sync.Mutex
	curator  string
	editor   string
	err      error
	requests []ai.Request
}

func (g *scriptedGen) Generate(ctx context.Context, req ai.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "curator for TimeBrew") {
		return g.curator, nil
	}
	return g.editor, nil
}

func (g *scriptedGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	stall bool
	sent  []email.Message
}

func (m *fakeMailer) Send(ctx context.Context, msg email.Message) error {
	if m.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type staticFeedback []FeedbackHint

func (f staticFeedback) RecentFeedback(ctx context.Context, userID uint64, limit int) ([]FeedbackHint, error) {
	return f, nil
}

type recordingInvoker struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (r *recordingInvoker) Enqueue(ctx context.Context, runID string, stage Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, runID+":"+string(stage))
	return nil
}

const (
	curatorJSON = "```json\n" + `{"articles":[
		{"headline":"Go 1.26 released","summary":"New GC","source":"go.dev","url":"https://go.dev/blog","published_time":"2 hours ago","relevance":"Go"},
		{"headline":"Model tops benchmark","summary":"Scores","source":"Example News","url":"https://news.example.com/ai","published_time":"1 day ago","relevance":"AI"}
	],"curator_notes":"busy week"}` + "\n```"
	editorJSON = `<think>plan the email</think>{"subject":"Your Morning Tech brew","intro":"Two big stories today.","articles":[
		{"position":7,"headline":"Go 1.26 is out","body":"The GC got faster.","source":"go.dev","url":"https://go.dev/blog"},
		{"headline":"A new AI leader","body":"Benchmarks moved.","source":"Example News","url":"https://news.example.com/ai"}
	],"outro":"See you tomorrow."}`
)

type testPipeline struct {
	db     *gorm.DB
	coord  *Coordinator
	gen    *scriptedGen
	mailer *fakeMailer
	runner *Runner
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	db := openTestDB(t)
	coord := NewCoordinator(db, testLogger)
	gen := &scriptedGen{curator: curatorJSON, editor: editorJSON}
	mailer := &fakeMailer{}
	runner := NewRunner(coord, testLogger,
		NewCurator(db, coord, gen, CuratorDefaults(), nil, testLogger),
		NewEditor(db, coord, gen, EditorDefaults(), testLogger),
		NewDispatcher(db, coord, mailer, testLogger),
	)
	return &testPipeline{db: db, coord: coord, gen: gen, mailer: mailer, runner: runner}
}

func mustRun(t *testing.T, db *gorm.DB, runID string) Run {
	t.Helper()
	var r Run
	require.NoError(t, db.Where("run_id = ?", runID).First(&r).Error)
	return r
}

// setStage puts a run into a stage directly, bypassing the coordinator.
func setStage(t *testing.T, db *gorm.DB, runID string, stage Stage) {
	t.Helper()
	require.NoError(t, db.Model(&Run{}).Where("run_id = ?", runID).UpdateColumn("current_stage", string(stage)).Error)
}
