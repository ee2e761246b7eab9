package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhirajc963/timebrew.news/internal/auth"
	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "brewctl.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", dsn)
	t.Setenv("LOG_LEVEL", "error")
	return dsn
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	out, err := execute(t, "token", "--user", "7", "--email", "ops@example.com")
	require.NoError(t, err)

	claims, err := auth.ParseJWT(strings.TrimSpace(out), "cli-secret")
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)

	_, err = execute(t, "token")
	assert.Error(t, err)
}

func TestMigrateAndRunShow(t *testing.T) {
	dsn := sqliteEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 6 tables")

	gdb, err := db.Connect("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&pipeline.Run{RunID: "run-cli", BrewID: 1, UserID: 1, CurrentStage: pipeline.StageEditor}).Error)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, err = execute(t, "run", "show", "run-cli")
	require.NoError(t, err)
	var run pipeline.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, pipeline.StageEditor, run.CurrentStage)

	_, err = execute(t, "run", "show", "missing")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)

	out, err = execute(t, "reap")
	require.NoError(t, err)
	assert.Contains(t, out, "reaped 0 runs")
}
