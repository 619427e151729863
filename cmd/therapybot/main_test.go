package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/store"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "therapybot dev")
	assert.Contains(t, out.String(), "Commit: none")
}

func TestRunConsole(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "journal.db")

	input := strings.Join([]string{
		"start the session",
		"next",
		"/state",
		"",
		"/quit",
		"never read",
	}, "\n")
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), cfg, strings.NewReader(input), &out))

	text := out.String()
	assert.Contains(t, text, "(nlu: keyword)")
	assert.Contains(t, text, "state: Calibration -> ExerciseInProgress")
	assert.Contains(t, text, "state=ExerciseInProgress calibration=0 exercise=1 errors=0")
	assert.Contains(t, text, "[Error]")

	repo, err := store.NewSQLite(cfg.Store.Path)
	require.NoError(t, err)
	defer repo.Close()

	id := strings.Fields(text)[1]
	turns, err := repo.ListTurns(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, turns, 3)
}

func TestRootLoadsConfigAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "therapybot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("nlu:\n  backend: wit\n"), 0o644))
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("WIT_AI_TOKEN=from-dotenv\n"), 0o644))
	t.Setenv("WIT_AI_TOKEN", "")
	os.Unsetenv("WIT_AI_TOKEN")

	a := &app{configPath: cfgPath, envFile: envPath}
	require.NoError(t, a.load())
	assert.Equal(t, "wit", a.cfg.NLU.Backend)
	assert.Equal(t, "from-dotenv", a.cfg.NLU.Wit.Token)

	a = &app{configPath: cfgPath, envFile: filepath.Join(dir, "missing.env")}
	os.Unsetenv("WIT_AI_TOKEN")
	assert.ErrorContains(t, a.load(), "wit token is required")
}
