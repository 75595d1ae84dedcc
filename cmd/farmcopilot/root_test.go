package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmcopilot/internal/config"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.2.3")
	assert.Equal(t, "farmcopilot", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.Flags().Lookup("addr"))

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["chat"])
}

func TestRootCmdRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  chunk_size: 5\n  overlap: 9\n"), 0o644))

	cmd := NewRootCmd("dev")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--config", path})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "chunker")
}

func TestBuildServiceWithHashingEmbedder(t *testing.T) {
	t.Setenv("FARMCOPILOT_TEST_KEY", "test")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Embedder.Type = "hashing"
	cfg.Completion.APIKeyEnv = "FARMCOPILOT_TEST_KEY"
	cfg.Storage.Type = "file"
	cfg.Storage.Dir = t.TempDir()

	svc, closeFn, err := buildService(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer closeFn()
	st := svc.Status()
	assert.Equal(t, "empty", st.State)
	assert.Equal(t, "hashing", st.Embedder)
}

func TestBuildServiceMissingKey(t *testing.T) {
	t.Setenv("FARMCOPILOT_MISSING_KEY", "")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Embedder.Type = "hashing"
	cfg.Completion.APIKeyEnv = "FARMCOPILOT_MISSING_KEY"

	_, _, err = buildService(context.Background(), cfg, slog.Default())
	assert.Error(t, err)
}
