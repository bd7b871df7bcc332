package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "DATABASE_URL", "NATS_URL", "ANALYSIS_CONCURRENCY", "ANALYSIS_MAX_FILE_SIZE", "WORKSPACE_DIR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, int64(1<<20), cfg.MaxFileSize)
	assert.Equal(t, "/tmp/archscope/workspaces", cfg.WorkspaceDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://x:y@db:5432/app")
	t.Setenv("ANALYSIS_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "postgres://x:y@db:5432/app", cfg.DatabaseURL)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{DatabaseURL: "postgres://localhost/db", Concurrency: 1}, false},
		{"missing database url", Config{Concurrency: 4}, true},
		{"zero concurrency", Config{DatabaseURL: "postgres://localhost/db", Concurrency: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
