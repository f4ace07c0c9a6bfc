package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	config := Default()
	assert.Equal(t, 1000, config.MaxBatchSize)
	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, 5, config.Breaker.Threshold)
	assert.Equal(t, 30*time.Second, config.Breaker.Cooldown)
	assert.NoError(t, config.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "sqlseed.yaml", `
database: music.db
script: seed.sql
max_batch_size: 250
workers: 8
dry_run: true
groups:
  reference: [Genre, MediaType]
  core: [Artist, Album]
  business: [Invoice]
breaker:
  threshold: 3
  cooldown: 5s
`)

	config, err := LoadWithEnv(path, "")
	require.NoError(t, err)
	assert.Equal(t, "music.db", config.Database)
	assert.Equal(t, "seed.sql", config.Script)
	assert.Equal(t, 250, config.MaxBatchSize)
	assert.Equal(t, 8, config.Workers)
	assert.True(t, config.DryRun)
	assert.Equal(t, []string{"Genre", "MediaType"}, config.Groups.Reference)
	assert.Equal(t, []string{"Invoice"}, config.Groups.Business)
	assert.Equal(t, 3, config.Breaker.Threshold)
	assert.Equal(t, 5*time.Second, config.Breaker.Cooldown)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "sqlseed.yaml", "database: file.db\nworkers: 2\n")
	envFile := writeFile(t, ".env", "SQLSEED_DATABASE=dotenv.db\nSQLSEED_MAX_BATCH_SIZE=10\n")

	t.Setenv(EnvMaxBatchSize, "20")

	config, err := LoadWithEnv(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv.db", config.Database, ".env overrides the file")
	assert.Equal(t, 20, config.MaxBatchSize, "the environment overrides .env")
	assert.Equal(t, 2, config.Workers)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			yaml:    "workers: [",
			wantErr: "failed to parse config file",
		},
		{
			name:    "invalid batch size",
			yaml:    "max_batch_size: 0",
			wantErr: "max_batch_size must be positive",
		},
		{
			name:    "invalid workers env",
			env:     map[string]string{EnvWorkers: "many"},
			wantErr: "invalid SQLSEED_WORKERS",
		},
		{
			name:    "empty database",
			env:     map[string]string{EnvDatabase: ""},
			wantErr: "database is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "sqlseed.yaml", tt.yaml)
			}
			_, err := LoadWithEnv(path, "")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorContains(t, err, "failed to read config file")

	config, err := LoadWithEnv("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default().Database, config.Database)
}
