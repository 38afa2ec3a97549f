package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := Load()

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.GeminiModel)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, "llm", cfg.Analysis.Backend)
	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 1, cfg.Analysis.RunConcurrency)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, time.Hour, cfg.Worker.RunTTL)
	assert.False(t, cfg.Database.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANALYSIS_TIMEOUT", "45s")
	t.Setenv("ANALYSIS_RUN_CONCURRENCY", "4")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("RUN_TTL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 4, cfg.Analysis.RunConcurrency)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, time.Hour, cfg.Worker.RunTTL)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing gemini key", env: map[string]string{"GEMINI_API_KEY": ""}, wantErr: "GEMINI_API_KEY"},
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "claude"}, wantErr: "LLM_PROVIDER"},
		{name: "http without url", env: map[string]string{"ANALYSIS_BACKEND": "http"}, wantErr: "ANALYSIS_REMOTE_URL"},
		{name: "s3 without bucket", env: map[string]string{"GEMINI_API_KEY": "k", "EXPORT_BACKEND": "s3"}, wantErr: "S3_BUCKET"},
		{name: "unknown export backend", env: map[string]string{"GEMINI_API_KEY": "k", "EXPORT_BACKEND": "ftp"}, wantErr: "EXPORT_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := Load().Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DBName: "jobs", SSLMode: "disable",
	}}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=jobs sslmode=disable", cfg.GetDatabaseDSN())
}

func TestInitDatabase_Disabled(t *testing.T) {
	db, err := InitDatabase(&Config{})
	require.NoError(t, err)
	assert.Nil(t, db)
}
