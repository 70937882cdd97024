package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseJSON_AllSections(t *testing.T) {
	path := writeTempJSON(t, `{
		"migrate": true,
		"debug": true,
		"default_language": "fr",
		"auth": {
			"password_hash_key": "phk",
			"token_sign_key": "tsk",
			"token_issuer": "reliefhub",
			"token_duration": "1h"
		},
		"database": {
			"driver": "pgx",
			"host": "db.local",
			"port": 5432,
			"name": "reliefhub",
			"user": "relief",
			"password": "secret",
			"pool_size": 8
		},
		"server": {
			"http_address": "0.0.0.0:8080",
			"request_timeout": "30s"
		},
		"sync": {
			"repository_uuid": "11111111-1111-1111-1111-111111111111",
			"repository_name": "hq",
			"scheduler_period": "2m",
			"max_retries": 5,
			"backoff": "10s"
		},
		"audit": {
			"read_enabled": true,
			"write_enabled": true
		}
	}`)

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.True(t, cfg.Migrate)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "fr", cfg.DefaultLanguage)
	assert.Equal(t, "phk", cfg.Auth.PasswordHashKey)
	assert.Equal(t, time.Hour, cfg.Auth.TokenDuration)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Database.PoolSize)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "hq", cfg.Sync.RepositoryName)
	assert.Equal(t, 2*time.Minute, cfg.Sync.SchedulerPeriod)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.True(t, cfg.Audit.ReadEnabled)
}

func TestParseJSON_DurationAsNumber(t *testing.T) {
	path := writeTempJSON(t, `{"server": {"request_timeout": 1000000000}}`)

	cfg, err := parseJSON(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Server.RequestTimeout)
}

func TestParseJSON_FileMissing(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestParseJSON_MalformedJSON(t *testing.T) {
	path := writeTempJSON(t, `{"migrate": `)
	_, err := parseJSON(path)
	require.Error(t, err)
}

func TestDatabaseConnString(t *testing.T) {
	db := Database{
		Driver: "pgx", Host: "localhost", Port: 5432,
		Name: "reliefhub", User: "u", Password: "p",
	}
	assert.Equal(t,
		"postgres://u:p@localhost:5432/reliefhub?sslmode=disable",
		db.ConnString())

	db.DSN = "postgres://explicit"
	assert.Equal(t, "postgres://explicit", db.ConnString())

	sqlite := Database{Driver: "sqlite3", Name: ":memory:"}
	assert.Equal(t, ":memory:", sqlite.ConnString())
}

func TestValidate(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.applyDefaults()
	cfg.Database.Name = "reliefhub"
	require.ErrorIs(t, cfg.validate(), ErrInvalidAuthConfigs)

	cfg.Auth.PasswordHashKey = "a"
	cfg.Auth.TokenSignKey = "b"
	require.NoError(t, cfg.validate())

	cfg.Database.Driver = "oracle"
	require.ErrorIs(t, cfg.validate(), ErrUnsupportedDatabaseDriver)
}
