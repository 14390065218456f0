package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outreach.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_driver: sqlite
db_path: from-file.db
server_port: 7000
jwt_secret: file-secret
max_login_attempts: 3
jwt_expires_in: 2h
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "8080")
	t.Cleanup(func() { fileValues = nil })

	require.NoError(t, LoadConfig())

	assert.Equal(t, "8080", AppConfig.ServerPort, "environment wins over file")
	assert.Equal(t, "sqlite", AppConfig.DBDriver)
	assert.Equal(t, "from-file.db", AppConfig.DBPath)
	assert.Equal(t, "file-secret", AppConfig.JWTSecret)
	assert.Equal(t, 3, AppConfig.MaxLoginAttempts)
	assert.Equal(t, 2*time.Hour, AppConfig.JWTExpiresIn)
	assert.Equal(t, 7*24*time.Hour, AppConfig.JWTRefreshExpiresIn, "default kept")
}

func TestValidate(t *testing.T) {
	base := Config{
		Environment:      "development",
		DBDriver:         "sqlite",
		JWTSecret:        "secret",
		MaxLoginAttempts: 5,
		CORSOrigins:      []string{"*"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"postgres without password", func(c *Config) { c.DBDriver = "postgres" }, "DB_PASSWORD is required"},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }, "unsupported DB_DRIVER"},
		{"bad encryption key", func(c *Config) { c.EncryptionKey = "short" }, "ENCRYPTION_KEY"},
		{"wildcard cors in production", func(c *Config) { c.Environment = "production" }, "CORS_ORIGIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t,
		"host=db password=***** dbname=outreach",
		maskPassword("host=db password=hunter2 dbname=outreach"))
	assert.Equal(t, "host=db password=*****", maskPassword("host=db password=hunter2"))
	assert.Equal(t, "host=db", maskPassword("host=db"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, splitList(" https://a.io, ,https://b.io "))
	assert.Nil(t, splitList(""))
}
