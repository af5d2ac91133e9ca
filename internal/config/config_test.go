package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("SUPPORT_ROLE_ID", "100")
	t.Setenv("REPORT_LOG_CHANNEL_ID", "200")
	t.Setenv("CLOSED_LOG_CHANNEL_ID", "300")
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreFile, cfg.StoreDriver)
	assert.Equal(t, "reports.json", cfg.ReportsFile)
	assert.Equal(t, 120*time.Second, cfg.ReportCooldown)
	assert.Equal(t, 30*24*time.Hour, cfg.LogRetention)
	assert.Equal(t, "Report System", cfg.StatusName)
	assert.False(t, cfg.UsesSQL())
	assert.False(t, cfg.APIEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("REPORT_COOLDOWN", "30s")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/var/lib/reportbot.db")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LOG_RETENTION", "garbage")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.ReportCooldown)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "/var/lib/reportbot.db", cfg.DSN())
	assert.True(t, cfg.UsesSQL())
	assert.True(t, cfg.APIEnabled())
	assert.Equal(t, 30*24*time.Hour, cfg.LogRetention)
}

func TestValidate_ReportsAllMissingValues(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"DISCORD_BOT_TOKEN", "SUPPORT_ROLE_ID", "REPORT_LOG_CHANNEL_ID", "CLOSED_LOG_CHANNEL_ID", "DB_PASSWORD"} {
		t.Setenv(key, "")
	}
	t.Setenv("STORE_DRIVER", "postgres")

	err := Load().Validate()
	require.Error(t, err)
	for _, key := range []string{"DISCORD_BOT_TOKEN", "SUPPORT_ROLE_ID", "REPORT_LOG_CHANNEL_ID", "CLOSED_LOG_CHANNEL_ID", "DB_PASSWORD"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := &Config{
		DiscordToken:       "t",
		SupportRoleID:      "1",
		ReportLogChannelID: "2",
		ClosedLogChannelID: "3",
		StoreDriver:        "redis",
	}
	assert.ErrorContains(t, cfg.Validate(), `unknown STORE_DRIVER "redis"`)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		StoreDriver: StorePostgres,
		DBHost:      "db",
		DBUser:      "bot",
		DBPassword:  "pw",
		DBName:      "reports",
		DBSSLMode:   "disable",
	}
	assert.Equal(t, "host=db user=bot password=pw dbname=reports port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())

	cfg.StoreDriver = StoreMySQL
	cfg.DBPort = "3307"
	assert.Equal(t, "bot:pw@tcp(db:3307)/reports?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DSN())
}
