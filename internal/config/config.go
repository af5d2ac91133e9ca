package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
	StoreSQLite   = "sqlite"
)

type Config struct {
	// Discord
	DiscordToken       string
	GuildID            string
	SupportRoleID      string
	ReportLogChannelID string
	ClosedLogChannelID string
	StatusName         string
	StatusURL          string

	// Reports
	ReportCooldown time.Duration

	// Storage
	StoreDriver string
	ReportsFile string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBPath      string

	// Staff API
	Port           string
	CORSOrigins    string
	JWTSecret      string
	SupportUserIDs string

	// Observability
	SentryDSN    string
	AppEnv       string
	LogLevel     string
	LogRetention time.Duration
}

// Load reads configuration from the environment. Values from a .env file in
// the working directory are used when the variable is not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DiscordToken:       getEnv("DISCORD_BOT_TOKEN", ""),
		GuildID:            getEnv("DISCORD_GUILD_ID", ""),
		SupportRoleID:      getEnv("SUPPORT_ROLE_ID", ""),
		ReportLogChannelID: getEnv("REPORT_LOG_CHANNEL_ID", ""),
		ClosedLogChannelID: getEnv("CLOSED_LOG_CHANNEL_ID", ""),
		StatusName:         getEnv("BOT_STATUS_NAME", "Report System"),
		StatusURL:          getEnv("BOT_STATUS_URL", ""),

		ReportCooldown: parseDuration(getEnv("REPORT_COOLDOWN", "120s"), 120*time.Second),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreFile)),
		ReportsFile: getEnv("REPORTS_FILE", "reports.json"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", ""),
		DBUser:      getEnv("DB_USER", "reportbot"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "reportbot"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		DBPath:      getEnv("DB_PATH", "reportbot.db"),

		Port:           getEnv("PORT", "8080"),
		CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		SupportUserIDs: getEnv("SUPPORT_USER_IDS", ""),

		SentryDSN:    getEnv("SENTRY_DSN", ""),
		AppEnv:       getEnv("APP_ENV", "production"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),
	}
}

// Validate reports every missing or inconsistent required value at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key, value string
	}{
		{"DISCORD_BOT_TOKEN", c.DiscordToken},
		{"SUPPORT_ROLE_ID", c.SupportRoleID},
		{"REPORT_LOG_CHANNEL_ID", c.ReportLogChannelID},
		{"CLOSED_LOG_CHANNEL_ID", c.ClosedLogChannelID},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s environment variable is required", r.key))
		}
	}

	switch c.StoreDriver {
	case StoreFile, StoreSQLite:
	case StorePostgres, StoreMySQL:
		if c.DBPassword == "" {
			errs = append(errs, fmt.Errorf("DB_PASSWORD environment variable is required for STORE_DRIVER=%s", c.StoreDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// UsesSQL reports whether reports live in a gorm-managed database.
func (c *Config) UsesSQL() bool {
	return c.StoreDriver != StoreFile
}

// APIEnabled reports whether the staff HTTP API can authenticate requests.
func (c *Config) APIEnabled() bool {
	return c.JWTSecret != ""
}

// DSN returns the connection string for the configured SQL driver.
func (c *Config) DSN() string {
	switch c.StoreDriver {
	case StoreMySQL:
		return c.DBUser + ":" + c.DBPassword +
			"@tcp(" + c.DBHost + ":" + c.dbPort("3306") + ")/" + c.DBName +
			"?charset=utf8mb4&parseTime=True&loc=UTC"
	case StoreSQLite:
		return c.DBPath
	default:
		return "host=" + c.DBHost +
			" user=" + c.DBUser +
			" password=" + c.DBPassword +
			" dbname=" + c.DBName +
			" port=" + c.dbPort("5432") +
			" sslmode=" + c.DBSSLMode +
			" TimeZone=UTC"
	}
}

func (c *Config) dbPort(fallback string) string {
	if c.DBPort != "" {
		return c.DBPort
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
