package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"outreach/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool

	// values read from CONFIG_FILE, keyed by environment variable name
	fileValues map[string]string
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBDriver       string `json:"db_driver"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBPath         string `json:"db_path"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	JWTSecret           string        `json:"-"`
	JWTExpiresIn        time.Duration `json:"jwt_expires_in"`
	JWTRefreshExpiresIn time.Duration `json:"jwt_refresh_expires_in"`
	MaxLoginAttempts    int           `json:"max_login_attempts"`
	EncryptionKey       string        `json:"-"`

	CORSOrigins  []string    `json:"cors_origins"`
	Redis        RedisConfig `json:"redis"`
	RateLimitMax int         `json:"rate_limit_max"`

	AMQPURL           string        `json:"-"`
	SentryDSN         string        `json:"-"`
	CleanupCron       string        `json:"cleanup_cron"`
	StatsPushInterval time.Duration `json:"stats_push_interval"`

	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"-"`
	AdminName     string `json:"admin_name"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

// IsProduction reports whether the service runs with production settings
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() error {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := loadConfigFile(path)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		fileValues = values
	}

	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "outreach"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBPath:         getEnv("DB_PATH", "outreach.db"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpiresIn:        getEnvAsDuration("JWT_EXPIRES_IN", 24*time.Hour),
		JWTRefreshExpiresIn: getEnvAsDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
		MaxLoginAttempts:    getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),

		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "*")),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimitMax: getEnvAsInt("RATE_LIMIT_MAX", 100),

		AMQPURL:           getEnv("AMQP_URL", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		CleanupCron:       getEnv("CLEANUP_CRON", "@daily"),
		StatsPushInterval: getEnvAsDuration("STATS_PUSH_INTERVAL", 5*time.Second),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}

	if err := AppConfig.Validate(); err != nil {
		return err
	}

	configureLogging()
	logConfig()
	return nil
}

// Validate checks the settings the service cannot start without
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if k := len(c.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes")
	}
	if c.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.IsProduction() {
		for _, origin := range c.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGIN must list explicit origins in production")
			}
		}
	}
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	var dialector gorm.Dialector
	switch AppConfig.DBDriver {
	case "sqlite":
		logrus.WithField("path", AppConfig.DBPath).Info("Using sqlite database")
		dialector = sqlite.Open(AppConfig.DBPath + "?_foreign_keys=on")
	default:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBSSLMode,
		)
		logrus.WithField("dsn", maskPassword(dsn)).Info("Using connection string")
		dialector = postgres.Open(dsn)
	}

	var err error
	DB, err = gorm.Open(dialector, GormConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	if AppConfig.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
		sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("✅ Successfully connected to the database")
	logrus.Info("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := models.SeedSectors(DB); err != nil {
		return fmt.Errorf("failed to seed sectors: %w", err)
	}
	logrus.Info("✅ Database migration completed")
	return nil
}

// GormConfig is shared by the server and the test database helper.
// TranslateError maps driver constraint errors onto gorm sentinel errors.
func GormConfig() *gorm.Config {
	level := gormlogger.Warn
	if AppConfig.IsProduction() || AppConfig.Environment == "test" {
		level = gormlogger.Silent
	}
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Sector{},
		&models.Prospect{},
		&models.EmailTemplate{},
		&models.Sender{},
		&models.Campaign{},
		&models.CampaignRecipient{},
		&models.EmailSend{},
		&models.Credential{},
		&models.AutomationLog{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, ok := fileValues[key]; ok {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfigFile reads a flat YAML document. Keys are matched against
// environment variable names case-insensitively (db_host -> DB_HOST).
func loadConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func configureLogging() {
	if AppConfig.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}

func logConfig() {
	log := logrus.WithField("component", "config")
	log.Info("🔧 Loaded configuration")
	log.Infof("Environment: %s", AppConfig.Environment)
	log.Infof("Server Port: %s", AppConfig.ServerPort)
	if AppConfig.DBDriver == "sqlite" {
		log.Infof("Database: sqlite %s", AppConfig.DBPath)
	} else {
		log.Infof("Database: %s@%s:%s/%s",
			AppConfig.DBUser,
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBName)
	}
	log.Infof("Integrations: Redis(%t), AMQP(%t), Sentry(%t)",
		AppConfig.Redis.Enabled,
		AppConfig.AMQPURL != "",
		AppConfig.SentryDSN != "")
}
