package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Telegram TelegramConfig
	API      APIConfig
	JWT      JWTConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Driver  string // "mysql", "postgres", "sqlite"
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
	SSLMode string
	Path    string
}

type RedisConfig struct {
	Addr        string
	Pass        string
	DB          int
	CallbackTTL time.Duration
}

type AMQPConfig struct {
	URL string
}

type TelegramConfig struct {
	Token      string
	ReportChat int64
}

type APIConfig struct {
	Key      string
	HashFile string
}

type JWTConfig struct {
	Secret string
}

// PaymentConfig holds the scheduling knobs. Gateway credentials are not part
// of it; they are read through a Provider at the moment they are needed.
type PaymentConfig struct {
	StaleAfter     time.Duration
	RecheckEnabled bool
	RecheckMinAge  time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			Addr:        viper.GetString("REDIS_ADDR"),
			Pass:        viper.GetString("REDIS_PASS"),
			DB:          viper.GetInt("REDIS_DB"),
			CallbackTTL: durationOr("CALLBACK_CACHE_TTL", 24*time.Hour),
		},
		AMQP: AMQPConfig{
			URL: viper.GetString("AMQP_URL"),
		},
		Telegram: TelegramConfig{
			Token:      viper.GetString("TELEGRAM_BOT_TOKEN"),
			ReportChat: viper.GetInt64("TELEGRAM_REPORT_CHAT"),
		},
		API: APIConfig{
			Key:      viper.GetString("API_KEY"),
			HashFile: viper.GetString("API_HASH_FILE"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Payment: PaymentConfig{
			StaleAfter:     durationOr("PAYMENT_STALE_AFTER", 24*time.Hour),
			RecheckEnabled: viper.GetBool("PAYMENT_RECHECK_ENABLED"),
			RecheckMinAge:  durationOr("PAYMENT_RECHECK_MIN_AGE", 5*time.Minute),
		},
	}

	if cfg.Database.Driver != "sqlite" && cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set, buyer endpoints will reject every request")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database section, for the migrate command.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	setDefaults()
	db := loadDatabase()
	return &db, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "storepay.db")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CALLBACK_CACHE_TTL", "24h")
	viper.SetDefault("API_HASH_FILE", "hash.txt")
	viper.SetDefault("PAYMENT_STALE_AFTER", "24h")
	viper.SetDefault("PAYMENT_RECHECK_ENABLED", false)
	viper.SetDefault("PAYMENT_RECHECK_MIN_AGE", "5m")
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Driver:  strings.ToLower(viper.GetString("DB_DRIVER")),
		Host:    viper.GetString("DB_HOST"),
		Port:    viper.GetString("DB_PORT"),
		Name:    viper.GetString("DB_NAME"),
		User:    viper.GetString("DB_USER"),
		Pass:    viper.GetString("DB_PASS"),
		Charset: viper.GetString("DB_CHARSET"),
		SSLMode: viper.GetString("DB_SSLMODE"),
		Path:    viper.GetString("DB_PATH"),
	}
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DSN returns the driver specific connection string for GORM.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return "host=" + d.Host + " port=" + d.Port + " user=" + d.User + " password=" + d.Pass +
			" dbname=" + d.Name + " sslmode=" + d.SSLMode
	case "sqlite":
		return d.Path
	default:
		return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
	}
}
