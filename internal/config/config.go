package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Skotchmaster/modular_monolith/internal/models"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`

	JWTSecret   string        `env:"JWT_SECRET"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"modular-monolith"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"modular-monolith-clients"`
	AccessTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	KafkaAddress string `env:"KAFKA_ADDRESS"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"user_events"`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`
	ESIndex    string `env:"ES_INDEX" envDefault:"users"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// The token issuer cannot run with an empty signing key, refuse to start.
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	return cfg, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.RoleClaim{},
		&models.UserRole{},
		&models.RefreshToken{},
	)
}
