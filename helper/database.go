package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection settings of the PostgreSQL instance.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// NewDatabaseConfiguration reads the database configuration from the environment.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		Database: os.Getenv("DB_DATABASE"),
		Username: os.Getenv("DB_USERNAME"),
		Password: os.Getenv("DB_PASSWORD"),
		Schema:   getEnv("DB_SCHEMA", "public"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	if config.Database == "" || config.Username == "" {
		return nil, NewError("database configuration", fmt.Errorf("DB_DATABASE and DB_USERNAME must be set"))
	}

	return config, nil
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfiguration) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s search_path=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.Schema, c.SSLMode,
	)
}

// Database bundles the connection pool with its logger.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings the database.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("database configuration is nil"))
	}

	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, NewError("open database", err)
	}
	instance.SetMaxOpenConns(25)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := instance.PingContext(ctx); err != nil {
		_ = instance.Close()
		return nil, NewError("ping database", err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}, nil
}

// NewTestDatabase opens a database for tests and aborts on failure.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := NewLogger(os.Stdout, slog.LevelWarn)
	db, err := NewDatabase("test", config, logger)
	if err != nil {
		log.Fatalf("error connecting to test database: %v", err)
	}
	return db
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
