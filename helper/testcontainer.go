package helper

import (
	"context"
	"log"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseImage    = "pgvector/pgvector:pg17"
	testDatabaseName     = "database"
	testDatabaseUser     = "user"
	testDatabasePassword = "password"
)

// MustStartPostgresContainer starts a pgvector enabled PostgreSQL container
// and returns its teardown function and mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		testDatabaseImage,
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", NewError("start postgres container", err)
	}

	connectionString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container.Terminate, "", NewError("postgres connection string", err)
	}

	u, err := url.Parse(connectionString)
	if err != nil {
		return container.Terminate, "", NewError("parse connection string", err)
	}

	log.Printf("postgres test container running on port %s", u.Port())

	return container.Terminate, u.Port(), nil
}

// SetTestDatabaseConfigEnvs points the DB_* variables at the test container.
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", port)
	t.Setenv("DB_DATABASE", testDatabaseName)
	t.Setenv("DB_USERNAME", testDatabaseUser)
	t.Setenv("DB_PASSWORD", testDatabasePassword)
	t.Setenv("DB_SCHEMA", "public")
	t.Setenv("DB_SSLMODE", "disable")
}
