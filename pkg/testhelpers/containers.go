// Package testhelpers provides a shared MySQL container seeded with a small
// multi-tenant site for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver for seeding
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/retry"
)

// MySQLImage is the server image used for integration tests.
const MySQLImage = "mysql:8.0"

const (
	siteDatabase = "wordpress"
	siteUser     = "sitequery"
	sitePassword = "test_password"
)

// SiteDB is a running MySQL container with the fixture site loaded.
type SiteDB struct {
	Container testcontainers.Container
	DB        *sql.DB
	Config    *config.DatasourceConfig
}

var (
	sharedSiteDB     *SiteDB
	sharedSiteDBOnce sync.Once
	sharedSiteDBErr  error
)

// GetSiteDB returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetSiteDB(t *testing.T) *SiteDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedSiteDBOnce.Do(func() {
		sharedSiteDB, sharedSiteDBErr = setupSiteDB()
	})

	if sharedSiteDBErr != nil {
		t.Fatalf("Failed to setup site database: %v", sharedSiteDBErr)
	}

	return sharedSiteDB
}

func setupSiteDB() (*SiteDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root_password",
			"MYSQL_DATABASE":      siteDatabase,
			"MYSQL_USER":          siteUser,
			"MYSQL_PASSWORD":      sitePassword,
		},
		// The entrypoint starts a temporary server first; the second
		// "ready for connections" line belongs to the real one.
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mysql container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", port.Port(), err)
	}

	cfg := &config.DatasourceConfig{
		Type:                "mysql",
		Host:                host,
		Port:                portNum,
		User:                siteUser,
		Password:            sitePassword,
		Database:            siteDatabase,
		SSLMode:             "disable",
		PoolMaxConns:        5,
		QueryTimeoutSeconds: 10,
		MaxRows:             500,
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		siteUser, sitePassword, host, portNum, siteDatabase)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	if err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return db.PingContext(ctx)
	}); err != nil {
		return nil, fmt.Errorf("mysql never became reachable: %w", err)
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	return &SiteDB{
		Container: container,
		DB:        db,
		Config:    cfg,
	}, nil
}

func seed(ctx context.Context, db *sql.DB) error {
	for i, stmt := range fixtureStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed statement %d failed: %w", i, err)
		}
	}
	return nil
}
