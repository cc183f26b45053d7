// Package testutil starts throwaway backing services for integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cloo-solutions/vocabtool/internal/database"
)

const (
	postgresImage = "postgres:17-alpine"
	rustfsImage   = "rustfs/rustfs:latest"
	pgCredential  = "vocab"
	s3Credential  = "rustfsadmin"
)

// endpoint is the host-side address of one exposed container port.
type endpoint struct {
	container testcontainers.Container
	Host      string
	Port      string
}

// start runs req and resolves the mapped address of port. The container is
// removed when the test ends.
func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port) endpoint {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}
	return endpoint{container: c, Host: host, Port: mapped.Port()}
}

// PostgresContainer is a disposable PostgreSQL for resolution-log tests.
type PostgresContainer struct {
	endpoint
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	ep := start(ctx, t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		// postgres restarts once after init, so the ready line is logged twice
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	}, nat.Port("5432/tcp"))
	return &PostgresContainer{endpoint: ep}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%[1]s:%[1]s@%s:%s/%[1]s?sslmode=disable", pgCredential, pc.Host, pc.Port)
}

// RustFSContainer is a disposable S3-compatible object store.
type RustFSContainer struct {
	endpoint
	AccessKey string
	SecretKey string
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	ep := start(ctx, t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": s3Credential,
			"RUSTFS_SECRET_KEY": s3Credential,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, nat.Port("9000/tcp"))
	return &RustFSContainer{endpoint: ep, AccessKey: s3Credential, SecretKey: s3Credential}
}

// Endpoint is the S3 API base URL.
func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Host + ":" + rc.Port
}

// NewTestPool connects to pc, retrying while the server finishes starting,
// and applies the embedded migrations. The pool is closed when the test ends.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()
	dsn := pc.ConnectionString()

	var (
		pool *pgxpool.Pool
		err  error
	)
	for attempt := 1; attempt <= 5; attempt++ {
		if pool, err = database.NewPool(ctx, database.Config{URL: dsn, MaxConns: 4}); err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect to %s: %v", dsn, err)
	}
	t.Cleanup(pool.Close)

	if _, err := database.Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// TruncateAll empties every application table.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE TABLE resolution_logs")
	if err != nil {
		return fmt.Errorf("truncate resolution_logs: %w", err)
	}
	return nil
}
