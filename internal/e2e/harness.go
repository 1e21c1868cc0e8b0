// Package e2e runs the mediation layer against a real Postgres started
// through testcontainers. The suite is skipped in -short mode.
package e2e

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestHarness owns the lifecycle of the containers a test run needs.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	Pool        *pgxpool.Pool
}

// StartPostgres starts a postgres container and connects a pool to it.
// Caller is responsible for calling Stop.
func (h *TestHarness) StartPostgres(ctx context.Context) error {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}
	h.PGContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return err
	}
	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return err
	}
	h.PGDSN = fmt.Sprintf("postgres://postgres:password@%s:%s/postgres?sslmode=disable", host, mapped.Port())

	deadline := time.Now().Add(20 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, h.PGDSN)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				h.Pool = pool
				return nil
			}
			pool.Close()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Stop closes the pool and terminates the container.
func (h *TestHarness) Stop(ctx context.Context) error {
	if h.Pool != nil {
		h.Pool.Close()
		h.Pool = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// SeedEmployeeTable creates the employee table the fixtures write into.
func (h *TestHarness) SeedEmployeeTable(ctx context.Context) error {
	_, err := h.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS employee (
			id         text PRIMARY KEY,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL,
			name       text,
			age        bigint,
			active     boolean
		)`)
	return err
}
