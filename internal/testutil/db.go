package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gofrs/uuid"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/database/postgres"
)

// SchemaDDL creates the Redmine-style tables the query engine runs
// against. Integration tests apply it into an isolated schema.
const SchemaDDL = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		login TEXT NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT TRUE,
		status INT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS roles (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		builtin INT NOT NULL DEFAULT 0,
		permissions TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		project_id BIGINT NOT NULL REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS member_roles (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id),
		role_id BIGINT NOT NULL REFERENCES roles(id)
	);

	CREATE TABLE IF NOT EXISTS issue_statuses (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		position INT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS issue_categories (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attachment_categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS issues (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id),
		subject TEXT NOT NULL,
		status_id BIGINT NOT NULL REFERENCES issue_statuses(id),
		category_id BIGINT REFERENCES issue_categories(id)
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id BIGSERIAL PRIMARY KEY,
		container_id BIGINT,
		container_type TEXT,
		filename TEXT NOT NULL,
		filesize BIGINT NOT NULL DEFAULT 0,
		downloads INT NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		author_id BIGINT NOT NULL REFERENCES users(id),
		created_on TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		attachment_category_id BIGINT REFERENCES attachment_categories(id)
	);

	CREATE TABLE IF NOT EXISTS attachment_queries (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT REFERENCES projects(id),
		name TEXT NOT NULL,
		user_id BIGINT NOT NULL,
		visibility INT NOT NULL DEFAULT 0,
		filters JSONB NOT NULL DEFAULT '[]',
		column_names TEXT[] NOT NULL DEFAULT '{}',
		sort_criteria JSONB NOT NULL DEFAULT '[]',
		group_by TEXT NOT NULL DEFAULT '',
		totalable_names TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS queries_roles (
		query_id BIGINT NOT NULL REFERENCES attachment_queries(id),
		role_id BIGINT NOT NULL REFERENCES roles(id),
		PRIMARY KEY (query_id, role_id)
	);
`

// SetupDB connects to the test database, creates an isolated schema,
// applies the fixture DDL, and registers cleanup. Returns nil when the
// database is unreachable so callers can skip.
func SetupDB(t *testing.T) *postgres.Client {
	t.Helper()

	cfg := LoadTestConfig(t)
	ctx := context.Background()

	client, err := postgres.NewClient(ctx, &postgres.Config{
		Host:               cfg.PGHost,
		Port:               cfg.PGPort,
		Username:           cfg.PGUser,
		Password:           cfg.PGPassword,
		Database:           cfg.PGDatabase,
		SSLMode:            "disable",
		MaxOpenConnections: 10,
		MaxIdleConnections: 5,
		ConnectTimeout:     5,
	})
	if err != nil {
		return nil
	}

	schema := fmt.Sprintf("test_%s_%s",
		sanitizeTestName(t.Name()), uuid.Must(uuid.NewV4()).String()[:8])

	if _, err := client.DB().ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	if _, err := client.DB().ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", schema)); err != nil {
		t.Fatalf("failed to set search path: %v", err)
	}
	if _, err := client.DB().ExecContext(ctx, SchemaDDL); err != nil {
		t.Fatalf("failed to apply fixture schema: %v", err)
	}

	t.Cleanup(func() {
		_, _ = client.DB().ExecContext(context.Background(),
			fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
		client.Close()
	})
	return client
}

func sanitizeTestName(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
