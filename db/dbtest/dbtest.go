package dbtest

import (
	"net/http"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go-stellar-sdk/support/db/dbtest"
	"github.com/stellar/go-stellar-sdk/support/db/schema"

	coordinatormigrations "github.com/agentmarket/coordinator/db/migrations/coordinator-migrations"
)

func OpenWithoutMigrations(t *testing.T) *dbtest.DB {
	return dbtest.Postgres(t)
}

// Open returns a Postgres test database with the coordinator schema applied.
func Open(t *testing.T) *dbtest.DB {
	db := OpenWithoutMigrations(t)

	conn := db.Open()
	defer conn.Close()

	// NOTE: this table name is hardcoded in migrate.go and needs to be kept in sync if updated.
	ms := migrate.MigrationSet{TableName: "coordinator_migrations"}
	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(coordinatormigrations.FS)}
	_, err := ms.ExecMax(conn.DB, "postgres", m, migrate.Up, 0)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func OpenWithCoordinatorMigrationsOnly(t *testing.T) *dbtest.DB {
	db := OpenWithoutMigrations(t)

	conn := db.Open()
	defer conn.Close()

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(coordinatormigrations.FS)}
	_, err := schema.Migrate(conn.DB, m, schema.MigrateUp, 0)
	if err != nil {
		t.Fatal(err)
	}
	return db
}
