package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/iliyamo/restaurant-auth/internal/database"
	"github.com/iliyamo/restaurant-auth/internal/model"
)

// testDB opens a migrated SQLite database in a per-test temp dir.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db, "sqlite3"); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *sql.DB, username string, role model.Role) model.User {
	t.Helper()
	u := model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$not-a-real-hash",
		Role:         role,
		IsActive:     true,
	}
	if err := NewUserRepo(db).Create(context.Background(), &u); err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	return u
}
