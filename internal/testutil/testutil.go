package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"hopperGateway/internal/db"
	"hopperGateway/internal/recordstore"
)

const StoreSecret = "test-secret"

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The database is closed on test cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// shared cache keeps the schema visible to every pooled connection
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// NewStore returns an embedded record store on a fresh in-memory database.
func NewStore(t *testing.T, name string) *recordstore.SQLite {
	t.Helper()
	return recordstore.NewSQLite(OpenInMemoryDB(t, name), StoreSecret)
}

// GenerateJWTHS256 returns a signed session token for the auth_users record
// id, shaped like the ones the embedded store issues. A negative ttl yields
// an expired token.
func GenerateJWTHS256(t *testing.T, secret, id string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":            id,
		"collectionName": recordstore.CollectionUsers,
		"exp":            time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// MustCreate inserts a record and returns its id.
func MustCreate(t *testing.T, s recordstore.Store, collection string, body any) string {
	t.Helper()
	raw, err := s.Create(context.Background(), collection, body)
	if err != nil {
		t.Fatalf("create %s: %v", collection, err)
	}
	var rec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" {
		t.Fatalf("create %s: bad record %s: %v", collection, raw, err)
	}
	return rec.ID
}

// MustCreateUser inserts an auth_users record with the given password.
func MustCreateUser(t *testing.T, s recordstore.Store, username, email, password string) string {
	t.Helper()
	return MustCreate(t, s, recordstore.CollectionUsers, map[string]any{
		"username":        username,
		"email":           email,
		"password":        password,
		"passwordConfirm": password,
		"role":            "user",
		"active":          true,
	})
}
