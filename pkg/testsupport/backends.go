package testsupport

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-storefront-cache/internal/database"
)

// SQLiteConfig returns an in-memory SQLite configuration private to tb.
func SQLiteConfig(tb testing.TB) database.Config {
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(tb.Name())
	cfg := database.DefaultConfig()
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	return cfg
}

// NewSQLiteDB opens a private in-memory SQLite database named after the test
// and closes it on cleanup.
func NewSQLiteDB(t testing.TB) *bun.DB {
	t.Helper()

	db, err := database.Open(context.Background(), SQLiteConfig(t))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewRedis starts a miniredis server and returns it with a connected client.
// Both are shut down on cleanup.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}
