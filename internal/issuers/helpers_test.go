package issuers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/migrate"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func sqliteDSN(t *testing.T) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
}

func newSQLiteClient(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(sqliteDSN(t)), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	client := db.Wrap(conn)
	require.NoError(t, migrate.Bootstrap(context.Background(), client, nil))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type backendFactory struct {
	name string
	make func(t *testing.T) Backend
}

func backendFactories() []backendFactory {
	return []backendFactory{
		{name: KindMemory, make: func(t *testing.T) Backend {
			return newMemoryBackend(newStepClock().now)
		}},
		{name: KindPersistent, make: func(t *testing.T) Backend {
			return &persistentBackend{client: newSQLiteClient(t), now: newStepClock().now}
		}},
	}
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	return NewStore(backend, StoreOptions{OpTimeout: 2 * time.Second, Logger: testLogger()})
}

func strPtr(v string) *string { return &v }
