package contacts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/contactbook-backend/pkg/config"
	"github.com/angelmondragon/contactbook-backend/pkg/db"
	"github.com/angelmondragon/contactbook-backend/pkg/migrate"
	"github.com/angelmondragon/contactbook-backend/pkg/pagination"
	"github.com/angelmondragon/contactbook-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

// stepClock returns a strictly increasing clock, one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// Set moves the clock so the next call returns t plus one second.
func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type storeFactory struct {
	name string
	open func(t *testing.T, opts ...Option) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{name: "file", open: func(t *testing.T, opts ...Option) Store { return newFileStore(t, opts...) }},
		{name: "sql", open: func(t *testing.T, opts ...Option) Store { return newSQLStore(t, opts...) }},
	}
}

func newFileStore(t *testing.T, opts ...Option) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.json")
	store, err := OpenFileStore(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSQLClient(t *testing.T) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: config.DBDriverSQLite}, nil)
	require.NoError(t, err)

	sqlDB, err := client.SQLDB()
	require.NoError(t, err)
	_, err = migrate.Up(context.Background(), sqlDB, config.DBDriverSQLite)
	require.NoError(t, err)
	return client
}

func newSQLStore(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(newSQLClient(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testOptions(clock *stepClock) []Option {
	return []Option{
		WithClock(clock.Now),
		WithLimits(pagination.Limits{Default: 10, Max: 100}),
	}
}

func candidate(name, phone string) Candidate {
	return Candidate{
		Name:  types.LooseString{Value: name},
		Phone: types.LooseString{Value: phone},
	}
}

func mustCreate(t *testing.T, store Store, name, phone string) *Contact {
	t.Helper()
	c, err := store.Create(context.Background(), NewContact{Name: name, Phone: phone})
	require.NoError(t, err)
	return c
}
