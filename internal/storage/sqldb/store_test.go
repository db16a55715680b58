package sqldb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/devgenius/artifact-gateway/internal/storage"
	"github.com/devgenius/artifact-gateway/internal/storage/storagetest"
)

var dbSeq atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	store, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLDBStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newTestStore(t) })
}

func TestSQLDBStore_SchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.initSchema(); err != nil {
		t.Fatalf("second initSchema() error = %v", err)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "mysql", DSN: "x"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
