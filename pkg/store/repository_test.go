package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exerciseRepository checks the behaviour every backend shares.
func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}
	if err := repo.Put(ctx, DocumentKey, []byte(`{"users":[]}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, DocumentKey, []byte(`{"users":[],"channels":[]}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := repo.Get(ctx, DocumentKey)
	if err != nil || !ok || string(got) != `{"users":[],"channels":[]}` {
		t.Fatalf("get = %q ok=%v err=%v", got, ok, err)
	}
	if err := repo.Delete(ctx, DocumentKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, DocumentKey); ok {
		t.Fatalf("value survived delete")
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository(0))
}

func TestMemoryRepositoryQuotaCountsAllKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(10)
	if err := repo.Put(ctx, "a", []byte("123456")); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := repo.Put(ctx, "b", []byte("123456")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if err := repo.Put(ctx, "a", []byte("1234567890")); err != nil {
		t.Fatalf("replacing a value should only count the new size: %v", err)
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cards.db"), 64)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer repo.Close()
	exerciseRepository(t, repo)

	err = repo.Put(context.Background(), DocumentKey, []byte(strings.Repeat("x", 65)))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestRedisRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisRepository(client, "test", 0)
	exerciseRepository(t, repo)

	if err := repo.Put(context.Background(), ChatKey, []byte("[]")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("test:" + ChatKey) {
		t.Fatalf("expected prefixed key in redis")
	}
}

func TestStoreOverSQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cards.db"), 0)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer repo.Close()

	s := newTestStore(repo)
	if _, err := s.AddChannel(ctx, userChannel(1, "data:image/png;base64,AAAA")); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	ch, ok, err := s.GetChannel(ctx, "ch-1")
	if err != nil || !ok {
		t.Fatalf("get channel: ok=%v err=%v", ok, err)
	}
	if len(ch.Cards) != 2 || ch.Cards[0].ImageURL == "" {
		t.Fatalf("channel did not round trip: %+v", ch)
	}
}
