package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"linkcore/internal/models"
)

func exerciseKV(t *testing.T, store KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "user_language"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v err %v, want not found", ok, err)
	}
	if err := store.Set(ctx, "user_language", "sw"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "user_language", "en-GB"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := store.Get(ctx, "user_language")
	if err != nil || !ok || got != "en-GB" {
		t.Fatalf("Get = %q ok %v err %v, want en-GB", got, ok, err)
	}
	if err := store.Delete(ctx, "user_language"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "user_language"); ok {
		t.Fatal("value still present after Delete")
	}
	if err := store.Set(ctx, "", "x"); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("Set(empty key) err = %v, want ErrEmptyKey", err)
	}
}

func TestFileKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "kv.json")
	store, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	exerciseKV(t, store)

	if err := store.Set(context.Background(), "persisted", "yes"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	reopened, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok, _ := reopened.Get(context.Background(), "persisted"); !ok || v != "yes" {
		t.Fatalf("reopened Get = %q ok %v", v, ok)
	}
}

func TestSQLiteKV(t *testing.T) {
	store, err := NewSQLiteKV(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	defer store.Close()
	exerciseKV(t, store)
}

func TestSealedKV(t *testing.T) {
	inner, err := NewFileKV(filepath.Join(t.TempDir(), "kv.json"))
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	sealed, err := NewSealed(inner, "correct horse")
	if err != nil {
		t.Fatalf("NewSealed: %v", err)
	}
	exerciseKV(t, sealed)

	ctx := context.Background()
	if err := sealed.Set(ctx, "token", "secret-value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _, _ := inner.Get(ctx, "token")
	if strings.Contains(raw, "secret-value") {
		t.Fatalf("inner store holds plaintext: %q", raw)
	}

	other, _ := NewSealed(inner, "another secret")
	if _, _, err := other.Get(ctx, "token"); !errors.Is(err, ErrSealedValue) {
		t.Fatalf("Get with wrong secret err = %v, want ErrSealedValue", err)
	}

	// values are bound to their key
	_ = inner.Set(ctx, "moved", raw)
	if _, _, err := sealed.Get(ctx, "moved"); !errors.Is(err, ErrSealedValue) {
		t.Fatalf("Get of moved value err = %v, want ErrSealedValue", err)
	}
}

func TestOpenKV(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenKV(context.Background(), KVOptions{DataDir: dir})
	if err != nil {
		t.Fatalf("OpenKV(file): %v", err)
	}
	if _, ok := store.(*FileKV); !ok {
		t.Fatalf("OpenKV default driver = %T, want *FileKV", store)
	}

	store, err = OpenKV(context.Background(), KVOptions{Driver: "sqlite", DataDir: dir, Secret: "s"})
	if err != nil {
		t.Fatalf("OpenKV(sqlite sealed): %v", err)
	}
	defer store.Close()
	if _, ok := store.(*Sealed); !ok {
		t.Fatalf("OpenKV with secret = %T, want *Sealed", store)
	}

	if _, err := OpenKV(context.Background(), KVOptions{Driver: "etcd"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := OpenKV(context.Background(), KVOptions{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for mysql without dsn")
	}
}

func TestStatusHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store, err := NewStatusHistory(path, 3)
	if err != nil {
		t.Fatalf("NewStatusHistory: %v", err)
	}

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		status := models.ConnectionStatus{IsConnected: true, IsReachable: i%2 == 0, ConnectionType: models.ConnectionWifi}
		if err := store.Record(status, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	history := store.History()
	if len(history) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(history))
	}
	if !history[0].CommittedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("oldest sample = %v, want trimmed to minute 2", history[0].CommittedAt)
	}
	if since := store.HistorySince(base.Add(4 * time.Minute)); len(since) != 1 {
		t.Fatalf("HistorySince len = %d, want 1", len(since))
	}
	if n := store.HistoryN(2); len(n) != 2 || !n[1].CommittedAt.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("HistoryN(2) = %+v", n)
	}

	reopened, err := NewStatusHistory(path, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	latest, ok := reopened.Latest()
	if !ok || !latest.Status.IsReachable {
		t.Fatalf("reopened Latest = %+v ok %v", latest, ok)
	}
}
