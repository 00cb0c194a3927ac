package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Drivers accepted by OpenKV.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// KVOptions selects and configures a KV backend.
type KVOptions struct {
	Driver  string
	Path    string
	DSN     string
	Secret  string
	DataDir string
}

// OpenKV builds the configured backend, sealing it when a secret is set.
func OpenKV(ctx context.Context, opts KVOptions) (KV, error) {
	var (
		store KV
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverFile:
		store, err = NewFileKV(resolvePath(opts, "kv.json"))
	case DriverSQLite:
		store, err = NewSQLiteKV(ctx, resolvePath(opts, "kv.db"))
	case DriverMySQL:
		store, err = NewMySQLKV(opts.DSN)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if opts.Secret == "" {
		return store, nil
	}
	sealed, err := NewSealed(store, opts.Secret)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return sealed, nil
}

func resolvePath(opts KVOptions, fallback string) string {
	if opts.Path != "" {
		return opts.Path
	}
	return filepath.Join(opts.DataDir, fallback)
}
