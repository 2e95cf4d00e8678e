package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

const opTimeout = 5 * time.Second

const upsertEntrySQL = `
	INSERT INTO kv_entries (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`

type keyValueStore struct {
	store *Store
}

// NewKeyValueStore создаёт PostgreSQL-реализацию KeyValueStore поверх таблицы kv_entries.
func NewKeyValueStore(store *Store) domain.KeyValueStore {
	return &keyValueStore{store: store}
}

func (r *keyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.store == nil || r.store.db == nil {
		return nil, errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := r.store.db.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("select kv entry %q: %w", key, err)
	}
	return value, nil
}

func (r *keyValueStore) Put(ctx context.Context, key string, value []byte) error {
	if r.store == nil || r.store.db == nil {
		return errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.db.ExecContext(ctx, upsertEntrySQL, key, string(value)); err != nil {
		return fmt.Errorf("upsert kv entry %q: %w", key, err)
	}
	return nil
}

// PutMany записывает все ключи в одной транзакции: импорт либо применяется целиком, либо нет.
func (r *keyValueStore) PutMany(ctx context.Context, values map[string][]byte) (err error) {
	if r.store == nil || r.store.db == nil {
		return errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for key, value := range values {
		if _, err = tx.ExecContext(ctx, upsertEntrySQL, key, string(value)); err != nil {
			return fmt.Errorf("upsert kv entry %q: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit kv entries: %w", err)
	}
	return nil
}

var _ domain.KeyValueStore = (*keyValueStore)(nil)
