package domain

import "context"

// Ключи key-value хранилища.
const (
	KeyProducts = "products"
	KeyHistory  = "history"
	KeyTheme    = "theme"
)

// KeyValueStore описывает хранилище состояния: значения — JSON-документы по ключу.
type KeyValueStore interface {
	// Get возвращает значение или ErrKeyNotFound, если ключа нет.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put сохраняет значение, перезаписывая существующее.
	Put(ctx context.Context, key string, value []byte) error
	// PutMany атомарно сохраняет несколько ключей (используется при импорте).
	PutMany(ctx context.Context, values map[string][]byte) error
}
