package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/storage/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(memory.NewKeyValueStore(), nil)
}

func TestStore_ListEmptyWhenKeyMissing(t *testing.T) {
	store := newTestStore(t)

	products, err := store.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, products)
	require.Empty(t, products)
}

func TestStore_UpsertInsertsThenUpdatesByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, domain.Product{ID: "A", Name: "Milk", Size: "1L", Price: 10, Category: "Milk", Container: domain.ContainerCrate}))
	require.NoError(t, store.Upsert(ctx, domain.Product{ID: "B", Name: "Curd", Size: "400g", Price: 35, Category: "Curd"}))
	require.NoError(t, store.Upsert(ctx, domain.Product{ID: "A", Name: "Gold Milk", Size: "500ml", Price: 12, Category: "Milk", Container: domain.ContainerOther}))

	products, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	got, ok, err := store.FindByID(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Gold Milk", got.Name)
	require.Equal(t, 12.0, got.Price)
	require.Equal(t, domain.ContainerOther, got.Container)
}

func TestStore_UpsertValidates(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), domain.Product{ID: "A", Name: " ", Price: -1})
	if !errors.Is(err, domain.ErrProductNameRequired) {
		t.Fatalf("expected name error, got %v", err)
	}
	if !errors.Is(err, domain.ErrProductPriceNegative) {
		t.Fatalf("expected price error, got %v", err)
	}
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStore_AddGeneratesFreshID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Add(ctx, Draft{Name: "Paneer", Size: "200g", Price: 90, Category: "Paneer"})
	require.NoError(t, err)
	second, err := store.Add(ctx, Draft{Name: "Paneer", Size: "200g", Price: 90, Category: "Paneer"})
	require.NoError(t, err)

	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)

	products, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestStore_AddRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	taken := uuid.MustParse("01890000-0000-7000-8000-000000000001")
	fresh := uuid.MustParse("01890000-0000-7000-8000-000000000002")
	require.NoError(t, store.Upsert(ctx, domain.Product{ID: taken.String(), Name: "Butter", Price: 50}))

	ids := []uuid.UUID{taken, fresh}
	store.newID = func() (uuid.UUID, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	product, err := store.Add(ctx, Draft{Name: "Ghee", Price: 500})
	require.NoError(t, err)
	require.Equal(t, fresh.String(), product.ID)
}

func TestStore_AddFailsWhenEveryIDCollides(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	taken := uuid.MustParse("01890000-0000-7000-8000-000000000001")
	require.NoError(t, store.Upsert(ctx, domain.Product{ID: taken.String(), Name: "Butter", Price: 50}))
	store.newID = func() (uuid.UUID, error) { return taken, nil }

	_, err := store.Add(ctx, Draft{Name: "Ghee", Price: 500})
	require.ErrorIs(t, err, domain.ErrProductIDConflict)
}

func TestStore_RemoveIsNoOpWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, domain.Product{ID: "A", Name: "Milk", Price: 10}))

	removed, err := store.Remove(ctx, "missing")
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = store.Remove(ctx, "A")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err := store.FindByID(ctx, "A")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ListReturnsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, domain.Product{ID: "A", Name: "Milk", Price: 10}))

	products, err := store.List(ctx)
	require.NoError(t, err)
	products[0].Name = "changed"

	again, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "Milk", again[0].Name)
}

func TestStore_ListRejectsInvalidContainerInStorage(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKeyValueStore()
	require.NoError(t, kv.Put(ctx, domain.KeyProducts, []byte(`[{"id":"A","name":"Milk","price":1,"container":"box"}]`)))

	_, err := NewStore(kv, nil).List(ctx)
	require.ErrorIs(t, err, domain.ErrContainerInvalid)
}

func TestSorted_CategoryThenNameCaseInsensitive(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Name: "taaza", Category: "Milk"},
		{ID: "2", Name: "Butter", Category: "butter"},
		{ID: "3", Name: "Gold", Category: "milk"},
		{ID: "4", Name: "amul", Category: "Butter"},
	}

	sorted := Sorted(products)
	var ids []string
	for _, p := range sorted {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"4", "2", "3", "1"}, ids)
	require.Equal(t, "1", products[0].ID, "input must not be reordered")
}

func TestResolve_UnknownFallback(t *testing.T) {
	products := []domain.Product{{ID: "A", Name: "Milk", Size: "1L"}}

	ref := Resolve(products, "A")
	require.True(t, ref.Resolved)
	require.Equal(t, "Milk 1L", ref.Label())
	require.Equal(t, "Milk - 1L", ref.DisplayName())

	missing := Resolve(products, "gone")
	require.False(t, missing.Resolved)
	require.Equal(t, domain.UnknownProductLabel, missing.Label())
	require.Equal(t, missing, NewIndex(products).Resolve("gone"))
	require.Equal(t, ref, NewIndex(products).Resolve("A"))
}
