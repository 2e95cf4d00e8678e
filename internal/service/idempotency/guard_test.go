package idempotency

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/storage/memory"
)

func TestGuard_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	hash := HashRequest("save-order", []byte(`{"quantities":{"A":"3"}}`))

	calls := 0
	handler := func() Response {
		calls++
		return Response{Status: http.StatusCreated, Body: []byte(`{"key":"2024-05-01T10:00:00.000Z"}`)}
	}

	first, replayed, err := guard.Do("key-1", hash, handler)
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, http.StatusCreated, first.Status)

	second, replayed, err := guard.Do("key-1", hash, handler)
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestGuard_ReplaysFailure(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	hash := HashRequest("save-order", []byte(`{}`))

	resp, _, err := guard.Do("key-2", hash, func() Response {
		return Response{Status: http.StatusBadRequest, Body: []byte(`{"error":"bad"}`)}
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.Status)

	replay, replayed, err := guard.Do("key-2", hash, func() Response {
		t.Fatal("handler must not run for a stored key")
		return Response{}
	})
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, http.StatusBadRequest, replay.Status)
}

func TestGuard_PanicMarksKeyFailed(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	guard := NewGuard(repo, 0, nil)
	hash := HashRequest("save-order", []byte(`{}`))

	require.PanicsWithValue(t, "boom", func() {
		_, _, _ = guard.Do("key-panic", hash, func() Response { panic("boom") })
	})

	record, err := repo.Get("key-panic")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusFailed, record.Status)

	replay, replayed, err := guard.Do("key-panic", hash, func() Response {
		t.Fatal("handler must not run for a released key")
		return Response{}
	})
	require.NoError(t, err, "retry must not get ErrRequestInProgress")
	require.True(t, replayed)
	require.Equal(t, http.StatusInternalServerError, replay.Status)
	require.JSONEq(t, `{"error":"internal error"}`, string(replay.Body))
}

func TestGuard_HashMismatch(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	_, _, err := guard.Do("key-3", HashRequest("save-order", []byte(`{"a":1}`)), func() Response {
		return Response{Status: http.StatusCreated}
	})
	require.NoError(t, err)

	_, _, err = guard.Do("key-3", HashRequest("save-order", []byte(`{"a":2}`)), func() Response {
		return Response{Status: http.StatusCreated}
	})
	if !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}

func TestGuard_InProgress(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	hash := HashRequest("save-order", nil)
	_, err := repo.CreateProcessing("key-4", hash, time.Time{})
	require.NoError(t, err)

	guard := NewGuard(repo, 0, nil)
	_, _, err = guard.Do("key-4", hash, func() Response { return Response{} })
	require.ErrorIs(t, err, ErrRequestInProgress)
}

func TestGuard_EmptyKeyBypasses(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	calls := 0
	for i := 0; i < 2; i++ {
		resp, replayed, err := guard.Do(" ", "hash", func() Response {
			calls++
			return Response{Status: http.StatusCreated}
		})
		require.NoError(t, err)
		require.False(t, replayed)
		require.Equal(t, http.StatusCreated, resp.Status)
	}
	require.Equal(t, 2, calls)
}

func TestHashRequest_DependsOnOperation(t *testing.T) {
	t.Parallel()

	body := []byte(`{"x":1}`)
	require.Equal(t, HashRequest("save-order", body), HashRequest("save-order", body))
	require.NotEqual(t, HashRequest("save-order", body), HashRequest("import", body))
}
