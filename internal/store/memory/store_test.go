package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"catalogsync/internal/store"
)

func TestStoreGetMissingKey(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Get(context.Background(), "absent")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStoreSetThenGet(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set(context.Background(), "k", json.RawMessage(`{"a":1}`)))

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(got))
}

func TestStoreSetOverwrites(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", json.RawMessage(`1`)))
	require.NoError(t, s.Set(ctx, "k", json.RawMessage(`2`)))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "2", string(got))
}

func TestStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", json.RawMessage(`"abc"`)))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'x'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `"abc"`, string(again))
}
