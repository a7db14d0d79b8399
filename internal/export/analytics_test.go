package export

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"catalogsync/internal/store"
	"catalogsync/internal/store/memory"
)

func TestProductsRenamesFields(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	list := `[
		{"sku":"GC-100","name":"Gift Card 100","price":99.50,"currency":"INR","category":"Cards","url":"https://x/gc-100"},
		{"slug":"gc-200","name":"Gift Card 200","price":199,"currency":"INR"}
	]`
	require.NoError(t, st.Set(ctx, store.ProductListKey("acme"), json.RawMessage(list)))

	rows, err := New(st).Products(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "GC-100", rows[0].ProductID)
	require.Equal(t, "Gift Card 100", rows[0].Title)
	require.Equal(t, json.Number("99.50"), rows[0].UnitPrice)
	require.Equal(t, "INR", rows[0].Currency)
	require.Equal(t, "Cards", rows[0].Category)

	// slug stands in when the partner record has no sku.
	require.Equal(t, "gc-200", rows[1].ProductID)
}

func TestProductsEmptyWhenNothingSynced(t *testing.T) {
	t.Parallel()

	rows, err := New(memory.New()).Products(context.Background(), "acme")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestProductsSkipsUnidentifiedRecords(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.ProductListKey("acme"),
		json.RawMessage(`[{"name":"nameless"},{"sku":"GC-1","name":"kept"}]`)))

	rows, err := New(st).Products(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "GC-1", rows[0].ProductID)
}

func TestProductsRejectsCorruptCache(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.ProductListKey("acme"), json.RawMessage(`{"not":"a list"}`)))

	_, err := New(st).Products(ctx, "acme")
	require.Error(t, err)
}
