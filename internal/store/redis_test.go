package store_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-billing/internal/document"
	"github.com/noah-isme/backend-billing/internal/pricing"
	"github.com/noah-isme/backend-billing/internal/store"
	"github.com/noah-isme/backend-billing/internal/terms"
)

func newCache(t *testing.T) (store.SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.SnapshotCache{R: client, Prefix: "billing", TTL: time.Minute}, mr
}

func sampleSnapshot() document.Snapshot {
	return document.Snapshot{
		ID:            "doc-1",
		Type:          document.TypeInvoice,
		DiscountKind:  string(pricing.DiscountPercent),
		DiscountValue: decimal.RequireFromString("5"),
		IssueDate:     time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		PaymentTerm:   terms.Net30,
		DueDate:       time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
		Items: []document.LineItem{{
			ID:       "item-1",
			Quantity: decimal.RequireFromString("80"),
			UnitRate: decimal.RequireFromString("75"),
			Amount:   decimal.RequireFromString("6000"),
		}},
		Totals: pricing.Totals{
			Subtotal: decimal.RequireFromString("6000"),
			Discount: decimal.RequireFromString("300"),
			Total:    decimal.RequireFromString("5700"),
		},
	}
}

func TestPublishAndGetSnapshot(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PublishSnapshot(ctx, sampleSnapshot()))

	got, ok, err := cache.GetSnapshot(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, document.TypeInvoice, got.Type)
	require.Equal(t, terms.Net30, got.PaymentTerm)
	require.True(t, got.Totals.Total.Equal(decimal.RequireFromString("5700")))
	require.Len(t, got.Items, 1)
	require.True(t, got.Items[0].Amount.Equal(decimal.RequireFromString("6000")))
}

func TestGetSnapshotMiss(t *testing.T) {
	cache, _ := newCache(t)
	_, ok, err := cache.GetSnapshot(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotExpires(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PublishSnapshot(ctx, sampleSnapshot()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.GetSnapshot(ctx, "doc-1")
	require.NoError(t, err)
	require.False(t, ok)
}
