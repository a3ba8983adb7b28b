package favorites

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guidelineFixture(id, title string) Guideline {
	return Guideline{
		ID:           id,
		Title:        title,
		Organization: "AHA",
		Category:     "Cardiology",
	}
}

func TestFavoritesAddListRemove(t *testing.T) {
	svc := NewService(NewMemoryKV())
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", guidelineFixture("g-1", "Hypertension Management"))
	require.NoError(t, err)
	_, err = svc.Add(ctx, "user-1", guidelineFixture("g-2", "Lipid Screening"))
	require.NoError(t, err)

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "g-1", list[0].ID)
	assert.Equal(t, "Hypertension Management", list[0].Title)

	require.NoError(t, svc.Remove(ctx, "user-1", "g-1"))
	list, err = svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "g-2", list[0].ID)
}

func TestFavoritesAddIsIdempotent(t *testing.T) {
	svc := NewService(NewMemoryKV())
	ctx := context.Background()

	first, err := svc.Add(ctx, "user-1", guidelineFixture("g-1", "Hypertension Management"))
	require.NoError(t, err)
	second, err := svc.Add(ctx, "user-1", guidelineFixture("g-1", "Hypertension Management"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFavoritesAddFillsIDAndAddedAt(t *testing.T) {
	svc := NewService(NewMemoryKV())
	stamp := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return stamp }

	saved, err := svc.Add(context.Background(), "user-1", Guideline{Title: "Diabetes Care"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, stamp, saved.AddedAt)
}

func TestFavoritesEmptyList(t *testing.T) {
	svc := NewService(NewMemoryKV())

	list, err := svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFavoritesIsolatedPerUser(t *testing.T) {
	svc := NewService(NewMemoryKV())
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", guidelineFixture("g-1", "Hypertension Management"))
	require.NoError(t, err)

	list, err := svc.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFavoritesIsFavorite(t *testing.T) {
	svc := NewService(NewMemoryKV())
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", guidelineFixture("g-1", "Hypertension Management"))
	require.NoError(t, err)

	fav, err := svc.IsFavorite(ctx, "user-1", "g-1")
	require.NoError(t, err)
	assert.True(t, fav)

	fav, err = svc.IsFavorite(ctx, "user-1", "g-9")
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestFavoritesRedisKV(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(NewRedisKV(client))
	ctx := context.Background()

	_, err = svc.Add(ctx, "user-1", guidelineFixture("g-1", "Hypertension Management"))
	require.NoError(t, err)
	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Removing the last favorite clears the key entirely.
	require.NoError(t, svc.Remove(ctx, "user-1", "g-1"))
	assert.False(t, mr.Exists("favorites:user-1"))
}
