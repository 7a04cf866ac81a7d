package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-canvas/pkg/canvas"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Connect(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func TestConnect_SqliteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvas.db")

	db, err := Connect(path, nil)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&PixelRecord{}))
	assert.True(t, db.Migrator().HasTable(&ChatRecord{}))
}

func TestIsPostgres(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"postgres://canvas@localhost/canvas", true},
		{"postgresql://canvas@localhost/canvas", true},
		{"canvas.db", false},
		{":memory:", false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, isPostgres(tt.dsn))
		})
	}
}

func TestStore_PixelsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePixel(ctx, canvas.Pixel{X: 5, Y: 5, Color: "#FF0000", UserID: "a"}, 1))
	require.NoError(t, s.SavePixel(ctx, canvas.Pixel{X: 1, Y: 0, Color: "#000000", UserID: "b"}, 2))
	require.NoError(t, s.SavePixel(ctx, canvas.Pixel{X: 5, Y: 5, Color: "#00FF00", UserID: "c"}, 3))

	pixels, err := s.Pixels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []canvas.Pixel{
		{X: 1, Y: 0, Color: "#000000", UserID: "b"},
		{X: 5, Y: 5, Color: "#00FF00", UserID: "c"},
	}, pixels)
}

func TestStore_ClearPixels(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePixel(ctx, canvas.Pixel{X: 1, Y: 1, Color: "#000000"}, 1))
	require.NoError(t, s.ClearPixels(ctx))

	pixels, err := s.Pixels(ctx)
	require.NoError(t, err)
	assert.Empty(t, pixels)
}

func TestStore_ChatHistoryOldestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendChat(ctx, canvas.ChatEntry{UserID: "b", Message: "second", Timestamp: 200}))
	require.NoError(t, s.AppendChat(ctx, canvas.ChatEntry{UserID: "a", Message: "first", Timestamp: 100}))
	require.NoError(t, s.AppendChat(ctx, canvas.ChatEntry{UserID: canvas.SystemAuthor, Message: "sys", Timestamp: 300, IsSystem: true}))

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Message)
	assert.Equal(t, "second", history[1].Message)
	assert.True(t, history[2].IsSystem)
}

func TestStore_HistoryLimit(t *testing.T) {
	s := setupTestStore(t)
	s.historyLimit = 2
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		require.NoError(t, s.AppendChat(ctx, canvas.ChatEntry{UserID: "a", Message: "m", Timestamp: i}))
	}

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].Timestamp)
	assert.Equal(t, int64(4), history[1].Timestamp)
}

func TestStore_ClearChat(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendChat(ctx, canvas.ChatEntry{UserID: "a", Message: "m", Timestamp: 1}))
	require.NoError(t, s.ClearChat(ctx))

	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}
