package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-canvas/pkg/canvas"
)

// DefaultHistoryLimit caps how many chat entries History returns.
const DefaultHistoryLimit = 500

// Store persists the relay's board and chat.
type Store struct {
	db           *gorm.DB
	historyLimit int
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, historyLimit: DefaultHistoryLimit}
}

// SavePixel upserts one cell. ts is the relay's receive time in unix ms.
func (s *Store) SavePixel(ctx context.Context, p canvas.Pixel, ts int64) error {
	rec := PixelRecord{
		Coordinate: p.Coord().String(),
		X:          p.X,
		Y:          p.Y,
		Color:      string(p.Color),
		UpdatedBy:  string(p.UserID),
		Timestamp:  ts,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "coordinate"}},
		DoUpdates: clause.AssignmentColumns([]string{"color", "updated_by", "timestamp", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save pixel %s: %w", rec.Coordinate, err)
	}
	return nil
}

// Pixels returns every stored cell in row-major order.
func (s *Store) Pixels(ctx context.Context) ([]canvas.Pixel, error) {
	var recs []PixelRecord
	if err := s.db.WithContext(ctx).Order("y, x").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load pixels: %w", err)
	}
	out := make([]canvas.Pixel, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Pixel())
	}
	return out, nil
}

func (s *Store) ClearPixels(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&PixelRecord{}).Error; err != nil {
		return fmt.Errorf("clear pixels: %w", err)
	}
	return nil
}

// AppendChat stores e under a fresh id.
func (s *Store) AppendChat(ctx context.Context, e canvas.ChatEntry) error {
	rec := ChatRecord{
		ID:        uuid.NewString(),
		UserID:    string(e.UserID),
		Message:   e.Message,
		Timestamp: e.Timestamp,
		IsSystem:  e.IsSystem,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// History returns the most recent chat entries, oldest first.
func (s *Store) History(ctx context.Context) ([]canvas.ChatEntry, error) {
	var recs []ChatRecord
	err := s.db.WithContext(ctx).
		Order("timestamp DESC, created_at DESC").
		Limit(s.historyLimit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	out := make([]canvas.ChatEntry, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r.Entry()
	}
	return out, nil
}

func (s *Store) ClearChat(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&ChatRecord{}).Error; err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	return nil
}
