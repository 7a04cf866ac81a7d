package storage

import (
	"time"

	"go-canvas/pkg/canvas"
)

// PixelRecord is one painted cell, keyed by "x:y".
type PixelRecord struct {
	Coordinate string `gorm:"primaryKey;size:16"`
	X          int
	Y          int
	Color      string `gorm:"size:7;not null"`
	UpdatedBy  string
	Timestamp  int64
	UpdatedAt  time.Time
}

func (PixelRecord) TableName() string { return "pixels" }

func (r PixelRecord) Pixel() canvas.Pixel {
	return canvas.Pixel{X: r.X, Y: r.Y, Color: canvas.Color(r.Color), UserID: canvas.ParticipantID(r.UpdatedBy)}
}

// ChatRecord is one stored chat entry.
type ChatRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"index"`
	Message   string
	Timestamp int64 `gorm:"index"`
	IsSystem  bool
	CreatedAt time.Time
}

func (ChatRecord) TableName() string { return "chat_messages" }

func (r ChatRecord) Entry() canvas.ChatEntry {
	return canvas.ChatEntry{
		UserID:    canvas.ParticipantID(r.UserID),
		Message:   r.Message,
		Timestamp: r.Timestamp,
		IsSystem:  r.IsSystem,
	}
}
