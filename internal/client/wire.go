package client

import (
	"context"

	"go.uber.org/zap"

	"go-canvas/internal/board"
	"go-canvas/internal/chatlog"
	"go-canvas/internal/roster"
	"go-canvas/internal/session"
)

// NewSession builds a session whose stores render into a fresh Mirror.
func NewSession(ctx context.Context, cfg session.Config, log *zap.Logger) (*session.Session, *Mirror) {
	mirror := NewMirror()
	s := session.New(ctx, cfg, session.Deps{
		Board:   board.NewStore(board.WithRenderer(mirror)),
		Chat:    chatlog.New(chatlog.WithPolicy(cfg.ChatPolicy), chatlog.WithDisplay(mirror.ShowChat)),
		Roster:  roster.New(roster.WithDisplay(mirror.ShowRoster)),
		Logger:  log,
		OnState: mirror.SetState,
	})
	return s, mirror
}
