package main

import (
	"context"
	"errors"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-canvas/internal/client"
	"go-canvas/internal/config"
	"go-canvas/internal/identity"
	"go-canvas/internal/logging"
	"go-canvas/internal/session"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:   "canvas",
		Usage:  "paint on a shared 50x50 board and chat with whoever else is there",
		Flags:  config.ClientFlags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.ClientFromCLI(c)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, OutputPath: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Resolved once so the id survives reconnects.
	id, err := identity.NewAllocator(identity.WithSuffix(cfg.IDSuffix)).Resolve(cfg.Session.ParticipantID)
	if err != nil {
		return err
	}
	cfg.Session.ParticipantID = string(id)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	s, mirror := client.NewSession(ctx, cfg.Session, logger.Named("session"))
	program := tea.NewProgram(client.NewModel(s, mirror, id), tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, session.ErrStopped) {
			// The board stays up read-only; the header shows the state.
			logger.Error("session ended", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
