// Package config binds command line flags and environment variables for the
// client and the relay. Every flag can also be set from the environment or
// from a .env file loaded by LoadEnv.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"go-canvas/internal/chatlog"
	"go-canvas/internal/session"
)

// LoadEnv loads the given dotenv files into the process environment. Missing
// files are skipped and variables already set are left alone.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Client is the terminal client's configuration.
type Client struct {
	Session  session.Config
	IDSuffix int
	LogFile  string
	LogLevel string
}

func ClientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "relay websocket URL",
			Value:   "ws://localhost:8080/ws",
			EnvVars: []string{"CANVAS_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   "participant id (allocated when empty)",
			EnvVars: []string{"CANVAS_USER"},
		},
		&cli.IntFlag{
			Name:    "id-suffix",
			Usage:   "random digits appended to an allocated participant id",
			Value:   2,
			EnvVars: []string{"CANVAS_ID_SUFFIX"},
		},
		&cli.DurationFlag{
			Name:    "settle-delay",
			Usage:   "wait after connecting before requesting snapshots",
			Value:   session.DefaultSettleDelay,
			EnvVars: []string{"CANVAS_SETTLE_DELAY"},
		},
		&cli.BoolFlag{
			Name:    "await-ready",
			Usage:   "request snapshots when the relay says ready",
			EnvVars: []string{"CANVAS_AWAIT_READY"},
		},
		&cli.DurationFlag{
			Name:    "ready-timeout",
			Usage:   "how long to wait for ready before requesting anyway",
			Value:   session.DefaultReadyTimeout,
			EnvVars: []string{"CANVAS_READY_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:    "snapshot-retry",
			Usage:   "re-request the canvas until it arrives",
			EnvVars: []string{"CANVAS_SNAPSHOT_RETRY"},
		},
		&cli.DurationFlag{
			Name:    "retry-initial",
			Value:   session.DefaultRetryInitial,
			EnvVars: []string{"CANVAS_RETRY_INITIAL"},
		},
		&cli.DurationFlag{
			Name:    "retry-max-elapsed",
			Value:   session.DefaultRetryMaxElapsed,
			EnvVars: []string{"CANVAS_RETRY_MAX_ELAPSED"},
		},
		&cli.BoolFlag{
			Name:    "reconnect",
			Usage:   "reopen the connection after it drops",
			EnvVars: []string{"CANVAS_RECONNECT"},
		},
		&cli.BoolFlag{
			Name:    "reject-legacy-pixels",
			Usage:   "drop paint broadcasts without a type tag",
			EnvVars: []string{"CANVAS_REJECT_LEGACY_PIXELS"},
		},
		&cli.StringFlag{
			Name:    "chat-policy",
			Usage:   "where live chat lands: tail or sorted",
			Value:   chatlog.AppendAtTail.String(),
			EnvVars: []string{"CANVAS_CHAT_POLICY"},
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "log destination",
			Value:   "canvas-client.log",
			EnvVars: []string{"CANVAS_LOG_FILE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"CANVAS_LOG_LEVEL"},
		},
	}
}

// ClientFromCLI reads a Client from flags registered by ClientFlags.
func ClientFromCLI(c *cli.Context) (Client, error) {
	policy, err := chatlog.ParsePolicy(c.String("chat-policy"))
	if err != nil {
		return Client{}, err
	}
	endpoint := strings.TrimSpace(c.String("endpoint"))
	if endpoint == "" {
		return Client{}, errors.New("endpoint is required")
	}

	return Client{
		Session: session.Config{
			Endpoint:           endpoint,
			ParticipantID:      c.String("user"),
			SettleDelay:        c.Duration("settle-delay"),
			AwaitReady:         c.Bool("await-ready"),
			ReadyTimeout:       c.Duration("ready-timeout"),
			SnapshotRetry:      c.Bool("snapshot-retry"),
			RetryInitial:       c.Duration("retry-initial"),
			RetryMaxElapsed:    c.Duration("retry-max-elapsed"),
			Reconnect:          c.Bool("reconnect"),
			RejectLegacyPixels: c.Bool("reject-legacy-pixels"),
			ChatPolicy:         policy,
		},
		IDSuffix: c.Int("id-suffix"),
		LogFile:  c.String("log-file"),
		LogLevel: c.String("log-level"),
	}, nil
}

// Relay is the reference relay's configuration.
type Relay struct {
	Addr         string
	DSN          string
	RedisAddr    string
	SendReady    bool
	LegacyPixels bool
	RateLimitRPS int
	RateBurst    int
	LogLevel     string
	Development  bool
}

func RelayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "listen address",
			Value:   ":8080",
			EnvVars: []string{"CANVAS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "dsn",
			Usage:   "sqlite path, or a postgres:// URL",
			Value:   "canvas.db",
			EnvVars: []string{"CANVAS_DSN", "DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis",
			Usage:   "redis address for cross-instance fan-out (in-process when empty)",
			EnvVars: []string{"CANVAS_REDIS_ADDR", "REDIS_ADDR"},
		},
		&cli.BoolFlag{
			Name:    "send-ready",
			Usage:   "send ready to each participant after it joins",
			Value:   true,
			EnvVars: []string{"CANVAS_SEND_READY"},
		},
		&cli.BoolFlag{
			Name:    "legacy-pixels",
			Usage:   "broadcast paints untagged for old clients",
			EnvVars: []string{"CANVAS_LEGACY_PIXELS"},
		},
		&cli.IntFlag{
			Name:    "rate-rps",
			Value:   30,
			EnvVars: []string{"CANVAS_RATE_RPS"},
		},
		&cli.IntFlag{
			Name:    "rate-burst",
			Value:   50,
			EnvVars: []string{"CANVAS_RATE_BURST"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"CANVAS_LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "dev",
			Usage:   "human readable logs",
			EnvVars: []string{"CANVAS_DEV"},
		},
	}
}

func RelayFromCLI(c *cli.Context) (Relay, error) {
	r := Relay{
		Addr:         c.String("addr"),
		DSN:          c.String("dsn"),
		RedisAddr:    c.String("redis"),
		SendReady:    c.Bool("send-ready"),
		LegacyPixels: c.Bool("legacy-pixels"),
		RateLimitRPS: c.Int("rate-rps"),
		RateBurst:    c.Int("rate-burst"),
		LogLevel:     c.String("log-level"),
		Development:  c.Bool("dev"),
	}
	if r.RateLimitRPS <= 0 || r.RateBurst <= 0 {
		return Relay{}, fmt.Errorf("rate limit must be positive, got %d rps burst %d", r.RateLimitRPS, r.RateBurst)
	}
	return r, nil
}
