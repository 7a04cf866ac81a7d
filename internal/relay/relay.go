// Package relay is a reference relay for the canvas protocol. It persists
// the board and chat, answers snapshot requests and fans every change out to
// all participants, across instances when a redis bus is configured.
package relay

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go-canvas/internal/middleware"
	"go-canvas/internal/storage"
	"go-canvas/pkg/canvas"
)

// AnonymousID names participants that connect without a userId.
const AnonymousID canvas.ParticipantID = "Anonymous"

type Options struct {
	Store *storage.Store
	// Bus defaults to a LocalBus.
	Bus    Bus
	Logger *zap.Logger

	// SendReady sends "ready" to each participant once it is registered.
	SendReady bool
	// LegacyPixels broadcasts paints without a type tag.
	LegacyPixels bool

	RateLimit middleware.RateLimitConfig

	// MessageRate and MessageBurst bound inbound frames per connection.
	MessageRate  rate.Limit
	MessageBurst int

	// Now stamps chat entries and pixels. Defaults to time.Now.
	Now func() time.Time
}

type Relay struct {
	opts     Options
	log      *zap.Logger
	hub      *Hub
	handler  *Handler
	limiter  *middleware.IPRateLimiter
	upgrader websocket.Upgrader
}

// requestTimeout bounds the storage and bus work of one inbound frame.
const requestTimeout = 5 * time.Second

func New(opts Options) *Relay {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = NewLocalBus(0)
	}
	if opts.RateLimit.RequestsPerSecond <= 0 {
		opts.RateLimit = middleware.DefaultRateLimit
	}
	if opts.MessageRate <= 0 {
		opts.MessageRate = 50
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 100
	}

	hub := NewHub(opts.SendReady, opts.Logger.Named("hub"))
	handler := NewHandler(opts.Store, opts.Bus, hub, opts.LegacyPixels, opts.Logger.Named("handler"))
	if opts.Now != nil {
		handler.now = opts.Now
	}
	return &Relay{
		opts:    opts,
		log:     opts.Logger,
		hub:     hub,
		handler: handler,
		limiter: middleware.NewIPRateLimiter(opts.RateLimit),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (r *Relay) Hub() *Hub { return r.hub }

// Router serves GET /ws and GET /hc.
func (r *Relay) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RateLimit(r.limiter, r.log))

	engine.GET("/hc", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/ws", r.handleWebSocket)
	return engine
}

// Run drives the hub and the bus subscription until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	defer r.limiter.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.hub.Run(ctx)
	})
	g.Go(func() error {
		return r.opts.Bus.Subscribe(ctx, r.hub.Broadcast)
	})
	return g.Wait()
}

func (r *Relay) handleWebSocket(c *gin.Context) {
	id := canvas.ParticipantID(strings.TrimSpace(c.Query("userId")))
	if id == "" {
		id = AnonymousID
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(r.hub, conn, id, r.opts.MessageRate, r.opts.MessageBurst, r.log.Named("client"))
	if !r.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(func(cl *Client, data []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		r.handler.HandleMessage(ctx, cl, data)
	})
}
