// Package app wires all synk subsystems into a running server.
//
// The App struct owns the full lifecycle: New opens the stores and builds
// the engine, Run serves the chat API, the observability endpoints and the
// optional Discord adapter, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithCharacters). When an option is not provided, New creates the real
// implementation the config selects.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/synk-web/synk/internal/api"
	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/config"
	"github.com/synk-web/synk/internal/discord"
	"github.com/synk-web/synk/internal/health"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/profile"
	"github.com/synk-web/synk/internal/reaction"
	"github.com/synk-web/synk/internal/relationship"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/internal/story"
	"github.com/synk-web/synk/internal/textgen"
	"github.com/synk-web/synk/internal/thought"
	"github.com/synk-web/synk/pkg/memory"
	"github.com/synk-web/synk/pkg/memory/badger"
	"github.com/synk-web/synk/pkg/memory/inmem"
	"github.com/synk-web/synk/pkg/memory/postgres"
	"github.com/synk-web/synk/pkg/provider/llm"
)

// shutdownGrace bounds how long in-flight HTTP requests may take to finish
// once Run's context is cancelled.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	pool        *pgxpool.Pool
	store       memory.Store
	chars       character.Directory
	charWatcher *config.FileWatcher[*character.File]
	sessions    *scene.Manager
	svc         *chat.Service
	api         *api.Server
	health      *health.Handler

	watchInterval time.Duration

	mu  sync.Mutex
	bot *discord.Bot

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a memory store instead of opening the configured backend.
// The app still closes it on Shutdown.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCharacters injects a character directory instead of loading the
// configured source.
func WithCharacters(d character.Directory) Option {
	return func(a *App) { a.chars = d }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithWatchInterval sets how often the character file is polled for
// changes. The default is the watcher's own.
func WithWatchInterval(d time.Duration) Option {
	return func(a *App) { a.watchInterval = d }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. provider backs every
// generation call; see [BuildLLM].
//
// New performs all initialisation synchronously: store connection and
// migration, character loading, and engine construction. Network listeners
// and the Discord session are only opened by Run.
func New(ctx context.Context, cfg *config.Config, provider llm.Provider, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Memory store ──────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Characters ────────────────────────────────────────────────────
	if err := a.initCharacters(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init characters: %w", err)
	}

	// ── 3. Engine and chat service ───────────────────────────────────────
	a.initService(provider)

	// ── 4. HTTP surfaces ─────────────────────────────────────────────────
	a.api = api.New(a.svc, api.WithMetrics(a.metrics))
	a.health = health.New(a.checkers()...)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		a.closers = append(a.closers, a.store.Close)
		return nil
	}

	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		s, err := postgres.NewStore(ctx, a.cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		a.store, a.pool = s, s.Pool()
	case config.StoreBadger:
		s, err := badger.Open(badger.Options{Dir: a.cfg.Store.BadgerDir})
		if err != nil {
			return err
		}
		a.store = s
	default:
		a.store = inmem.New()
	}
	a.closers = append(a.closers, a.store.Close)
	slog.Info("memory store ready", "backend", a.cfg.Store.Backend)
	return nil
}

func (a *App) initCharacters(ctx context.Context) error {
	if a.chars != nil {
		return nil
	}

	if a.cfg.Characters.Source == config.CharactersPostgres {
		pool, err := a.postgresPool(ctx)
		if err != nil {
			return err
		}
		dir := character.NewPostgresDirectory(pool)
		if err := dir.Migrate(ctx); err != nil {
			return err
		}
		a.chars = dir
		slog.Info("characters served from postgres")
		return nil
	}

	path := a.cfg.Characters.File
	f, err := character.LoadFile(path)
	if err != nil {
		return err
	}
	dir := character.NewYAMLDirectory(f)

	var wopts []config.WatcherOption
	if a.watchInterval > 0 {
		wopts = append(wopts, config.WithInterval(a.watchInterval))
	}
	w, err := config.WatchFile(path, character.ParseFile, func(_, nf *character.File) {
		dir.Replace(nf)
		slog.Info("character roster reloaded", "path", path, "characters", len(nf.Characters), "locations", len(nf.Locations))
	}, wopts...)
	if err != nil {
		return err
	}
	a.charWatcher = w
	a.closers = append(a.closers, func() error { w.Stop(); return nil })

	a.chars = dir
	slog.Info("characters loaded", "path", path, "characters", len(f.Characters), "locations", len(f.Locations))
	return nil
}

// postgresPool returns the store's pool when the store is postgres and
// opens a dedicated one otherwise.
func (a *App) postgresPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := pgxpool.New(ctx, a.cfg.Store.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	return pool, nil
}

func (a *App) initService(provider llm.Provider) {
	m := a.metrics
	eng := a.cfg.Engine

	gen := textgen.NewLLM(provider, textgen.WithTimeout(a.cfg.LLM.Timeout), textgen.WithMetrics(m))

	reactOpts := []reaction.Option{
		reaction.WithInterjection(eng.InterjectionProbability, eng.MaxInterjections),
		reaction.WithMetrics(m),
	}
	if eng.Seed != 0 {
		reactOpts = append(reactOpts, reaction.WithSeed(eng.Seed))
	}

	a.sessions = scene.NewManager(
		scene.WithMaxSessions(a.cfg.Sessions.MaxSessions),
		scene.WithIdleTTL(a.cfg.Sessions.IdleTTL),
		scene.WithManagerMetrics(m),
	)
	a.svc = chat.New(chat.Deps{
		Characters:    a.chars,
		Sessions:      a.sessions,
		Engine:        reaction.New(gen, thought.New(gen, thought.WithMetrics(m)), reactOpts...),
		Relationships: relationship.NewProcessor(a.store, a.chars, relationship.WithMetrics(m)),
		Stories: story.New(gen, a.store,
			story.WithTimeout(eng.SummaryTimeout),
			story.WithContextTurns(eng.StoryContextTurns),
			story.WithMetrics(m),
		),
		Profiles: profile.New(gen, a.store, profile.WithMetrics(m)),
	}, chat.WithHistoryWindow(eng.HistoryWindow), chat.WithMetrics(m))
}

func (a *App) checkers() []health.Checker {
	cs := []health.Checker{{
		Name: "characters",
		Check: func(ctx context.Context) error {
			_, err := a.chars.ByLocation(ctx, "")
			return err
		},
	}}
	if a.pool != nil {
		cs = append(cs, health.Checker{Name: "postgres", Check: a.pool.Ping})
	}
	return cs
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Service returns the chat service, for in-process front ends (the REPL and
// the MCP server).
func (a *App) Service() *chat.Service { return a.svc }

// Sessions returns the scene session table.
func (a *App) Sessions() *scene.Manager { return a.sessions }

// APIHandler returns the chat API.
func (a *App) APIHandler() http.Handler { return a.api.Handler() }

// ObserveHandler returns the observability endpoints: /healthz, /readyz
// and the Prometheus /metrics scrape.
func (a *App) ObserveHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	a.health.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves until ctx is cancelled or a listener fails. It starts the chat
// API, the observability listener when configured, and the Discord adapter
// when a token is configured.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// Connect Discord before any listener starts so a bad token fails fast.
	if d := a.cfg.Discord; d.Token != "" {
		bot, err := discord.New(gctx, discord.Config{Token: d.Token, GuildID: d.GuildID, Channels: d.Channels}, a.svc)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.mu.Lock()
		a.bot = bot
		a.mu.Unlock()
		slog.Info("discord adapter connected", "channels", len(d.Channels))
		g.Go(func() error { return bot.Run(gctx) })
	}

	servers := []*http.Server{{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.APIHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if addr := a.cfg.Server.ObserveAddr; addr != "" {
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           a.ObserveHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				slog.Warn("http shutdown error", "addr", srv.Addr, "err", err)
			}
		}
		return nil
	})

	slog.Info("app running", "sessions_max", a.cfg.Sessions.MaxSessions)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Leave Discord first so no new turns arrive.
		a.mu.Lock()
		bot := a.bot
		a.mu.Unlock()
		if bot != nil {
			if err := bot.Close(); err != nil {
				slog.Warn("discord close error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever New had opened before it failed.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
