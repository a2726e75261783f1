// Command arcade serves the wagering engine over HTTP.
//
//	arcade              run the server
//	arcade token -player ID [-admin]
//	                    print a session token signed with the configured secret
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexbotov/arcade/internal/api"
	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/auth"
	"github.com/alexbotov/arcade/internal/config"
	"github.com/alexbotov/arcade/internal/control"
	"github.com/alexbotov/arcade/internal/database"
	"github.com/alexbotov/arcade/internal/flags"
	"github.com/alexbotov/arcade/internal/game"
	"github.com/alexbotov/arcade/internal/ledger"
	"github.com/alexbotov/arcade/internal/logging"
	"github.com/alexbotov/arcade/internal/metrics"
	"github.com/alexbotov/arcade/internal/notify"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/alexbotov/arcade/internal/store"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("arcade exited", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.SetupJSON(cfg.Log.Level)
	authSvc := auth.New(&cfg.Auth)

	if len(args) > 0 && args[0] == "token" {
		return printToken(authSvc, args[1:])
	}

	logger.Info("starting arcade", "port", cfg.Server.Port, "database", cfg.Database.Driver)

	stores, err := openStores(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	flagStore, closeFlags, err := openFlags(cfg.Redis)
	if err != nil {
		return err
	}
	defer closeFlags()

	m := metrics.New()
	auditSvc := audit.New(stores.db, logger)
	ledgerSvc := ledger.New(stores.ledger, auditSvc, cfg.Game.StartingBalance)
	controlSvc := control.New(flagStore, auditSvc)
	rngSvc := rng.New()

	hub := notify.NewHub(logger)
	notifiers := []notify.Notifier{hub}
	if cfg.Discord.WebhookID != "" {
		discord, err := notify.NewDiscordNotifier(cfg.Discord.WebhookID, cfg.Discord.WebhookToken)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, discord)
	}
	if cfg.AMQP.URL != "" {
		publisher, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.Workers, cfg.Notify.QueueSize, logger, m)

	engine := game.New(game.Dependencies{
		Config:     cfg.Game,
		Ledger:     ledgerSvc,
		RNG:        rngSvc,
		Control:    controlSvc,
		Sessions:   stores.sessions,
		Challenges: stores.challenges,
		Rounds:     stores.rounds,
		Announcer:  notify.NewAnnouncer(dispatcher, logger, notifiers...),
		Audit:      auditSvc,
		Metrics:    m,
		Logger:     logger,
	})

	handler := api.New(api.Dependencies{
		Auth:    authSvc,
		Ledger:  ledgerSvc,
		Engine:  engine,
		Control: controlSvc,
		Audit:   auditSvc,
		RNG:     rngSvc,
		Metrics: m,
		Hub:     hub,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type storeSet struct {
	db         *sql.DB
	ledger     ledger.Store
	sessions   game.SessionStore
	challenges game.ChallengeStore
	rounds     game.RoundStore
	close      func()
}

// openStores selects the persistence backend. The memory driver keeps
// everything in process and loses it on exit.
func openStores(cfg config.DatabaseConfig, logger *slog.Logger) (*storeSet, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory stores, state is lost on exit")
		return &storeSet{
			ledger:     ledger.NewMemoryStore(),
			sessions:   store.NewMemorySessions(),
			challenges: store.NewMemoryChallenges(),
			rounds:     store.NewMemoryRounds(),
			close:      func() {},
		}, nil
	case "postgres":
		db, err := database.New(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return &storeSet{
			db:         db.DB,
			ledger:     ledger.NewPostgresStore(db.DB),
			sessions:   store.NewPostgresSessions(db.DB),
			challenges: store.NewPostgresChallenges(db.DB),
			rounds:     store.NewPostgresRounds(db.DB),
			close:      func() { db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// openFlags uses Redis when an address is configured, memory otherwise
func openFlags(cfg config.RedisConfig) (flags.Store, func(), error) {
	if cfg.Addr == "" {
		return flags.NewMemoryStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return flags.NewRedisStore(rdb, "arcade"), func() { rdb.Close() }, nil
}

func printToken(authSvc *auth.Service, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	player := fs.String("player", "", "player id to embed in the token")
	admin := fs.Bool("admin", false, "grant operator privileges")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *player == "" {
		return errors.New("token: -player is required")
	}

	token, expiresAt, err := authSvc.IssueToken(*player, *admin)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
