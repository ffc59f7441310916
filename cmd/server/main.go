package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fanwars-backend/internal/auth"
	"github.com/DoyleJ11/fanwars-backend/internal/config"
	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/internal/events"
	"github.com/DoyleJ11/fanwars-backend/internal/httpapi"
	"github.com/DoyleJ11/fanwars-backend/internal/hub"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/internal/ws"
)

// backend covers every collaborator the hub and the ws handler need.
type backend interface {
	hub.MatchDirectory
	hub.RoomDirectory
	hub.RatingLedger
	hub.Users
	hub.Catalog
}

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	envFile := pflag.String("env-file", ".env", "dotenv file with FW_* overrides")
	listen := pflag.String("listen", "", "listen address, overrides server.listen_addr")
	dev := pflag.Bool("dev", false, "in-memory store with seeded fixtures, development logging")
	pflag.Parse()

	if *dev {
		if _, ok := os.LookupEnv("FW_SECRET_KEY"); !ok {
			_ = os.Setenv("FW_SECRET_KEY", "dev-secret")
		}
	}
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}
	if *dev {
		cfg.Log.Development = true
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *dev, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

func run(cfg *config.Config, dev bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := auth.NewService(cfg.Auth.SecretKey, cfg.Auth.TokenDuration)

	db, closeDB, err := openBackend(ctx, cfg, dev, tokens, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	var bus events.Bus
	if cfg.NATS.URL != "" {
		nb, err := events.DialNATS(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer nb.Close()
		bus = nb
	} else {
		bus = events.NewLocalBus()
	}

	rules := hub.Rules{
		SeatCapacity: cfg.Game.SeatCapacity,
		Engine: engine.Rules{
			MaxHealth:      cfg.Game.MaxHealth,
			HealAmount:     cfg.Game.HealAmount,
			OffensivePower: cfg.Game.OffensivePower,
		},
		FlightDelay:  cfg.Game.FlightDelay,
		EndGrace:     cfg.Game.EndGrace,
		LeaveBan:     cfg.Game.LeaveBan,
		VictoryDelta: cfg.Game.VictoryDelta,
		DefeatDelta:  cfg.Game.DefeatDelta,
	}
	h := hub.NewHub(ctx, rules, hub.Deps{
		Matches: db,
		Rooms:   db,
		Ratings: db,
		Users:   db,
		Catalog: db,
		Logger:  logger,
	})
	if err := h.Start(bus); err != nil {
		return err
	}

	var origins []string
	if dev {
		origins = []string{"localhost:*", "127.0.0.1:*"}
	}
	srv := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: httpapi.SetupRoutes(ws.Deps{
			Hub:            h,
			Tokens:         tokens,
			Users:          db,
			Logger:         logger,
			OriginPatterns: origins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("advertise", cfg.Server.AdvertiseAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	h.Post(hub.Shutdown{})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var errNoDatabase = errors.New("database.url (FW_DB_URL) is required outside --dev")

// openBackend picks the store. The seeded in-memory store and its printed
// tokens exist only under --dev.
func openBackend(ctx context.Context, cfg *config.Config, dev bool, tokens *auth.Service, logger *zap.Logger) (backend, func(), error) {
	if dev {
		mem := store.NewMemory(cfg.Server.AdvertiseAddr)
		seedDev(mem, cfg.Server.AdvertiseAddr, tokens, logger)
		return mem, func() {}, nil
	}
	if cfg.Database.URL == "" {
		return nil, nil, errNoDatabase
	}
	s, err := store.Open(cfg.Database.URL, cfg.Server.AdvertiseAddr, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := s.AutoMigrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

// seedDev loads the fixture set, claims its room for this server and prints
// a token per dev user.
func seedDev(mem *store.Memory, addr string, tokens *auth.Service, logger *zap.Logger) {
	mem.Seed()
	if r, ok := mem.Room("1"); ok {
		r.MatchServerURL = addr
		mem.PutRoom(r)
	}
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("dev-%d", i)
		mem.PutUser(store.User{ID: id, Nickname: fmt.Sprintf("player%d", i)})
		tok, err := tokens.GenerateToken(id)
		if err != nil {
			logger.Warn("failed to issue dev token", zap.String("user", id), zap.Error(err))
			continue
		}
		logger.Info("dev user", zap.String("user", id), zap.String("token", tok))
	}
}
