package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"planetfall/relay/internal/config"
	"planetfall/relay/internal/game"
	"planetfall/relay/internal/httpapi"
	"planetfall/relay/internal/journal"
	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/planets"
)

const shutdownGrace = 5 * time.Second

// relayService wires the long-lived components together and backs the
// operational HTTP surface.
type relayService struct {
	cfg         *config.Config
	log         *logging.Logger
	manager     *game.Manager
	router      *game.Router
	broadcaster *game.Broadcaster
	journal     *journal.Journal
	upgrader    websocket.Upgrader
	startedAt   time.Time
	startupErr  error
}

func newRelayService(cfg *config.Config, logger *logging.Logger) *relayService {
	service := &relayService{cfg: cfg, log: logger, startedAt: time.Now()}

	//1.- The journal is optional; a relay without one still serves traffic.
	var managerOpts []game.ManagerOption
	if cfg.JournalDir != "" {
		bundle, err := journal.New(cfg.JournalDir, "relay", logger)
		if err != nil {
			service.startupErr = err
			logger.Error("journal unavailable, continuing without it", logging.Error(err))
		} else {
			service.journal = bundle
			managerOpts = append(managerOpts, game.WithJournal(bundle))
			logger.Info("journal enabled", logging.String("dir", bundle.Directory()))
		}
	}

	registry := game.NewRegistry()
	fanout := game.NewFanout(logger)
	service.manager = game.NewManager(registry, fanout, planets.Seed(), logger,
		game.ManagerConfig{PingInterval: cfg.PingInterval, SessionTimeout: cfg.SessionTimeout},
		managerOpts...,
	)
	service.router = game.NewRouter(service.manager, logger)
	service.broadcaster = game.NewBroadcaster(service.manager, cfg.BroadcastInterval, logger)

	service.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return service
}

// SessionCount implements httpapi.ReadinessProvider.
func (s *relayService) SessionCount() int { return s.manager.SessionCount() }

// StartupError implements httpapi.ReadinessProvider.
func (s *relayService) StartupError() error { return s.startupErr }

// Uptime implements httpapi.ReadinessProvider.
func (s *relayService) Uptime() time.Duration { return time.Since(s.startedAt) }

// originChecker allows every origin when none are configured, otherwise only
// the listed ones.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	permitted := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		permitted[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := permitted[origin]
		return ok
	}
}

// serveWS upgrades the connection, admits the session, and runs the read loop
// until the peer goes away.
func (s *relayService) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxClients > 0 && s.manager.SessionCount() >= s.cfg.MaxClients {
		s.log.Warn("connection rejected, client limit reached",
			logging.Int("limit", s.cfg.MaxClients))
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	if s.cfg.MaxPayloadBytes > 0 {
		ws.SetReadLimit(s.cfg.MaxPayloadBytes)
	}

	//1.- Clients may bring an identity and color; the manager fills the gaps.
	query := r.URL.Query()
	conn := game.NewWSConn(ws)
	session := s.manager.Connect(conn, query.Get("username"), query.Get("color"))

	//2.- The read loop is the session's lifetime; any read error ends it.
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read ended",
					logging.String("session_id", session.ID()), logging.Error(err))
			}
			break
		}
		s.router.HandleFrame(session.ID(), payload)
	}
	//3.- Tear down by identity: if this session was superseded while the read
	// loop was blocked, its successor under the same id must stay untouched.
	s.manager.DisconnectSession(session, "disconnect")
}

// DumpJournal implements httpapi.JournalDumper.
func (s *relayService) DumpJournal(ctx context.Context) (string, error) {
	if s.journal == nil {
		return "", errors.New("journal not configured")
	}
	if _, err := s.journal.Dump(); err != nil {
		return "", err
	}
	return s.journal.Directory(), nil
}

func (s *relayService) journalStats() func() journal.Stats {
	if s.journal == nil {
		return nil
	}
	return s.journal.Snapshot
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal("invalid configuration", logging.Error(err))
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logging.L().Fatal("failed to initialise logging", logging.Error(err))
	}
	defer logger.Sync()

	service := newRelayService(cfg, logger)

	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:    logger,
		Readiness: service,
		Stats: func() (int64, int64) {
			return service.broadcaster.Broadcasts(), service.manager.Fanout().Failures()
		},
		Journal:      service,
		JournalStats: service.journalStats(),
		AdminToken:   cfg.AdminToken,
		RateLimiter:  httpapi.NewSlidingWindowLimiter(cfg.JournalDumpWindow, cfg.JournalDumpBurst, nil),
	})

	mux := http.NewServeMux()
	handlers.Register(mux)
	mux.HandleFunc("/ws", service.serveWS)

	server := &http.Server{
		Addr:    cfg.Address,
		Handler: logging.HTTPRequestMiddleware(logger)(mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//1.- The broadcast and heartbeat loops run for the life of the process.
	go service.broadcaster.Run(ctx)
	go service.manager.RunHeartbeat(ctx, cfg.HeartbeatInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", logging.String("addr", cfg.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", logging.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", logging.Error(err))
	}

	//2.- Close live sessions so peers see a clean departure, then seal the journal.
	for _, session := range service.manager.Sessions() {
		service.manager.DisconnectSession(session, "server shutdown")
	}
	if service.journal != nil {
		if err := service.journal.Close(); err != nil {
			logger.Warn("journal close failed", logging.Error(err))
		}
	}
	logger.Info("relay stopped")
}
