// Package httpapi exposes the relay's operational HTTP surface: liveness,
// readiness, Prometheus text metrics, and the admin-guarded journal dump.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"planetfall/relay/internal/journal"
	"planetfall/relay/internal/logging"
)

// ReadinessProvider exposes relay state required for readiness checks.
type ReadinessProvider interface {
	SessionCount() int
	StartupError() error
	Uptime() time.Duration
}

// StatsFunc returns cumulative broadcast and delivery-failure counters.
type StatsFunc func() (broadcasts, deliveryFailures int64)

// JournalDumper forces the journal's buffers to disk and reports its location.
type JournalDumper interface {
	DumpJournal(ctx context.Context) (string, error)
}

// JournalDumperFunc adapts a function into a JournalDumper.
type JournalDumperFunc func(ctx context.Context) (string, error)

// DumpJournal implements JournalDumper.
func (f JournalDumperFunc) DumpJournal(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger       *logging.Logger
	Readiness    ReadinessProvider
	Stats        StatsFunc
	Journal      JournalDumper
	JournalStats func() journal.Stats
	AdminToken   string
	RateLimiter  RateLimiter
	TimeSource   func() time.Time
}

// HandlerSet bundles the relay operational handlers.
type HandlerSet struct {
	logger       *logging.Logger
	readiness    ReadinessProvider
	stats        StatsFunc
	journal      JournalDumper
	journalStats func() journal.Stats
	adminToken   string
	rateLimiter  RateLimiter
	now          func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:       logger,
		readiness:    opts.Readiness,
		stats:        opts.Stats,
		journal:      opts.Journal,
		journalStats: opts.JournalStats,
		adminToken:   strings.TrimSpace(opts.AdminToken),
		rateLimiter:  opts.RateLimiter,
		now:          now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/journal/dump", h.JournalDumpHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports relay readiness, including the live session count.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Sessions      int     `json:"sessions"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			resp.Sessions = h.readiness.SessionCount()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sessions int
		var uptime float64
		if h.readiness != nil {
			sessions = h.readiness.SessionCount()
			uptime = h.readiness.Uptime().Seconds()
		}
		var broadcasts, failures int64
		if h.stats != nil {
			broadcasts, failures = h.stats()
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP relay_uptime_seconds Relay uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE relay_uptime_seconds gauge\n")
		fmt.Fprintf(w, "relay_uptime_seconds %.0f\n", uptime)

		fmt.Fprintf(w, "# HELP relay_sessions Current connected sessions.\n")
		fmt.Fprintf(w, "# TYPE relay_sessions gauge\n")
		fmt.Fprintf(w, "relay_sessions %d\n", sessions)

		fmt.Fprintf(w, "# HELP relay_broadcasts_total Total snapshot broadcast cycles completed.\n")
		fmt.Fprintf(w, "# TYPE relay_broadcasts_total counter\n")
		fmt.Fprintf(w, "relay_broadcasts_total %d\n", broadcasts)

		fmt.Fprintf(w, "# HELP relay_delivery_failures_total Total missed per-session deliveries.\n")
		fmt.Fprintf(w, "# TYPE relay_delivery_failures_total counter\n")
		fmt.Fprintf(w, "relay_delivery_failures_total %d\n", failures)

		if h.journalStats != nil {
			stats := h.journalStats()
			fmt.Fprintf(w, "# HELP relay_journal_events_total Relayed events absorbed by the journal.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_events_total counter\n")
			fmt.Fprintf(w, "relay_journal_events_total %d\n", stats.Events)
			fmt.Fprintf(w, "# HELP relay_journal_frames_total Broadcast frames absorbed by the journal.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_frames_total counter\n")
			fmt.Fprintf(w, "relay_journal_frames_total %d\n", stats.Frames)
			fmt.Fprintf(w, "# HELP relay_journal_pending_frames Journal frames buffered awaiting flush.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_pending_frames gauge\n")
			fmt.Fprintf(w, "relay_journal_pending_frames %d\n", stats.PendingFrames)
			fmt.Fprintf(w, "# HELP relay_journal_write_errors_total Journal write failures.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_write_errors_total counter\n")
			fmt.Fprintf(w, "relay_journal_write_errors_total %d\n", stats.WriteErrors)
		}
	}
}

// JournalDumpHandler authorises and triggers a journal flush to disk.
func (h *HandlerSet) JournalDumpHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "journal_dump"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("journal dump denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("journal dump denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("journal dump denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.journal == nil {
			reqLogger.Warn("journal dump denied: no journal configured")
			http.Error(w, "journal dumping is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.journal.DumpJournal(r.Context())
		if err != nil {
			reqLogger.Error("journal dump failed", logging.Error(err))
			http.Error(w, "failed to dump journal", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("journal dump completed")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
