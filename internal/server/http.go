package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quizbattle/battle-server/internal/config"
)

// WSUpgrader handles WebSocket upgrades for the battle endpoint.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Game clients connect from app webviews; origin filtering is
		// left to the deployment's proxy.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Pinger is a dependency liveness probe consulted by /healthz.
type Pinger func(ctx context.Context) error

// NewHTTPServer wires the service routes: health, metrics and the battle
// WebSocket endpoint.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, battleWS http.HandlerFunc, pingers ...Pinger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for _, ping := range pingers {
			if err := ping(r.Context()); err != nil {
				logger.Error().Err(err).Msg("dependency ping failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/ws/battle", battleWS)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

// PoolPinger adapts a pgx pool to a Pinger.
func PoolPinger(pool *pgxpool.Pool) Pinger {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
