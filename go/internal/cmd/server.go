package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/mcdev12/gavel/go/internal/config"
	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/fanout"
	"github.com/mcdev12/gavel/go/internal/hotstore"
)

func setupServer(cfg *config.Config, hub *fanout.Hub, hot *hotstore.Store, db *durable.Store) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", healthHandler(hot, db))

	return &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: c.Handler(mux),
	}
}

func healthHandler(hot *hotstore.Store, db *durable.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"hot_store": "ok", "durable_store": "ok"}
		healthy := true
		if err := hot.Ping(ctx); err != nil {
			status["hot_store"] = err.Error()
			healthy = false
		}
		if err := db.Ping(ctx); err != nil {
			status["durable_store"] = err.Error()
			healthy = false
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
