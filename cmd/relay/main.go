package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redgram/internal/config"
	"redgram/internal/logging"
	"redgram/internal/relay"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	hub := relay.NewHub(log)
	go hub.Run()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", relay.NewHandler(hub).ServeWs)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	log.Info().Str("addr", cfg.Addr()).Msg("🔴 RedGram relay started")
	if err := http.ListenAndServe(cfg.Addr(), r); err != nil {
		log.Fatal().Err(err).Msg("listen failed")
	}
}
