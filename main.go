package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"AdDeck/internal/connect"
	"AdDeck/internal/jobs"
	"AdDeck/internal/notify"
	"AdDeck/internal/ratelimiters"
	"AdDeck/internal/session"
	"AdDeck/internal/store"
	"AdDeck/pkg/adsapi"
)

var (
	config Config
	srv    *http.Server

	kv        *store.Redis
	sessions  *session.Manager
	connector *connect.Processor
)

func init() {
	defer func() {
		if err := recover(); err != nil {
			log.Fatalf("error recovered: %v", err)
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sc
		log.Info("received SIGTERM, exiting")
		cleanup()
		os.Exit(0)
	}()

	configPath := flag.String("config", "./config.toml", "Config file path (default: ./config.toml)")
	flag.Parse()
	config = LoadConfig(*configPath)
}

func cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("failed to shutdown HTTP server: %v", err)
		}
	}
	jobs.Close()
	if kv != nil {
		if err := kv.Close(); err != nil {
			log.Errorf("failed to close store: %v", err)
		}
	}
}

func main() {
	defer func() {
		if err := recover(); err != nil {
			log.Fatalf("error recovered: %v", err)
		}
	}()

	var err error
	kv, err = store.NewRedis(context.Background(), config.Redis)
	if err != nil {
		log.Fatal(err)
	}
	ratelimiters.Init(kv.Client())

	api := adsapi.New(config.API)
	notifier := notify.New(config.Notify)
	sessions = session.NewManager(api, kv)
	connector = connect.NewProcessor(api, sessions, kv, notifier)
	jobs.Init(config.Jobs, sessions, connector, notifier)
	defer cleanup()

	// settle the initial status query in the background; handlers
	// re-resolve on demand if they run first
	go func() {
		status := sessions.Status(context.Background())
		log.Infof("session resolved: %s", status.Status)
	}()

	r := http.NewServeMux()
	r.HandleFunc(config.LandingPath, HandleOAuthLanding) // Instagram OAuth redirect
	r.HandleFunc("/auth/login", HandleAuthLogin)
	r.HandleFunc("/auth/register", HandleAuthRegister)
	r.HandleFunc("/auth/logout", HandleAuthLogout)
	r.HandleFunc("/auth/status", HandleAuthStatus)
	r.HandleFunc("/connect/start", HandleConnectStart)
	r.HandleFunc("/connect/status", HandleConnectStatus)
	r.HandleFunc("/connect/disconnect", HandleConnectDisconnect)

	srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      middleware(r),
		TLSConfig:    config.tlsConfig,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if srv.TLSConfig != nil { // with HTTPS
		log.Infof("started listening on %s (HTTPS)", srv.Addr)
		err = srv.ListenAndServeTLS("", "")
	} else { // without HTTPS
		log.Infof("started listening on %s", srv.Addr)
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		log.Errorf("error returned by HTTP server: %v", err)
	}
}
