package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"taskdesk/internal/api"
	"taskdesk/internal/auth"
	"taskdesk/internal/config"
	"taskdesk/internal/store"
	"taskdesk/internal/task"
	"taskdesk/internal/upload"
)

func main() {

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, closeStore := buildStore(cfg)
	defer closeStore()

	pipeline, err := upload.New(upload.Options{
		TempDir:  cfg.TempDir,
		FinalDir: cfg.UploadDir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build upload pipeline")
	}

	svc := task.NewService(st, st)
	tokens := auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)

	router := setupRouter()
	wireAPI(router, svc, pipeline, st, tokens, cfg.UploadDir)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	waitForShutdownSignal()

	gracefulShutdown(srv, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.RequestLogger())
	return r
}

// buildStore picks Mongo when a URI is configured and the in-memory store
// otherwise. The returned func releases the backing connection.
func buildStore(cfg config.Config) (store.Store, func()) {
	if cfg.MongoURI == "" {
		log.Warn().Msg("no mongo_uri configured, using in-memory store")
		return store.NewMemory(), func() {}
	}

	m, err := store.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongo")
	}
	return m, func() {
		if err := m.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect warning")
		}
	}
}

func wireAPI(router *gin.Engine, svc *task.Service, pipeline *upload.Pipeline, st store.Store, tokens *auth.Tokens, uploadDir string) {
	authenticate := auth.Authenticate(tokens, st)

	api.NewAuthAPI(st, tokens).RegisterRoutes(router, authenticate)
	api.NewTaskAPI(svc, pipeline, st).RegisterRoutes(router, authenticate)

	router.Static("/uploads", uploadDir)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}
	log.Info().Msg("server exited cleanly")
}
