package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/modular_monolith/internal/config"
	"github.com/Skotchmaster/modular_monolith/internal/es"
	"github.com/Skotchmaster/modular_monolith/internal/handlers"
	"github.com/Skotchmaster/modular_monolith/internal/logging"
	"github.com/Skotchmaster/modular_monolith/internal/mykafka"
	"github.com/Skotchmaster/modular_monolith/internal/revocation"
	"github.com/Skotchmaster/modular_monolith/internal/seed"
	authsvc "github.com/Skotchmaster/modular_monolith/internal/service/auth"
	userssvc "github.com/Skotchmaster/modular_monolith/internal/service/users"
	"github.com/Skotchmaster/modular_monolith/internal/store"
	"github.com/Skotchmaster/modular_monolith/internal/tokens"
	httpserver "github.com/Skotchmaster/modular_monolith/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LogLevel)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	st := store.New(db)

	ctx := context.Background()
	if err := seed.Users(ctx, logger, st); err != nil {
		log.Fatalf("seeding error: %v", err)
	}

	var producer *mykafka.Producer
	if configuration.KafkaAddress != "" {
		producer = mykafka.NewProducer([]string{configuration.KafkaAddress}, configuration.KafkaTopic)
	}

	var esClient *elasticsearch.Client
	if configuration.ESURL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	}

	issuer := &tokens.Issuer{
		Secret:     []byte(configuration.JWTSecret),
		Issuer:     configuration.JWTIssuer,
		Audience:   configuration.JWTAudience,
		AccessTTL:  configuration.AccessTTL,
		RefreshTTL: configuration.RefreshTTL,
	}

	cache := revocation.NewCache(configuration.AccessTTL)
	defer cache.Close()

	authService := authsvc.NewService(logger, st, issuer, cache, producer)
	usersService := userssvc.NewService(logger, st, producer, esClient, configuration.ESIndex)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{Auth: authService, Users: usersService},
		UserHandler: &handlers.UserHandler{Auth: authService, Users: usersService},
		JWTSecret:   []byte(configuration.JWTSecret),
		Cache:       cache,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
