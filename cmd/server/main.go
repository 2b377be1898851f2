package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/movie-ticket-booking/internal/booking"
	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/daraja"
	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/router"
	queue_publisher "github.com/iliyamo/movie-ticket-booking/internal/service"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("ensure schema: %v", err)
	}
	cancel()

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	pushes := repository.NewPushRequestRepo(db)

	payments := daraja.NewClient(daraja.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		TillNumber:     cfg.Mpesa.TillNumber,
		CallbackURL:    cfg.Mpesa.CallbackURL,
	})

	// The publisher tolerates a missing broker: publishing is best
	// effort and settlement never depends on it.
	publisher := queue_publisher.NewPublisher(os.Getenv("RABBITMQ_URL"))

	svc := booking.NewService(events, tickets, pushes, payments, publisher)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	// Redis is optional: when unreachable the rate limiter and the
	// response cache are simply not installed.
	var limiter, cacheware echo.MiddlewareFunc
	if rdb := config.NewRedisClient(); rdb != nil {
		if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled {
			limiter = middleware.NewTokenBucket(rlCfg, rdb)
		}
		if cCfg := config.LoadCacheConfig(); cCfg.Enabled {
			cacheware = middleware.NewRedisCache(cCfg, rdb)
		}
	}

	router.RegisterRoutes(e)
	router.RegisterEvents(e, handler.NewEventHandler(events), cacheware)
	router.RegisterReservations(e, handler.NewReservationHandler(svc, tickets), limiter)
	router.RegisterPayments(e, handler.NewPaymentHandler(svc, payments))

	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
