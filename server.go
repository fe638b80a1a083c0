// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"silently-server/commons"
	"silently-server/crypto"
	"silently-server/db"
	"silently-server/handlers"
	"silently-server/ledger"
	"silently-server/license"
	"silently-server/middlewares"
	"silently-server/notifications"
	"silently-server/payment"
	"silently-server/rabbitmq"
	"silently-server/routes"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

func main() {
	commons.LoadEnvFile()

	e := echo.New()
	e.HideBanner = true

	e.Logger.SetLevel(commons.Logger.Level())
	e.Logger.SetHeader("${time_rfc3339} ${level} ${short_file}:${line} -")

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logMsg := func(format string, args ...any) {
				switch {
				case v.Status >= 500:
					e.Logger.Errorf(format, args...)
				case v.Status >= 400:
					e.Logger.Warnf(format, args...)
				default:
					e.Logger.Infof(format, args...)
				}
			}
			logMsg("%s %s - %d - %.2fms - %s",
				v.Method,
				v.URI,
				v.Status,
				float64(v.Latency.Microseconds())/1000.0,
				v.RemoteIP,
			)
			return nil
		},
	}))
	if slices.Contains(os.Args[1:], "--debug") {
		e.Logger.Warn("Debug mode is enabled.")
		e.Debug = true
		e.Logger.SetLevel(log.DEBUG)
		commons.Logger.SetLevel(log.DEBUG)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	db.InitDB()
	if slices.Contains(os.Args[1:], "--migrate-db") {
		commons.Logger.Debug("--migrate-db flag detected, running migrations")
		db.MigrateDB()
	}

	jwtSecret := commons.GetEnv("JWT_SECRET")
	if jwtSecret == "" {
		commons.Logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	razorpaySecret := commons.GetEnv("RAZORPAY_KEY_SECRET")
	if razorpaySecret == "" {
		commons.Logger.Warn("RAZORPAY_KEY_SECRET is not set, payment verification endpoints will return 503")
	}

	ledgerOpts := []ledger.Option{}
	var publisher *rabbitmq.Publisher
	if commons.GetEnv("RABBITMQ_AMQP_URL") != "" {
		p, err := rabbitmq.NewPublisher(rabbitmq.RabbitMQConfig{})
		if err != nil {
			commons.Logger.Error("RabbitMQ publisher unavailable, usage events will not be published:", err)
		} else {
			publisher = p
			ledgerOpts = append(ledgerOpts, ledger.WithPublisher(p))
		}
	}
	l := ledger.New(ledger.NewGormStore(db.Conn), ledgerOpts...)

	gateway, err := payment.NewGateway()
	if err != nil {
		commons.Logger.Error("Payment gateway configuration failed:", err)
		os.Exit(1)
	}

	billing := payment.NewStripeBilling(payment.StripeBillingConfig{})
	if !billing.Configured() {
		commons.Logger.Warn("STRIPE_SECRET_KEY is not set, Stripe checkout and portal endpoints will return 503")
	}

	h := &handlers.Handler{
		DB:     db.Conn,
		Ledger: l,
		Issuer: license.NewIssuer(l),
		Validator: license.NewValidator(l,
			license.WithRateLimit(commons.GetEnvFloat("LICENSE_VALIDATE_RATE", 1), commons.GetEnvInt("LICENSE_VALIDATE_BURST", 5)),
			license.WithValidationLog(license.GormValidationLog{DB: db.Conn}),
		),
		Verifier: payment.NewVerifier(razorpaySecret),
		Gateway:  gateway,
		Stripe:   payment.NewStripeEvents(commons.GetEnv("STRIPE_WEBHOOK_SECRET")),
		Billing:  billing,
		Crypto:   crypto.NewCrypto(),
		Auth: &middlewares.Authenticator{
			DB:         db.Conn,
			Ledger:     l,
			JWTSecret:  jwtSecret,
			SessionTTL: time.Duration(commons.GetEnvInt("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		},
		Notify: notifications.Send,
	}

	routes.RegisterRoutes(e, h)

	port := commons.GetEnv("PORT")
	if port == "" {
		port = ":8080"
	}
	if port[0] != ':' {
		port = ":" + port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	e.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error("Server shutdown failed:", err)
	}
	if publisher != nil {
		publisher.Close()
	}
}
