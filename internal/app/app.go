package app

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/validation"
	"github.com/example/storefront/internal/verification"
)

// Option adjusts how Build wires the app.
type Option func(*options)

type options struct {
	inlineEffects bool
}

// WithInlineEffects finishes order emails, notifications and events inside
// the request and writes events to Kafka synchronously. Serverless runtimes
// that freeze between invocations need it.
func WithInlineEffects() Option {
	return func(o *options) { o.inlineEffects = true }
}

// Build connects every backing service described by cfg and returns the
// configured fiber app. cleanup releases the connections and flushes
// pending events; call it after the app stops serving.
func Build(cfg *config.Config, opts ...Option) (*fiber.App, func(), error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.DBAutoCreate)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[Redis] ping %s failed: %v", cfg.RedisAddr, err)
		}
		cancel()
		closers = append(closers, func() { _ = rdb.Close() })
	}

	var codes verification.CodeStore
	if cfg.CodeStore == "redis" && rdb != nil {
		codes = verification.NewRedisStore(rdb)
	} else {
		dbCodes := verification.NewDBStore(db)
		codes = dbCodes
		stop := sweepExpiredCodes(dbCodes, time.Hour)
		closers = append(closers, stop)
	}

	var carts handlers.CartStore
	if rdb != nil {
		carts = cart.NewRedisStore(rdb, cfg.CartTTL)
	} else {
		log.Printf("[Cart] REDIS_ADDR not set, server-side carts disabled")
	}

	gateway, err := services.NewMercadoPagoService(services.MercadoPagoConfig{
		AccessToken:     cfg.MercadoPagoAccessToken,
		Sandbox:         cfg.MercadoPagoSandbox,
		PublicBaseURL:   cfg.PublicBaseURL,
		NotificationURL: cfg.NotificationURL,
		Currency:        cfg.Currency,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.MercadoPagoAccessToken == "" {
		log.Printf("[MercadoPago] MERCADOPAGO_ACCESS_TOKEN not set, payments disabled")
	}

	var archive services.SentArchiver
	if cfg.IMAPAddr != "" {
		archive = services.NewIMAPArchive(cfg.IMAPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.IMAPSentMailbox)
	}
	mailer := services.NewMailer(services.SMTPConfig{
		Addr:        cfg.SMTPAddr,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		ImplicitTLS: cfg.SMTPImplicitTLS,
		FromName:    cfg.MailFromName,
	}, archive)

	notifier := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	var events services.EventPublisher = services.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 && o.inlineEffects {
		publisher := services.NewSyncEventPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		events = publisher
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				log.Printf("[Events] failed to close writer: %v", err)
			}
		})
	} else if len(cfg.KafkaBrokers) > 0 {
		producer := services.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 256)
		ctx, cancel := context.WithCancel(context.Background())
		producer.Start(ctx)
		events = producer
		closers = append(closers, func() {
			producer.Close()
			producer.WaitClosed()
			cancel()
		})
	}

	validate := validation.New()
	orders := store.NewOrderStore(db)
	products := store.NewProductStore(db)
	var effectOpts []handlers.EffectsOption
	if o.inlineEffects {
		effectOpts = append(effectOpts, handlers.InlineEffects())
	}
	effects := handlers.NewOrderEffects(mailer, notifier, events, cfg.Currency, cfg.PublicBaseURL, effectOpts...)
	gate := handlers.EmailGate{Required: cfg.RequireVerifiedEmail, Secret: cfg.JWTSecret}

	app := fiber.New(fiber.Config{
		AppName:      "Storefront Backend",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    8 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	routes.Register(app, routes.Handlers{
		Auth:         handlers.NewAuthHandler(cfg.AdminEmail, cfg.AdminPassHash, cfg.JWTSecret, cfg.TokenExpires, validate),
		Admin:        handlers.NewAdminHandler(orders, products),
		Orders:       handlers.NewOrderHandler(orders, mailer, effects, gate, validate),
		Payments:     handlers.NewPaymentHandler(gateway, orders, effects, validate),
		Verification: handlers.NewVerificationHandler(verification.NewService(codes, cfg.CodeTTL, cfg.MaxCodeAttempts), mailer, cfg.EmailDomainAllowed, cfg.JWTSecret, cfg.VerificationTokenTTL, validate),
		Products:     handlers.NewProductHandler(products, validate),
		Carts:        handlers.NewCartHandler(carts, products, validate),
		Checkout:     handlers.NewCheckoutHandler(orders, carts, gateway, effects, gate, validate),
	}, cfg.JWTSecret)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	return app, cleanup, nil
}

// sweepExpiredCodes deletes expired verification rows every interval until
// the returned stop func is called.
func sweepExpiredCodes(codes *verification.DBStore, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				n, err := codes.PurgeExpired(ctx, now)
				cancel()
				if err != nil {
					log.Printf("[Verify] purging expired codes failed: %v", err)
				} else if n > 0 {
					log.Printf("[Verify] purged %d expired codes", n)
				}
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
