package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ticket-resale/config"
	"ticket-resale/internal/handlers"
	"ticket-resale/internal/services"
	"ticket-resale/internal/services/bank"
	"ticket-resale/internal/services/bank/jdb"
	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/monitoring"
	"ticket-resale/security"
	"ticket-resale/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	_ "ticket-resale/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bank integration (optional, skipped when JDB_BASE_URL is unset)
	jdbInstance, err := jdb.New(ctx, &cfg.JDBConfig)
	if err != nil {
		return err
	}
	bankClient := bank.NewJDB(jdbInstance)

	// Stores
	chatStore := store.NewChatStore(app)
	messageStore := store.NewMessageStore(app)
	ticketStore := store.NewTicketStore(app)
	userStore := store.NewUserStore(app)

	// Services
	seenService := services.NewSeenService(redisClient)
	chatLocks := services.NewChatMutex(redisClient, cfg.ChatLockTTL)
	messageService := services.NewMessageService(chatStore, messageStore)
	chatService := services.NewChatService(chatStore, messageStore, ticketStore, userStore, seenService, pn)
	negotiationService := services.NewNegotiationService(chatStore, messageService, ticketStore, chatLocks, pn)
	paymentService := services.NewPaymentService(redisClient, pn, chatStore, messageService, ticketStore, bankClient, cfg.SettlementTTL)

	// Feed bank transaction notifications into settlement
	if bankClient != nil {
		go func() {
			txChannel := make(chan *status.Transaction, 1)
			bankClient.SetTranChannel(txChannel)
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-txChannel:
					slog.Info("=> bank transaction received", "uuid", t.UUID, "amount", t.Amount)
					if err := paymentService.HandleTransaction(ctx, t); err != nil {
						slog.Error("paymentService.HandleTransaction()", "uuid", t.UUID, "error", err)
					}
				}
			}
		}()
	}

	// Handlers
	chatHandler := handlers.NewChatHandler(app, chatService, messageService)
	negotiationHandler := handlers.NewNegotiationHandler(app, negotiationService)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService)
	adminHandler := handlers.NewAdminHandler(app, chatStore, paymentService, redisClient)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.ActionRateLimit)
	negotiationLimit := rateLimiter.NegotiationRateLimit()

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Prometheus on its own listener
	if cfg.EnableMetrics {
		monitoring.NewMonitor(chatStore)
		go func() {
			if err := monitoring.Serve(cfg.MetricsPort); err != nil {
				slog.Error("monitoring.Serve()", "port", cfg.MetricsPort, "error", err)
			}
		}()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		e.Router.BindFunc(rateLimiter.AntiBotMiddleware())

		// Chat endpoints
		e.Router.POST("/api/v1/chats", chatHandler.CreateChat)
		e.Router.GET("/api/v1/chats", chatHandler.ListChats)
		e.Router.GET("/api/v1/chats/{chatId}", chatHandler.GetChat)
		e.Router.GET("/api/v1/chats/{chatId}/messages", chatHandler.GetMessages)
		e.Router.POST("/api/v1/chats/{chatId}/seen", chatHandler.MarkSeen)

		// Negotiation endpoints
		e.Router.POST("/api/v1/chats/{chatId}/messages", negotiationHandler.SendText).BindFunc(negotiationLimit)
		e.Router.POST("/api/v1/chats/{chatId}/offer", negotiationHandler.MakeOffer).BindFunc(negotiationLimit)
		e.Router.POST("/api/v1/chats/{chatId}/counter-offer", negotiationHandler.CounterOffer).BindFunc(negotiationLimit)
		e.Router.POST("/api/v1/chats/{chatId}/accept", negotiationHandler.AcceptOffer).BindFunc(negotiationLimit)
		e.Router.POST("/api/v1/chats/{chatId}/reject", negotiationHandler.RejectOffer).BindFunc(negotiationLimit)

		// Settlement endpoints
		e.Router.POST("/api/v1/payment/gen-jdb-qr", paymentHandler.GenJdbQr)
		e.Router.GET("/api/v1/payment/{chatId}/status", paymentHandler.CheckSettlement)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/negotiation-dashboard", adminHandler.GetNegotiationDashboard)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/v1/test/simulate-payment", paymentHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
