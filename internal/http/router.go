package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/config"
	"github.com/pactify/backend/internal/http/handlers"
	"github.com/pactify/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	walletHandler *handlers.WalletHandler,
	pactHandler *handlers.PactHandler,
	goalHandler *handlers.GoalHandler,
	chatHandler *handlers.ChatHandler,
	auditHandler *handlers.AuditHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/nonce", authHandler.Nonce)
	api.Post("/auth/wallet", authHandler.WalletAuth)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Put("/me", userHandler.UpdateMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Get("/users/:id/score", userHandler.GetScore)

	// Wallet linking
	protected.Post("/me/wallet/challenge", walletHandler.GenerateChallenge)
	protected.Post("/me/wallet/link", walletHandler.LinkWallet)
	protected.Delete("/me/wallet", walletHandler.UnlinkWallet)
	protected.Get("/me/wallet", walletHandler.GetWallet)

	// Pacts
	protected.Post("/pacts", pactHandler.CreatePact)
	protected.Get("/pacts", pactHandler.ListPacts)
	protected.Get("/pacts/:id", pactHandler.GetPact)
	protected.Post("/pacts/:id/accept", pactHandler.AcceptPact)
	protected.Post("/pacts/:id/reject", pactHandler.RejectPact)
	protected.Post("/pacts/:id/dismiss", pactHandler.DismissRejected)
	protected.Post("/pacts/:id/submission", pactHandler.UploadSubmission)
	protected.Get("/pacts/:id/submission", pactHandler.DownloadSubmission)
	protected.Post("/pacts/:id/signal-completion", pactHandler.SignalCompletion)
	protected.Post("/pacts/:id/confirm", pactHandler.ConfirmCompletion)
	protected.Post("/pacts/:id/request-revision", pactHandler.RequestRevision)
	protected.Post("/pacts/:id/reconcile", pactHandler.Reconcile)
	protected.Get("/pacts/:id/events", auditHandler.PactEvents)

	// Pact chat
	protected.Post("/pacts/:id/messages", chatHandler.SendMessage)
	protected.Get("/pacts/:id/messages", chatHandler.ListMessages)

	// Goals
	protected.Post("/goals", goalHandler.CreateGoal)
	protected.Get("/goals", goalHandler.ListGoals)
	protected.Get("/goals/:id", goalHandler.GetGoal)
	protected.Post("/goals/:id/stake", goalHandler.StakeGoal)
	protected.Post("/goals/:id/complete", goalHandler.CompleteGoal)
	protected.Post("/goals/:id/fail", goalHandler.FailGoal)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
