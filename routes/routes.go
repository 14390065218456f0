package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"outreach/config"
	controller "outreach/controllers"
	"outreach/events"
	"outreach/middleware"
	"outreach/models"
	"outreach/services"
	"outreach/utils"
)

const apiVersion = "1.0.0"

var (
	adminOnly            = middleware.RequireRoles(models.RoleAdmin)
	commercialOrAdmin    = middleware.RequireRoles(models.RoleAdmin, models.RoleCommercial)
	anyAuthenticatedRole = middleware.RequireRoles()
)

func SetupAuthRoutes(api fiber.Router, auth *services.AuthService) {
	authController := controller.NewAuthController(auth)

	group := api.Group("/auth")
	group.Post("/login", authController.Login)
	group.Post("/refresh", authController.Refresh)

	protected := group.Group("", middleware.Protected(auth))
	protected.Get("/me", authController.Me)
	protected.Post("/logout", authController.Logout)
	protected.Post("/change-password", authController.ChangePassword)
}

func SetupAPIRoutes(api fiber.Router, db *gorm.DB, publisher events.Publisher, auth *services.AuthService) {
	campaignService := services.NewCampaignService(db, publisher)
	deliveryService := services.NewDeliveryService(db, publisher)

	userController := controller.NewUserController(services.NewUserService(db))
	prospectController := controller.NewProspectController(services.NewProspectService(db, publisher))
	sectorController := controller.NewSectorController(services.NewSectorService(db, publisher))
	senderController := controller.NewSenderController(services.NewSenderService(db, publisher), deliveryService)
	templateController := controller.NewTemplateController(services.NewTemplateService(db, publisher))
	campaignController := controller.NewCampaignController(campaignService, deliveryService)

	protected := api.Group("", middleware.Protected(auth))

	// User management
	users := protected.Group("/users", adminOnly)
	users.Get("/stats", userController.Stats)
	users.Get("/", userController.List)
	users.Post("/", userController.Create)
	users.Get("/:id", userController.Get)
	users.Put("/:id", userController.Update)
	users.Delete("/:id", userController.Delete)
	users.Post("/:id/reset-password", userController.ResetPassword)
	users.Post("/:id/reactivate", userController.Reactivate)

	// Prospects
	prospects := protected.Group("/prospects", commercialOrAdmin)
	prospects.Get("/", prospectController.List)
	prospects.Post("/", prospectController.Create)
	prospects.Post("/bulk-import", prospectController.BulkImport)
	prospects.Post("/unsubscribe", prospectController.Unsubscribe)
	prospects.Get("/:id", prospectController.Get)
	prospects.Put("/:id", prospectController.Update)
	prospects.Delete("/:id", prospectController.Delete)
	prospects.Post("/:id/reactivate", prospectController.Reactivate)
	prospects.Post("/:id/consent", prospectController.GrantConsent)

	// Sectors: reads for every role, mutations for admins
	sectors := protected.Group("/sectors")
	sectors.Get("/", anyAuthenticatedRole, sectorController.List)
	sectors.Post("/", adminOnly, sectorController.Create)
	sectors.Post("/bulk-import", adminOnly, sectorController.BulkImport)
	sectors.Get("/:id/stats", anyAuthenticatedRole, sectorController.Stats)
	sectors.Get("/:id", anyAuthenticatedRole, sectorController.Get)
	sectors.Put("/:id", adminOnly, sectorController.Update)
	sectors.Delete("/:id", adminOnly, sectorController.Delete)

	// Senders: static paths before /:id
	senders := protected.Group("/senders")
	senders.Get("/", anyAuthenticatedRole, senderController.List)
	senders.Post("/", adminOnly, senderController.Create)
	senders.Get("/default", anyAuthenticatedRole, senderController.GetDefault)
	senders.Post("/multiple", adminOnly, senderController.BulkCreate)
	senders.Put("/multiple", adminOnly, senderController.BulkUpdate)
	senders.Delete("/multiple", adminOnly, senderController.BulkDelete)
	senders.Get("/:id", anyAuthenticatedRole, senderController.Get)
	senders.Get("/:id/daily-limit", anyAuthenticatedRole, senderController.DailyLimit)
	senders.Post("/:id/set-default", adminOnly, senderController.SetDefault)
	senders.Post("/:id/reactivate", adminOnly, senderController.Reactivate)
	senders.Put("/:id", adminOnly, senderController.Update)
	senders.Delete("/:id", adminOnly, senderController.Delete)

	// Templates
	templates := protected.Group("/templates", commercialOrAdmin)
	templates.Get("/", templateController.List)
	templates.Post("/", templateController.Create)
	templates.Get("/default", templateController.GetDefault)
	templates.Get("/:id", templateController.Get)
	templates.Put("/:id", templateController.Update)
	templates.Delete("/:id", templateController.Delete)
	templates.Post("/:id/duplicate", templateController.Duplicate)
	templates.Post("/:id/preview", templateController.Preview)

	// Campaigns
	campaigns := protected.Group("/campaigns", commercialOrAdmin)
	campaigns.Get("/", campaignController.List)
	campaigns.Post("/", campaignController.Create)
	campaigns.Get("/:id", campaignController.Get)
	campaigns.Put("/:id", campaignController.Update)
	campaigns.Delete("/:id", campaignController.Delete)
	campaigns.Get("/:id/recipients", campaignController.ListRecipients)
	campaigns.Post("/:id/recipients", campaignController.AddRecipients)
	campaigns.Get("/:id/stats/ws", campaignController.StatsUpgrade, websocket.New(campaignController.StreamStats))
	campaigns.Get("/:id/stats", campaignController.Stats)
	campaigns.Post("/:id/schedule", campaignController.Schedule)
	campaigns.Get("/:id/sends", campaignController.ListSends)

	// Delivery hooks for the sending worker
	campaigns.Post("/:id/start", adminOnly, campaignController.Start)
	campaigns.Post("/:id/complete", adminOnly, campaignController.Complete)
	campaigns.Post("/:id/sends", adminOnly, campaignController.RecordSend)
	protected.Post("/sends/:sendId/credential", adminOnly, campaignController.AttachCredential)
}

// SetupRoutes mounts every route of the service on app
func SetupRoutes(app *fiber.App, db *gorm.DB, publisher events.Publisher) {
	auth := services.NewAuthService(db, config.AppConfig.MaxLoginAttempts)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success":   true,
			"message":   "API is running",
			"timestamp": time.Now().UTC(),
			"version":   apiVersion,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", middleware.APIRateLimiter())
	v1 := api.Group("/v1")

	SetupAuthRoutes(v1, auth)
	SetupAPIRoutes(v1, db, publisher, auth)

	app.Use(middleware.NotFound)

	utils.NewLogger("routes").Info("Routes initialized successfully")
}
