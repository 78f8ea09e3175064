package routes

import (
	"github.com/arnold/chore-tracker-api/internal/handlers"
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

type Options struct {
	UploadDir     string
	MaxUploadSize int64
	CORSOrigins   string
	RequestLog    bool
}

// NewApp builds the fiber app with the shared middleware stack and all routes.
func NewApp(h *handlers.Handler, opts Options) *fiber.App {
	bodyLimit := int(opts.MaxUploadSize) + 1024*1024
	app := fiber.New(fiber.Config{
		AppName:      "chore-tracker-api",
		BodyLimit:    bodyLimit,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	if opts.RequestLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	Setup(app, h, opts.UploadDir)
	return app
}

func Setup(app *fiber.App, h *handlers.Handler, uploadDir string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	app.Static("/uploads", uploadDir)

	app.Post("/signup", h.Register)
	app.Post("/login", h.Login)
	app.Post("/forgot-password", h.ForgotPassword)

	protected := h.Auth.Protected()

	app.Get("/me", protected, h.GetMe)
	app.Post("/device-token", protected, h.RegisterDeviceToken)
	app.Get("/rewards/history", protected, h.GetRewardHistory)

	family := app.Group("/family", protected)
	family.Post("/create", middleware.RequireRoles(models.RoleSupervisor), h.CreateFamily)
	family.Post("/join", middleware.RequireRoles(), h.JoinFamily)
	family.Get("/", h.GetFamily)
	family.Get("/members", h.GetMembers)
	family.Get("/activity", h.GetFamilyActivity)
	family.Post("/invite-code", middleware.RequireRoles(models.RoleSupervisor), h.RegenerateInviteCode)

	tasks := app.Group("/tasks", protected)
	tasks.Get("/", h.GetTasks)
	tasks.Get("/my", h.GetMyTasks)
	tasks.Post("/proof", h.SubmitProof)
	tasks.Patch("/status/:id", h.UpdateTaskStatus)
	tasks.Get("/:id", h.GetTask)
	tasks.Post("/", h.CreateTask)
	tasks.Put("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)

	notifications := app.Group("/notifications", protected)
	notifications.Get("/", h.GetNotifications)
	notifications.Put("/:id/read", h.MarkNotificationRead)
	notifications.Post("/read-all", h.MarkAllRead)

	// WebSocket for live family updates
	app.Use("/ws", h.WebSocketUpgrade())
	app.Get("/ws/family", websocket.New(h.HandleWebSocket))
}
