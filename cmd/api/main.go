package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/gigspace-id/gigspace_be/internal/config"
	"github.com/gigspace-id/gigspace_be/internal/db"
	"github.com/gigspace-id/gigspace_be/internal/handlers"
	"github.com/gigspace-id/gigspace_be/internal/middleware"
	"github.com/gigspace-id/gigspace_be/internal/models"
	"github.com/gigspace-id/gigspace_be/internal/realtime"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	if err := gdb.AutoMigrate(&models.User{}, &models.Gig{}, &models.Bid{}); err != nil {
		log.Fatal(err)
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}

	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	gigH := handlers.NewGigHandler(gdb)
	bidH := handlers.NewBidHandler(gdb, hub, rdb)
	notifH := handlers.NewNotificationHandler(hub)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Server is running",
		})
	})

	api.Get("/gigs", gigH.ListGigs)

	// protected (JWT via cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", func(c *fiber.Ctx) error {
		uid := c.Locals("userId")

		var user models.User
		if err := gdb.First(&user, "id = ?", uid).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
			},
		})
	})

	// literal gig routes before the /gigs/:id param route
	protected.Get("/gigs/my/jobs", gigH.GetMyGigs)
	api.Get("/gigs/:id", gigH.GetGig)
	protected.Post("/gigs", gigH.CreateGig)
	protected.Put("/gigs/:id", gigH.UpdateGig)
	protected.Delete("/gigs/:id", gigH.DeleteGig)

	protected.Post("/bids", bidH.CreateBid)
	protected.Get("/bids/my/bids", bidH.GetMyBids)
	protected.Get("/bids/:gigId", bidH.GetBidsForGig)
	protected.Patch("/bids/:bidId/hire", bidH.HireBid)

	// WebSocket endpoint (auth via query param, same identity space as JWT)
	app.Get("/ws/notifications", websocket.New(notifH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
