package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fajar-dev/be-sele-sele/internal/api"
	"github.com/fajar-dev/be-sele-sele/internal/content"
	"github.com/fajar-dev/be-sele-sele/internal/events"
	"github.com/fajar-dev/be-sele-sele/internal/export"
	"github.com/fajar-dev/be-sele-sele/internal/oauth"
	"github.com/fajar-dev/be-sele-sele/internal/repository"
	"github.com/fajar-dev/be-sele-sele/internal/service"
	"github.com/fajar-dev/be-sele-sele/internal/tracing"
	_ "github.com/fajar-dev/be-sele-sele/migrations"
)

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		fmt.Println("No .env.dev file found, reading from environment variables provided by Docker")
	}

	api.SetupGlobalHandler("be-sele-sele")

	shutdownTracer, err := tracing.InitTracerProvider("be-sele-sele")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations()
		return
	}

	db := connectDB()
	defer db.Close()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	eventPublisher, err := events.NewNatsPublisher(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	log.Println("Successfully connected to NATS.")

	contentStore, err := content.NewS3Store()
	if err != nil {
		log.Fatalf("Failed to configure content store: %v", err)
	}

	userRepo := repository.NewPostgresUserRepository(db)
	tokenRepo := repository.NewPostgresTokenRepository(db)
	pageRepo := repository.NewPostgresPageRepository(db)

	authService := service.NewAuthService(userRepo, tokenRepo, service.AuthConfig{
		JWTSecret:  []byte(mustEnv("JWT_SECRET")),
		AccessTTL:  service.DefaultAccessTTL,
		RefreshTTL: service.DefaultRefreshTTL,
	})
	pageService := service.NewPageService(pageRepo, contentStore, eventPublisher)

	_, err = events.NewContentSubscriber(natsURL, pageService)
	if err != nil {
		log.Printf("WARNING: Failed to start content subscriber: %v", err)
		// Continue running even if subscriber fails, NATS may not be ready
	}

	verifier := oauth.NewGoogleVerifier(mustEnv("GOOGLE_CLIENT_ID"), mustEnv("GOOGLE_CLIENT_SECRET"))

	authHandler := api.NewAuthHandler(authService, verifier)
	pageHandler := api.NewPageHandler(pageService, export.NewRenderer())

	app := fiber.New()
	app.Use(cors.New())
	app.Use(otelfiber.Middleware())
	app.Use(api.PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "be-sele-sele"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", api.AuthMiddleware(authService), authHandler.Me)

	pageRoutes := v1.Group("/pages")
	pageRoutes.Use(api.AuthMiddleware(authService))
	pageRoutes.Get("/", pageHandler.GetPages)
	pageRoutes.Post("/", pageHandler.CreatePage)
	pageRoutes.Get("/:id", pageHandler.GetPage)
	pageRoutes.Put("/:id", pageHandler.UpdatePage)
	pageRoutes.Delete("/:id", pageHandler.DeletePage)
	pageRoutes.Get("/:id/member", pageHandler.GetMembers)
	pageRoutes.Put("/:id/member", pageHandler.AddMember)
	pageRoutes.Delete("/:id/member", pageHandler.RemoveMember)
	pageRoutes.Get("/:id/content", pageHandler.GetContent)
	pageRoutes.Post("/:id/content", pageHandler.UpdateContent)
	pageRoutes.Get("/:id/md", pageHandler.DownloadMarkdown)
	pageRoutes.Get("/:id/html", pageHandler.DownloadHTML)
	pageRoutes.Get("/:id/permission", pageHandler.GetPermission)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("Listening be-sele-sele on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s environment variable is not set", key)
	}
	return value
}

func connectDB() *sqlx.DB {
	db, err := sqlx.Connect("pgx", databaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Successfully connected to the database.")
	return db
}

func databaseURL() string {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

func handleMigrations() {
	fmt.Println("Running database migrations...")

	db, err := sql.Open("pgx", databaseURL())
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully!")
}
