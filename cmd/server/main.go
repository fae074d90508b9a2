package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"maintdesk/internal/auth"
	"maintdesk/internal/client"
	"maintdesk/internal/config"
	"maintdesk/internal/docsource"
	"maintdesk/internal/forms"
	"maintdesk/internal/gateway"
	"maintdesk/internal/nav"
	"maintdesk/internal/permission"
	"maintdesk/internal/schema"
	"maintdesk/internal/tables"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, upstream: %s, documents: %s)",
		cfg.Server.Port, cfg.Upstream.BaseURL, cfg.Documents.Driver)

	// 2. Open the document sources
	var pool *pgxpool.Pool
	if cfg.Documents.IsPostgres() {
		pool, err = docsource.Connect(ctx, cfg.Documents.DSN)
		if err != nil {
			log.Fatalf("Failed to connect document store: %v", err)
		}
		defer pool.Close()
		log.Println("Document store connected")
	}
	schemaSrc := documentSource(cfg, pool, cfg.Documents.SchemaFile)
	permSrc := documentSource(cfg, pool, cfg.Documents.PermissionsFile)
	navSrc := documentSource(cfg, pool, cfg.Documents.NavigationFile)

	ttl := cfg.Documents.ReloadInterval()

	// 3. Load the permission model first: schema resource tags resolve
	// against it.
	perms := permission.NewService(permSrc, ttl)
	if err := perms.Initialize(ctx); err != nil {
		log.Fatalf("Failed to load permission document: %v", err)
	}

	// 4. Load the schema registry
	registry := schema.NewRegistry(schemaSrc, ttl, perms)
	if err := registry.Initialize(ctx); err != nil {
		log.Fatalf("Failed to load schema document: %v", err)
	}

	// 5. Entity client and descriptor factories
	entities := client.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout(), registry)
	refLoader := gateway.NewReferenceLoader(entities)
	formFactory := forms.NewFactory(registry, refLoader)
	resolver := tables.NewDisplayResolver(entities)
	tableFactory := tables.NewFactory(registry, resolver)

	// 6. Navigation composer
	composer := nav.NewComposer(navSrc, ttl, registry, perms)
	if err := composer.Initialize(ctx); err != nil {
		log.Fatalf("Failed to load navigation document: %v", err)
	}

	// 7. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: gateway.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "schema": registry.Ready(), "permissions": perms.Ready()})
	})

	// 9. Register routes behind auth
	authMW := auth.Middleware(cfg.JWTSecret)
	adminMW := auth.RequireRole("admin")
	handler := gateway.NewHandler(registry, perms, formFactory, tableFactory, composer, entities)
	gateway.RegisterRoutes(app, handler, authMW, adminMW)

	// 10. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func documentSource(cfg *config.Config, pool *pgxpool.Pool, name string) docsource.Source {
	if cfg.Documents.IsPostgres() {
		return docsource.NewPGSource(pool, name)
	}
	return docsource.NewFileSource(filepath.Join(cfg.Documents.Path, name))
}
