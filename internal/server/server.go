// Package server contains the HTTP handlers for the feed API.
package server

import (
	"context"
	"fmt"
	"time"

	"socialapp/internal/cache"
	"socialapp/internal/config"
	"socialapp/internal/database"
	"socialapp/internal/middleware"
	"socialapp/internal/repository"
	"socialapp/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultAllowedOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// Server holds all dependencies and provides handlers
type Server struct {
	config           *config.Config
	db               *gorm.DB
	redis            *redis.Client
	app              *fiber.App
	promMiddleware   *fiberprometheus.FiberPrometheus
	shutdownCtx      context.Context
	shutdownFn       context.CancelFunc
	postService      *service.PostService
	commentService   *service.CommentService
	likeService      *service.LikeService
	feedService      *service.FeedService
	reconcileService *service.ReconcileService
}

// NewServer connects to the database and Redis and wires every service.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps wires the server around an existing database handle and
// optional Redis client.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}

	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	userRepo := repository.NewUserRepository(db)
	tx := repository.NewTransactor(db)

	shutdownCtx, shutdownFn := context.WithCancel(context.Background())

	return &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   middleware.InitMetrics("socialapp-api"),
		shutdownCtx:      shutdownCtx,
		shutdownFn:       shutdownFn,
		postService:      service.NewPostService(postRepo, tx),
		commentService:   service.NewCommentService(commentRepo, postRepo, tx),
		likeService:      service.NewLikeService(tx),
		feedService:      service.NewFeedService(postRepo, commentRepo, userRepo, cfg.FeedPreviewSize),
		reconcileService: service.NewReconcileService(postRepo, tx),
	}, nil
}

// SetupMiddleware registers the global middleware chain.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultAllowedOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes registers every API route. Static segments are registered
// before the matching /:id routes.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	auth := middleware.AuthRequired(s.config.JWTSecret)
	api := app.Group("/api")

	posts := api.Group("/posts")
	posts.Get("/", s.ListFeed)
	posts.Post("/", auth, s.CreatePost)
	posts.Get("/me", auth, s.GetMyPosts)
	posts.Get("/:id/comments", s.ListComments)
	posts.Post("/:id/comments", auth, s.CreateComment)
	posts.Post("/:id/like", auth, s.TogglePostLike)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", auth, s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/:id/replies", s.ListReplies)
	comments.Post("/:id/replies", auth, s.CreateReply)
	comments.Post("/:id/like", auth, s.ToggleCommentLike)
	comments.Delete("/:id", auth, s.DeleteComment)

	users := api.Group("/users")
	users.Get("/:id/posts", s.GetUserPosts)
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "socialapp-api",
		ErrorHandler: errorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start serves HTTP on the configured port and, when enabled, runs the
// periodic counter reconciliation until Shutdown.
func (s *Server) Start() error {
	app := s.App()

	if s.config.ReconcileIntervalMinutes > 0 {
		interval := time.Duration(s.config.ReconcileIntervalMinutes) * time.Minute
		go s.reconcileService.Run(s.shutdownCtx, interval)
		middleware.Logger.Info("Counter reconciliation enabled", "interval", interval.String())
	}

	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops background work, drains HTTP connections and closes the
// database and Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Warn("Failed to close redis", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}
