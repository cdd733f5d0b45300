package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/client"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/config"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/driver/chrome"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/encoder"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/handler"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/job"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/middleware"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/render"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/service"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/viewer"
	ws "github.com/resdiihd/puppeteer-glb-renderer/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	// Redis is optional: without it rate limiting is disabled.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			zlog.Warn("redis not available, rate limiting disabled", zap.Error(err))
		}
	}

	uploadService, err := service.NewUploadService(cfg.Render.ModelsDir)
	if err != nil {
		zlog.Fatal("init model storage", zap.Error(err))
	}

	// Optional artifact mirror to S3-compatible storage.
	var artifacts service.ArtifactStore
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(client.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			PublicURL:       cfg.S3.PublicURL,
		})
		if err != nil {
			zlog.Warn("s3 mirror not initialized", zap.Error(err))
		} else {
			artifacts = s3Client
		}
	}

	hub := ws.NewHub(zlog)
	go hub.Run()

	driver := chrome.NewDriver(chrome.Config{
		ViewerBaseURL:  cfg.Server.PublicURL,
		ExecPath:       cfg.Chrome.ExecPath,
		ReadyTimeout:   time.Duration(cfg.Chrome.ReadyTimeoutSec) * time.Second,
		SessionTimeout: time.Duration(cfg.Chrome.SessionTimeoutSec) * time.Second,
		JPEGQuality:    cfg.Chrome.JPEGQuality,
	}, zlog)
	defer driver.Close()

	ffmpeg := encoder.NewFFmpeg(cfg.FFmpeg.Bin, zlog)
	loop := render.NewLoop(ffmpeg, zlog, render.LoopConfig{
		OutputRoot:  cfg.Render.OutputDir,
		TempRoot:    cfg.Render.TempDir,
		ViewSettle:  time.Duration(cfg.Render.ViewSettleMS) * time.Millisecond,
		FrameSettle: time.Duration(cfg.Render.FrameSettleMS) * time.Millisecond,
	})

	store := job.NewStore()
	scheduler := job.NewScheduler(store, zlog, cfg.Render.Concurrency)
	renderService := service.NewRenderService(
		store, scheduler, loop, driver, uploadService, hub, artifacts, zlog, cfg.Render.OutputDir,
	)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	scheduler.Start(schedCtx, renderService.Run)

	validate := validator.New()
	renderHandler := handler.NewRenderHandler(renderService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	viewerPage := viewer.New(func(modelID string) (string, error) {
		path, err := uploadService.ModelPath(modelID)
		if err != nil {
			return "", err
		}
		return "/models/" + filepath.Base(path), nil
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    110 * 1024 * 1024, // model uploads up to 100MB plus form overhead
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"stats":  scheduler.Stats(),
		})
	})

	api := app.Group("/api")
	api.Post("/models", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Model)
	api.Delete("/models/:modelId", uploadHandler.DeleteModel)
	api.Post("/render", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Start)
	api.Get("/render/status/:jobId", renderHandler.Status)
	api.Get("/render/result/:jobId", renderHandler.Result)
	api.Post("/render/cancel/:jobId", renderHandler.Cancel)
	api.Get("/stats", renderHandler.Stats)

	app.Get("/viewer/:modelId", viewerPage.Handler())
	app.Static("/models", cfg.Render.ModelsDir)
	app.Static("/outputs", cfg.Render.OutputDir)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		zlog.Info("shutting down")
		stopScheduler()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Server.Port
	zlog.Info("server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
	scheduler.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
