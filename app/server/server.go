package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docrag/app/agent"
	"docrag/app/api"
	"docrag/ingest"
	"docrag/model"
	"docrag/retriever"
	"docrag/store"
	"docrag/types"
)

type Server struct {
	listenAddr string
	logger     *slog.Logger
	app        *fiber.App
	store      *store.PostgresStore
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("error to shutdown server", "error", err.Error())
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	cfg := types.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration: ", err)
		return
	}

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		log.Fatal("error to connect to Postgres database: ", err)
		return
	}
	s.store = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables: ", err)
		return
	}

	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		log.Fatal("error to create upload directory: ", err)
		return
	}

	embedder := model.NewEmbedderFromEnv(s.logger)
	generator := model.NewGeneratorFromEnv(s.logger)
	retr := retriever.New(pool, embedder, cfg)
	ing := ingest.NewService(pool, embedder, ingest.NewExtractorFromEnv(), cfg)

	var (
		app             = fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler, BodyLimit: int(cfg.MaxFileSize)})
		checkHandler    = api.NewCheckHandler()
		queryHandler    = api.NewQueryHandler(agent.New(pool, retr, generator), pool)
		documentHandler = api.NewDocumentHandler(pool, ing, cfg)
		configHandler   = api.NewConfigHandler(cfg)
		check           = app.Group("/check")
		apiv1           = app.Group("/api/v1")
	)
	s.app = app

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Get("/history", queryHandler.HandleHistory)
	apiv1.Post("/documents", documentHandler.HandleUpload)
	apiv1.Get("/documents", documentHandler.HandleList)
	apiv1.Get("/documents/:id", documentHandler.HandleGet)
	apiv1.Get("/documents/:id/chunks", documentHandler.HandleChunks)
	apiv1.Delete("/documents/:id", documentHandler.HandleDelete)
	apiv1.Get("/config", configHandler.HandleConfig)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
