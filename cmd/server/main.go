package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/config"
	"github.com/gathara/procure-to-pay/internal/document"
	httpserver "github.com/gathara/procure-to-pay/internal/interfaces/http"
	"github.com/gathara/procure-to-pay/internal/notification"
	"github.com/gathara/procure-to-pay/internal/purchaseorder"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/internal/service"
	"github.com/gathara/procure-to-pay/internal/storage"
	"github.com/gathara/procure-to-pay/internal/validation"
	"github.com/gathara/procure-to-pay/internal/workflow"
	"github.com/gathara/procure-to-pay/migrations"
	"github.com/gathara/procure-to-pay/pkg/database"
	"github.com/gathara/procure-to-pay/pkg/utils"
)

// zapHTTPLogger adapts zap to the HTTP server's logger interface.
type zapHTTPLogger struct {
	s *zap.SugaredLogger
}

func (l zapHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l zapHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Procure-to-Pay Workflow System",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(migrations.FS, "."); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	itemRepo := repository.NewRequestItemRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	poRepo := repository.NewPurchaseOrderRepository(db.DB, logger)
	extractionRepo := repository.NewExtractionRepository(db.DB, logger)
	validationRepo := repository.NewValidationRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)

	// Initialize blob storage
	blobStore, err := storage.NewLocalBlobStore(cfg.Storage.BaseDir, cfg.Storage.PublicURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	// Initialize extraction components. A missing API key degrades the
	// pipeline to OCR-only operation rather than failing startup.
	var openaiClient *openai.Client
	if cfg.OpenAI.APIKey != "" {
		openaiClient = openai.NewClient(cfg.OpenAI.APIKey)
	} else {
		logger.Warn("OPENAI_API_KEY not set, document structuring degraded to OCR-only")
	}

	tokenizer := document.NewTokenizer(openaiClient, cfg.OpenAI.VisionModel, logger)
	structurer := document.NewOpenAIStructurer(openaiClient, cfg.OpenAI.Model, logger)
	pipeline := document.NewPipeline(
		db,
		blobStore,
		tokenizer,
		structurer,
		extractionRepo,
		requestRepo,
		itemRepo,
		cfg.OpenAI.Timeout,
		logger,
	)

	// Initialize validation engine and purchase order generator
	validator := validation.NewEngine(structurer, cfg.OpenAI.Timeout, logger)
	generator := purchaseorder.NewGenerator(poRepo, extractionRepo, blobStore, logger)

	// Initialize notifications
	sender := notification.NewHTTPSender(notification.SenderConfig{
		APIKey:    cfg.Email.APIKey,
		APIURL:    cfg.Email.APIURL,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	}, logger)
	dispatcher := notification.NewDispatcher(sender, cfg.Email.QueueSize, logger)
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	dispatcher.Start(notifyCtx)
	notifier := notification.NewNotifier(dispatcher, userRepo, logger)

	// Initialize workflow engine
	engine := workflow.NewEngine(db, requestRepo, approvalRepo, generator, notifier, logger)

	// Initialize request service
	requestService := service.NewRequestService(
		db,
		requestRepo,
		itemRepo,
		approvalRepo,
		poRepo,
		extractionRepo,
		validationRepo,
		userRepo,
		pipeline,
		validator,
		generator,
		logger,
	)

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		FileDir:      blobStore.BaseDir(),
	}, requestService, engine, zapHTTPLogger{logger.Sugar()})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopNotify()
	dispatcher.Stop()

	logger.Info("Server exited successfully")
}
