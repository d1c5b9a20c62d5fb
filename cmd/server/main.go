package main

import (
	"apphasia/exercise-engine/internal/api"
	"apphasia/exercise-engine/internal/config"
	"apphasia/exercise-engine/internal/generation"
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/repository"
	"apphasia/exercise-engine/internal/repository/memory"
	"apphasia/exercise-engine/internal/repository/mongo"
	"apphasia/exercise-engine/internal/service"
	"apphasia/exercise-engine/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

type repositories struct {
	exercises   repository.ExerciseRepository
	assignments repository.AssignmentRepository
	patients    repository.PatientRepository
	counters    repository.CounterRepository
	close       func()
}

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	appLog, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("starting exercise engine", "address", cfg.Server.Address, "database_driver", cfg.Database.Driver)

	// --- Persistence ---
	repos, err := openRepositories(cfg.Database, appLog)
	if err != nil {
		appLog.Fatal("could not open repositories", "error", err)
	}
	defer repos.close()

	// --- Collaborators ---
	fileStorage, err := storage.NewS3Storage(cfg.S3, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize S3 storage", "error", err)
	}
	generator, err := newGenerator(cfg.Generation, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize generation client", "error", err)
	}

	// --- Services ---
	priorities, err := service.NewPrioritySource(cfg.Assignment.PriorityMode, repos.assignments, repos.counters)
	if err != nil {
		appLog.Fatal("invalid assignment configuration", "error", err)
	}
	policy, err := service.ParsePriorityPolicy(cfg.Assignment.PriorityPolicy)
	if err != nil {
		appLog.Fatal("invalid assignment configuration", "error", err)
	}
	appLog.Info("assignment settings", "priority_mode", cfg.Assignment.PriorityMode, "priority_policy", policy)

	assignmentService := service.NewAssignmentService(repos.exercises, repos.assignments, priorities, policy, nil, appLog)
	selectionService := service.NewSelectionService(repos.exercises, repos.assignments, assignmentService, nil, appLog)
	exerciseService := service.NewExerciseService(repos.exercises, repos.patients, assignmentService, generator, fileStorage, cfg.S3.PresignExpiry, appLog)
	patientService := service.NewPatientService(repos.patients, generator, appLog)

	// --- HTTP ---
	if strings.EqualFold(cfg.Server.LogMode, "prod") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, appLog, selectionService, assignmentService, exerciseService, patientService)

	// Generation runs several model calls in a row, so writes get the generation timeout on top.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10*time.Second + cfg.Generation.Timeout*5,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("ListenAndServe error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLog.Error("server forced to shutdown", "error", err)
	}
	appLog.Info("server exiting")
}

func openRepositories(cfg config.DatabaseConfig, appLog *logger.Logger) (*repositories, error) {
	switch cfg.Driver {
	case "memory":
		appLog.Warn("using in-memory repositories, data is lost on exit")
		return &repositories{
			exercises:   memory.NewExerciseRepository(),
			assignments: memory.NewAssignmentRepository(),
			patients:    memory.NewPatientRepository(),
			counters:    memory.NewCounterRepository(),
			close:       func() {},
		}, nil
	case "", "mongo":
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	dbClient, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	appDB := dbClient.Database(cfg.Name)
	appLog.Info("database connection established", "database", cfg.Name)

	go func() { // Run index creation in the background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			appLog.Error("index creation failed", "error", err)
			return
		}
		appLog.Info("index creation completed")
	}()

	return &repositories{
		exercises:   mongo.NewMongoExerciseRepository(appDB),
		assignments: mongo.NewMongoAssignmentRepository(appDB),
		patients:    mongo.NewMongoPatientRepository(appDB),
		counters:    mongo.NewMongoCounterRepository(appDB),
		close: func() {
			if err := mongo.DisconnectDB(dbClient); err != nil {
				appLog.Error("failed to disconnect MongoDB", "error", err)
			}
		},
	}, nil
}

func newGenerator(cfg config.GenerationConfig, appLog *logger.Logger) (generation.Client, error) {
	switch cfg.Provider {
	case "mock":
		appLog.Warn("using canned exercise generator")
		return generation.NewMock(), nil
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("generation.api_key is required for the openai provider")
		}
		return generation.NewOpenAI(generation.OpenAIConfig{
			Endpoint:    cfg.Endpoint,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			APIVersion:  cfg.APIVersion,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, nil, appLog), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
