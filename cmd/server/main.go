// The main file of Dropzone.

package main

import (
	"Dropzone/internal/clipboard"
	"Dropzone/internal/config"
	"Dropzone/internal/files"
	"Dropzone/internal/metrics"
	"Dropzone/internal/sse"
	"Dropzone/internal/storage"
	"Dropzone/pkg/cleanup"
	"Dropzone/pkg/db"
	"Dropzone/pkg/globalcontext"
	"Dropzone/pkg/log"
	"Dropzone/pkg/middlewares"
	"Dropzone/pkg/validation"
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tusd "github.com/tus/tusd/pkg/handler"
)

// Env file loaded on start unless CONFIG_FILE says otherwise.
const defaultConfigFile = "config/dev.env"

func main() {
	configFile := defaultConfigFile
	if path, ok := os.LookupEnv("CONFIG_FILE"); ok {
		configFile = path
	}
	if err := config.LoadEnvFile(configFile); err != nil {
		log.New("", "").Fatal().Err(err).Msg("Couldn't load env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.New("", "").Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := log.New(cfg.Version, cfg.Env)
	logger.Info().Msgf("Welcome to Dropzone: v%s", cfg.Version)
	logger.Info().Msgf("Dropzone Environment: %s", cfg.Env)

	// This is the preferred mode used by gin server in DEV environment.
	if cfg.Env == "DEV" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Registering custom validations for govalidator
	validation.RegisterCustomValidations()

	// Root context of every background worker, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Db client instance, a PING request checks the connection status
	dbConn := db.NewDbConnection(db.Options{
		Addr:     cfg.RedisAddress(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := dbConn.CheckDbConnection(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("Redis client couldn't PING the redis-server.")
	}

	clipRepo := clipboard.NewRepository(dbConn)
	if err := clipRepo.InitClipboard(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("Couldn't initialize the clipboard")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Storage backend, resumable uploads only work on disk
	var store storage.Storage
	var disk *storage.Disk
	switch cfg.StorageBackend {
	case config.StorageMinio:
		store, err = storage.NewMinio(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)
	default:
		disk, err = storage.NewDisk(cfg.UploadPath, logger)
		store = disk
	}
	if err != nil {
		logger.Fatal().Err(err).Msgf("Couldn't set up %s storage", cfg.StorageBackend)
	}
	logger.Info().Msgf("Using %s storage", cfg.StorageBackend)

	// Event bus shared by every producer and subscription endpoint
	bus := sse.NewService(logger, m)

	filesRepo := files.NewRepository(dbConn)
	filesService := files.NewService(filesRepo, store, bus, m, files.Options{
		TTL:           cfg.FileTTL,
		MaxUploadSize: cfg.MaxUploadSize,
	}, logger)
	clipService := clipboard.NewService(clipRepo, bus, logger)

	sweeper := files.NewSweeper(filesRepo, store, bus, m, files.SweeperOptions{
		Interval:     cfg.SweepInterval,
		SweepOnStart: cfg.SweepOnStart,
	}, logger)
	sweeper.Start(ctx)

	var tusHandler *tusd.UnroutedHandler
	if disk != nil {
		tusHandler, err = storage.GetTusdStorageHandler(ctx, disk, cfg.MaxUploadSize, cfg.FileTTL, filesService, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Couldn't create the tusd handler")
		}
	}

	// Initializing the gin server.
	server := gin.New()

	// Forcing gin to use custom Logger instead of the default one.
	server.Use(log.LoggerGinExtension(logger))
	server.Use(gin.Recovery())
	server.Use(globalcontext.UniqueIDMiddleware(logger))
	server.Use(middlewares.CorrelationMiddleware())
	server.Use(middlewares.CORSMiddleware(cfg.CORSOrigin))

	// Routes all of the REST API groups and paths.
	Router(server, routes{
		staticDir: cfg.StaticDir,
		db:        dbConn,
		bus:       bus,
		files:     filesService,
		clipboard: clipService,
		tus:       tusHandler,
		gatherer:  registry,
		logger:    logger,
	})

	// Running the server with defined addr and port.
	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: server,
	}

	// ListenAndServe is a blocking operation, putting it a goroutine
	go func() {
		logger.Info().Msgf("Dropzone service running at: %s", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Error in ListenAndServe()")
		}
	}()

	// Graceful shutdown of Dropzone server triggered due to system interruptions.
	// Order matters, the sweeper must be stopped before redis goes away and
	// open event streams must end before the http server can finish.
	wait := cleanup.GracefulShutdown(context.Background(), logger, cfg.ShutdownTimeout, []cleanup.Step{
		{Name: "Sweeper", Op: sweeper.Stop},
		{Name: "Event bus", Op: func(ctx context.Context) error {
			bus.Close()
			return nil
		}},
		{Name: "Gin", Op: srv.Shutdown},
		{Name: "Background workers", Op: func(ctx context.Context) error {
			cancel()
			return nil
		}},
		{Name: "Redis-server", Op: dbConn.CloseDbConnection},
	})
	<-wait
}
