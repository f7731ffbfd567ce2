package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/labstack/echo/v4"
	sloggorm "github.com/orandin/slog-gorm"
	"github.com/sethvargo/go-retry"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/hackhub/submissions-api/cmd/server/internal/grading"
	"github.com/hackhub/submissions-api/cmd/server/internal/intake"
	servermiddleware "github.com/hackhub/submissions-api/cmd/server/internal/middleware"
	"github.com/hackhub/submissions-api/cmd/server/internal/migrations"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/routes"
	routesv1 "github.com/hackhub/submissions-api/cmd/server/internal/routes/v1"
	"github.com/hackhub/submissions-api/cmd/server/internal/scores"
	"github.com/hackhub/submissions-api/cmd/server/internal/taskrunner"
	"github.com/hackhub/submissions-api/internal/config"
	"github.com/hackhub/submissions-api/internal/fetch"
	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/otel"
	"github.com/hackhub/submissions-api/internal/queue"
	"github.com/hackhub/submissions-api/internal/upload"
)

const (
	name        string = "github.com/hackhub/submissions-api/cmd/server"
	serviceName string = "submissions-api"
)

var tracer = otellib.Tracer(name)

type server struct {
	router        *echo.Echo
	config        *config.Config
	db            *gorm.DB
	taskRunner    *taskrunner.Client
	scoresQueue   queue.Queuer
	otelShutdown  func(context.Context) error
	monitorCancel func()
}

func uploadBackoff() retry.Backoff {
	b := retry.NewFibonacci(time.Millisecond * 25)
	b = retry.WithMaxRetries(3, b)
	return b
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.Setup(ctx, otel.Options{
		ServiceName: serviceName,
		Environment: string(cfg.Environment),
		UseOTLP:     cfg.Logging.UseOTLP,
		SampleRatio: cfg.Logging.TraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				time.Second*time.Duration(cfg.GracefulShutdownSecs),
			)
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.SetLevel(cfg.Logging.App.Level)
	gormOptions := []sloggorm.Option{
		sloggorm.WithHandler(logger.Component("gorm").Handler()),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	}
	if cfg.Logging.Gorm.TraceQueries {
		gormOptions = append(gormOptions, sloggorm.WithTraceAll())
	}
	sg := sloggorm.New(gormOptions...)

	span.AddEvent("initialized gorm logging")

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sg, TranslateError: true},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire underlying database connection")
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	// Configure db connection pool
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	span.AddEvent("initialized database connection")

	err = db.Use(gormtracing.NewPlugin())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add otel plugin to gorm")
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	span.AddEvent("added the otel plugin to gorm")

	err = migrations.Up(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to preform database migrations")
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}

	span.AddEvent("migrated database to latest version")

	if err = models.LoadAPIKeysFromConfig(ctx, db, cfg.Accounts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load API keys from config")
		return nil, fmt.Errorf("failed to load API keys from config: %w", err)
	}

	span.AddEvent("loaded api keys from config")

	submissionUploader, azureClient, err := newSubmissionUploader(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct submission uploader")
		return nil, fmt.Errorf("failed to construct submission uploader: %w", err)
	}

	span.AddEvent("initialized submission storage")

	var archiver upload.Uploader
	if cfg.Archive != nil && cfg.Archive.Enabled {
		minioArchiver, err := upload.NewMinioUploader(minioOptions(cfg.Archive.S3))
		if err == nil {
			err = minioArchiver.EnsureBucket(ctx)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct archiver")
			return nil, fmt.Errorf("failed to construct archiver: %w", err)
		}
		archiver = upload.NewRetryUploaderBackoff(minioArchiver, uploadBackoff)
		span.AddEvent("initialized archiver")
	} else {
		logger.Logger.Warn("prediction files will not be archived")
	}

	solutionPath, err := provisionSolution(ctx, cfg, azureClient)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to provision ground truth")
		return nil, fmt.Errorf("failed to provision ground truth: %w", err)
	}

	span.AddEvent("provisioned ground truth")

	var reviews queue.Queuer
	if cfg.Queues != nil {
		reviews, err = queue.NewAzureQueuer(
			cfg.Queues.AccountName,
			cfg.Queues.AccountKey,
			cfg.Queues.URL,
			cfg.Queues.Reviews,
			queue.AzureOptions{MessageTTL: 72 * time.Hour},
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct review queue")
			return nil, fmt.Errorf("failed to construct review queue: %w", err)
		}

		server.scoresQueue, err = queue.NewAzureQueuer(
			cfg.Queues.AccountName,
			cfg.Queues.AccountKey,
			cfg.Queues.URL,
			cfg.Queues.Scores,
			queue.DefaultAzureOptions,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct scores queue")
			return nil, fmt.Errorf("failed to construct scores queue: %w", err)
		}

		span.AddEvent("initialized queues")
	} else {
		logger.Logger.Warn("queues are not configured, reviews and grader scores are disabled")
	}

	taskRunnerClient := taskrunner.Create()

	submissionIntake := intake.New(
		db,
		upload.NewRetryUploaderBackoff(submissionUploader, uploadBackoff),
		archiver,
		reviews,
		taskRunnerClient,
		intake.Options{
			Folder:         cfg.Storage.Folder,
			DownloadURLTTL: cfg.Storage.DownloadURLTTL,
			UploadTimeout:  cfg.Storage.UploadTimeout,
			SolutionPath:   solutionPath,
			Column:         cfg.Evaluation.Column,
		},
	)
	v1Handler := routesv1.NewHandler(submissionIntake, scores.NewAggregator(db), cfg)

	middlewareHandler := servermiddleware.Handler{DB: db}
	if cfg.Auth != nil && cfg.Auth.JWTSecret != nil {
		middlewareHandler.JWTSecret = []byte(*cfg.Auth.JWTSecret)
	} else {
		logger.Logger.Warn("no jwt secret configured, bearer tokens are ignored")
	}

	e, err := routes.BuildEcho(logger.Logger, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	v1Handler.AddRoutes(e, &middlewareHandler)

	server.otelShutdown = shutdownOTel
	server.router = e
	server.db = db
	server.taskRunner = taskRunnerClient

	return server, nil
}

func minioOptions(s3 *config.S3Config) upload.MinioOptions {
	return upload.MinioOptions{
		Endpoint:        s3.Endpoint,
		AccessKeyID:     s3.AccessKeyID,
		SecretAccessKey: s3.SecretAccessKey,
		Bucket:          s3.BucketName,
		Secure:          s3.SSLEnabled,
	}
}

// Builds the store for manual submission files. The azure client is returned
// so the ground truth can be fetched from the same account, it is nil for s3.
func newSubmissionUploader(
	ctx context.Context,
	cfg *config.Config,
) (upload.Uploader, *azblob.Client, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendS3:
		uploader, err := upload.NewMinioUploader(minioOptions(cfg.Storage.S3))
		if err != nil {
			return nil, nil, err
		}
		if err = uploader.EnsureBucket(ctx); err != nil {
			return nil, nil, fmt.Errorf("submission bucket is unavailable: %w", err)
		}
		return uploader, nil, nil
	default:
		azureCfg := cfg.Storage.Azure

		azureCred, err := azblob.NewSharedKeyCredential(azureCfg.AccountName, azureCfg.AccountKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize azure credentials: %w", err)
		}

		azureClient, err := azblob.NewClientWithSharedKeyCredential(azureCfg.BlobURL, azureCred, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize azure client: %w", err)
		}

		if azureCfg.Dev {
			if err = setupContainer(ctx, azureClient, azureCfg.Container); err != nil {
				return nil, nil, fmt.Errorf("error setting up container for dev environment: %w", err)
			}
		}

		return upload.NewAzureUploaderFromClient(azureClient, azureCred, azureCfg.Container), azureClient, nil
	}
}

// Returns the local path of the ground-truth file, downloading it first when a
// remote location is configured
func provisionSolution(
	ctx context.Context,
	cfg *config.Config,
	azureClient *azblob.Client,
) (string, error) {
	ctx, span := tracer.Start(ctx, "provisionSolution")
	defer span.End()

	var (
		fetcher  fetch.Fetcher
		location string
	)
	switch {
	case cfg.Evaluation.SolutionURL != nil:
		fetcher = fetch.NewHTTPFetcher(fetch.NewRetryClient(logger.Logger, 3), nil)
		location = *cfg.Evaluation.SolutionURL
	case cfg.Evaluation.SolutionBlob != nil:
		if azureClient == nil {
			err := errors.New("solution_blob requires the azure storage backend")
			span.RecordError(err)
			span.SetStatus(codes.Error, "no azure client for solution blob")
			return "", err
		}
		fetcher = fetch.NewAzureFetcherFromClient(azureClient, cfg.Storage.Azure.Container)
		location = *cfg.Evaluation.SolutionBlob
	default:
		if _, err := os.Stat(cfg.Evaluation.SolutionPath); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ground truth missing")
			return "", fmt.Errorf("ground truth file is not readable: %w", err)
		}
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "using local ground truth")
		return cfg.Evaluation.SolutionPath, nil
	}

	path, err := fetch.ToFile(ctx, fetcher, location, cfg.Uploads.TempDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch ground truth")
		return "", err
	}

	logger.Logger.InfoContext(ctx, "fetched ground truth", "location", location, "path", path)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched ground truth")
	return path, nil
}

func (s *server) Start(ctx context.Context) error {
	if s.scoresQueue != nil {
		monitorCtx, monitorCancel := context.WithCancel(ctx)
		s.monitorCancel = monitorCancel
		go grading.MonitorScoresQueue(monitorCtx, s.db, s.scoresQueue)
	}

	logger.Logger.Info("Starting services...", "address", s.config.ListenAddress)

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(s.config.GracefulShutdownSecs),
	)
	defer cancelTimeout()

	if s.monitorCancel != nil {
		s.monitorCancel()
	}

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	if err := s.taskRunner.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to shutdown taskRunner gracefully: %w", err))
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog()

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(ctx); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}

// Creates the submissions container against azurite, an existing one is kept
func setupContainer(ctx context.Context, azureClient *azblob.Client, container string) error {
	_, err := azureClient.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return err
	}
	return nil
}
