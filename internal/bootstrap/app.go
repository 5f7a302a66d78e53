package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/analysis"
	"invoice-backend/internal/analysis/local"
	"invoice-backend/internal/analysis/textract"
	"invoice-backend/internal/extracts"
	"invoice-backend/internal/invoices"
	"invoice-backend/internal/pipeline"
	"invoice-backend/internal/queue"
	"invoice-backend/internal/services/health"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/server"
	"invoice-backend/internal/shared/storage/db"
	"invoice-backend/internal/shared/storage/object"
	localstore "invoice-backend/internal/shared/storage/object/local"
	s3store "invoice-backend/internal/shared/storage/object/s3"
	"invoice-backend/internal/users"
	"invoice-backend/internal/workerproc"
)

// memoryVisibility is how long an in-memory notification stays hidden after
// a receive before it is redelivered.
const memoryVisibility = 30 * time.Second

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Queue      queue.Queue
	Engine     analysis.Client
	Pipeline   *pipeline.Pipeline
	Dispatcher *pipeline.Dispatcher
	Consumer   *workerproc.Consumer

	InvoicesRepo    invoices.Repo
	ExtractsRepo    extracts.Repo
	UsersRepo       users.Repo
	InvoicesService *invoices.Service
	ExtractsService *extracts.Service
	UsersService    *users.Service
	Health          *health.Service

	InvoicesHandler *invoices.Handler
	ExtractsHandler *extracts.Handler
	UsersHandler    *users.Handler
}

// Build prepares every dependency and the router. dbOpts sizes the
// connection pool for the calling process.
func Build(ctx context.Context, cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.AnalysisProvider) == "" {
		cfg.AnalysisProvider = "local"
	}

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifications, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine, err := buildEngine(ctx, cfg, store, notifications)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  notifications,
		Engine: engine,
		Health: health.NewService(sqlDB),
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Health:         app.Health,
		InvoiceHandler: app.InvoicesHandler,
		ExtractHandler: app.ExtractsHandler,
		UserHandler:    app.UsersHandler,
	})

	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:      cfg.AWSRegion,
			Bucket:      cfg.S3Bucket,
			Prefix:      cfg.S3Prefix,
			KMSKeyID:    cfg.SSEKMSKeyID,
			EndpointURL: cfg.AWSEndpointURL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Queue, error) {
	if strings.TrimSpace(cfg.TextractQueueURL) == "" {
		if cfg.AnalysisProvider == "textract" {
			return nil, fmt.Errorf("ANALYSIS_PROVIDER=textract requires TEXTRACT_SQS_QUEUE_URL")
		}
		return queue.NewMemoryQueue(memoryVisibility), nil
	}
	return queue.NewSQSClient(ctx, queue.SQSOptions{
		QueueURL:    cfg.TextractQueueURL,
		Region:      cfg.AWSRegion,
		EndpointURL: cfg.AWSEndpointURL,
	})
}

func buildEngine(ctx context.Context, cfg config.Config, store object.ObjectStore, notifications queue.Sender) (analysis.Client, error) {
	switch cfg.AnalysisProvider {
	case "textract":
		if cfg.ObjectStoreType != "s3" {
			return nil, fmt.Errorf("ANALYSIS_PROVIDER=textract requires OBJECT_STORE=s3")
		}
		if strings.TrimSpace(cfg.TextractSNSTopicARN) == "" || strings.TrimSpace(cfg.TextractRoleARN) == "" {
			return nil, fmt.Errorf("ANALYSIS_PROVIDER=textract requires TEXTRACT_SNS_TOPIC_ARN and TEXTRACT_ROLE_ARN")
		}
		return textract.New(ctx, textract.Options{
			Region:      cfg.AWSRegion,
			EndpointURL: cfg.AWSEndpointURL,
		})
	default:
		return local.New(store, notifications), nil
	}
}

func buildServices(app *App) {
	var invRepo invoices.Repo
	var extRepo extracts.Repo
	var userRepo users.Repo

	if app.DB != nil {
		invRepo = &invoices.PGRepo{DB: app.DB}
		extRepo = &extracts.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		memInvoices := invoices.NewMemoryRepo()
		memExtracts := extracts.NewMemoryRepo()
		memInvoices.OnDelete = memExtracts.DeleteByInvoiceID
		invRepo = memInvoices
		extRepo = memExtracts
		userRepo = users.NewMemoryRepo()
	}

	cfg := app.Config
	app.Pipeline = pipeline.New(invRepo, extRepo, app.Engine, pipeline.Config{
		Channel: analysis.Channel{
			TopicARN: cfg.TextractSNSTopicARN,
			RoleARN:  cfg.TextractRoleARN,
		},
	})
	app.Dispatcher = pipeline.NewDispatcher(app.Pipeline, cfg.DispatchBuffer)

	app.Consumer = workerproc.NewConsumer(app.Queue, workerproc.Options{
		MaxMessages:  10,
		WaitTime:     time.Duration(cfg.ConsumerWaitSeconds) * time.Second,
		IdleDelay:    cfg.ConsumerIdleDelay,
		ErrorDelay:   cfg.ConsumerErrorDelay,
		PurgeOnStart: cfg.ConsumerPurgeOnStart,
	})
	p := app.Pipeline
	app.Consumer.SetHandler(func(ctx context.Context, n workerproc.Notification) error {
		return p.HandleNotification(ctx, n.JobID, n.Status)
	})

	userSvc := users.NewService(userRepo)
	extractSvc := extracts.NewService(extRepo)
	invoiceSvc := &invoices.Service{
		Store:      app.Store,
		Repo:       invRepo,
		Users:      userSvc,
		Extracts:   extractSvc,
		Jobs:       app.Dispatcher,
		MaxBytes:   cfg.MaxUploadBytes,
		PresignTTL: cfg.PresignTTL,
	}

	app.InvoicesRepo = invRepo
	app.ExtractsRepo = extRepo
	app.UsersRepo = userRepo
	app.InvoicesService = invoiceSvc
	app.ExtractsService = extractSvc
	app.UsersService = userSvc
	app.InvoicesHandler = invoices.NewHandler(invoiceSvc)
	app.ExtractsHandler = extracts.NewHandler(extractSvc)
	app.UsersHandler = users.NewHandler(userSvc)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "local":
		return true
	default:
		return false
	}
}
