package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Skotchmaster/owner_shop/internal/config"
	pkgdb "github.com/Skotchmaster/owner_shop/internal/db"
	"github.com/Skotchmaster/owner_shop/internal/events"
	"github.com/Skotchmaster/owner_shop/internal/httpserver"
	"github.com/Skotchmaster/owner_shop/internal/logging"
	authmw "github.com/Skotchmaster/owner_shop/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/owner_shop/internal/middleware/logging"
	"github.com/Skotchmaster/owner_shop/internal/repo"
	"github.com/Skotchmaster/owner_shop/internal/search"
	"github.com/Skotchmaster/owner_shop/internal/service"
	"github.com/Skotchmaster/owner_shop/internal/storage"
	"github.com/Skotchmaster/owner_shop/internal/tokens"
	"github.com/Skotchmaster/owner_shop/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger = logger.With(zap.String("service", cfg.ServiceName))
	zap.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, closeStore, err := openRepository(ctx, cfg)
	if err != nil {
		cancel()
		logger.Fatal("repository open failed", zap.Error(err))
	}

	pictures, err := openPictureStore(ctx, cfg)
	if err != nil {
		cancel()
		logger.Fatal("picture store open failed", zap.Error(err))
	}

	indexer, searcher := openSearch(ctx, cfg, store, logger)
	cancel()

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers)
	} else {
		logger.Info("kafka brokers not set, events disabled")
	}

	tm := tokens.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	v := validation.MustNew()

	ownerHandler := &httpserver.OwnerHTTP{Svc: &service.OwnerService{
		Repo:      store,
		Tokens:    tm,
		Pictures:  pictures,
		Events:    publisher,
		Validator: v,
		Topic:     cfg.OwnerTopic,
		Role:      cfg.OwnerRole,
	}}
	productHandler := &httpserver.ProductHTTP{Svc: &service.ProductService{
		Repo:      store,
		Index:     indexer,
		Searcher:  searcher,
		Events:    publisher,
		Validator: v,
		Topic:     cfg.ProductTopic,
	}}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OwnerHandler:   ownerHandler,
		ProductHandler: productHandler,
		Authorizer:     authmw.NewAuthorizer(tm),
		OwnerRole:      cfg.OwnerRole,
		ProductRole:    cfg.ProductRole,
		Ready:          store.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka close failed", zap.Error(err))
	}
	closeStore(shutdownCtx)

	logger.Info("stopped")
}

func openRepository(ctx context.Context, cfg config.Config) (repo.Repository, func(context.Context), error) {
	if cfg.DBDriver == "mongo" {
		client, err := pkgdb.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		r, err := repo.NewMongoRepo(ctx, client, cfg.MongoDB)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return r, func(ctx context.Context) { disconnectMongo(ctx, client) }, nil
	}

	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pkgdb.Migrate(db); err != nil {
		return nil, nil, err
	}
	return repo.NewGormRepo(db), func(context.Context) { closeSQL(db) }, nil
}

func disconnectMongo(ctx context.Context, client *mongo.Client) {
	_ = client.Disconnect(ctx)
}

func closeSQL(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openPictureStore(ctx context.Context, cfg config.Config) (storage.PictureStore, error) {
	if cfg.StorageDriver == "minio" {
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return storage.NewLocalStore(cfg.UploadsDir)
}

// openSearch falls back to database search when Elasticsearch is not
// configured or not reachable at startup.
func openSearch(ctx context.Context, cfg config.Config, store repo.Repository, logger *zap.Logger) (search.Indexer, search.Searcher) {
	fallback := search.RepoSearcher{Repo: store}
	if cfg.ESURL == "" {
		return search.NoopIndexer{}, fallback
	}

	client, err := search.NewClient(search.ESConfig{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
	if err != nil {
		logger.Warn("elasticsearch unavailable, using database search", zap.Error(err))
		return search.NoopIndexer{}, fallback
	}
	idx := &search.ESIndex{Client: client, Index: cfg.ESIndex}
	if err := idx.EnsureIndex(ctx); err != nil {
		logger.Warn("elasticsearch index setup failed, using database search", zap.Error(err))
		return search.NoopIndexer{}, fallback
	}
	return idx, idx
}
