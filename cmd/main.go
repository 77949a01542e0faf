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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/halcyonlab/usergate/config"
	"github.com/halcyonlab/usergate/internal/container"
	"github.com/halcyonlab/usergate/internal/hooks"
	"github.com/halcyonlab/usergate/internal/interface/middleware"
	"github.com/halcyonlab/usergate/internal/notify"
	"github.com/halcyonlab/usergate/internal/router"
	"github.com/halcyonlab/usergate/internal/search"
	"github.com/halcyonlab/usergate/internal/session"
	"github.com/halcyonlab/usergate/internal/store"
	"github.com/halcyonlab/usergate/internal/store/document"
	"github.com/halcyonlab/usergate/internal/store/relational"
	"github.com/halcyonlab/usergate/pkg/helpers"
	"github.com/halcyonlab/usergate/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Store registry with both adapter families registered. The active one is
	// chosen by config or the STORE_ADAPTER environment variable.
	stores := store.NewRegistry(logger)
	stores.Register("document", document.New)
	stores.Register("relational", relational.New)

	opts := store.Options{
		Adapter:     cfg.StoreAdapter,
		Host:        cfg.StoreHost,
		Port:        cfg.StorePort,
		User:        cfg.StoreUser,
		Pass:        cfg.StorePass,
		Engine:      cfg.StoreEngine,
		DBName:      cfg.StoreDBName,
		StoragePath: cfg.StorePath,
		Debug:       cfg.StoreDebug,
		ExitOnFail:  cfg.StoreExitOnFail,
	}
	if _, err := stores.Open(ctx, "", opts); err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer func() { _ = stores.Close(context.Background()) }()

	// Redis (sessions, rate limiting)
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	sessions := session.NewRedisStore(rdb)

	jwtManager := helpers.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	// Hook pipeline plus the built-in consumers that ride it.
	hookRegistry := hooks.NewRegistry()
	binder := hooks.NewBinder(hookRegistry, cfg.Routes.Names)

	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		esClient, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			log.Fatalf("elasticsearch client failed: %v", err)
		}
		container.SetES(esClient)
		indexer := search.NewIndexer(esClient, cfg.ESUsersIndex, logger)
		if err := indexer.Bind(binder); err != nil {
			log.Fatalf("search indexer bind failed: %v", err)
		}
	}

	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			log.Fatalf("rabbitmq connect failed: %v", err)
		}
		defer pub.Close()
		container.SetRabbitPub(pub)
		notifier := notify.NewNotifier(pub, cfg.AppName, logger)
		if err := notifier.Bind(binder); err != nil {
			log.Fatalf("notifier bind failed: %v", err)
		}
	}

	// Provide singletons to the container for router auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)
	container.SetStores(stores)
	container.SetHooks(hookRegistry)
	container.SetSessions(sessions)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}
