package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pointgrid/loyalty-core/internal/config"
	"github.com/pointgrid/loyalty-core/internal/handlers"
	"github.com/pointgrid/loyalty-core/internal/queue"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/internal/services"
	"github.com/pointgrid/loyalty-core/internal/session"
	xhttp "github.com/pointgrid/loyalty-core/pkg/http"
	"github.com/pointgrid/loyalty-core/pkg/logger"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"github.com/pointgrid/loyalty-core/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	notifyQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	endUserRepo := repository.NewEndUserRepository(db)
	aliasRepo := repository.NewAliasRepository(db)
	merchantRepo := repository.NewMerchantRepository(db)
	clientRepo := repository.NewMerchantClientRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	mergeRepo := repository.NewMergeRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)

	// services
	notify := services.NewQueueDispatcher(notifyQ)
	identityService := services.NewIdentityService(endUserRepo, aliasRepo, config.Get().DefaultCountryCode)
	ledgerService := services.NewLedgerService(merchantRepo, clientRepo, ledgerRepo, voucherRepo, identityService, db, notify)
	mergeService := services.NewMergeService(clientRepo, ledgerRepo, voucherRepo, endUserRepo, aliasRepo, mergeRepo, db, notify)
	voucherService := services.NewVoucherService(voucherRepo, clientRepo, ledgerRepo, endUserRepo, db, notify, config.Get().VoucherTTL)
	healthService := services.NewHealthService(db)

	presence := session.NewStore(redisAdap, session.Config{TTL: config.Get().PresenceTTL})

	// v1 handlers
	loyaltyHandler := handlers.NewLoyaltyHandler(ledgerService, presence)
	identityHandler := handlers.NewIdentityHandler(identityService)
	mergeHandler := handlers.NewMergeHandler(mergeService)
	voucherHandler := handlers.NewVoucherHandler(voucherService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterLoyaltyRoutes(g, loyaltyHandler)
	handlers.RegisterIdentityRoutes(g, identityHandler)
	handlers.RegisterMergeRoutes(g, mergeHandler)
	handlers.RegisterVoucherRoutes(g, voucherHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
