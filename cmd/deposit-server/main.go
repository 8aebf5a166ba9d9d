package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deposit-core/internal/handler"
	"deposit-core/internal/model"
	"deposit-core/internal/server"
	"deposit-core/internal/service"
	"deposit-core/internal/service/balance"
	"deposit-core/internal/service/fee"
	"deposit-core/internal/service/intent"
	"deposit-core/internal/service/lifecycle"
	"deposit-core/internal/service/mq"
	"deposit-core/internal/service/session"
	"deposit-core/internal/service/status"
	"deposit-core/internal/worker"
	"deposit-core/pkg/address"
	"deposit-core/pkg/cache"
	"deposit-core/pkg/config"
	"deposit-core/pkg/database"
	"deposit-core/pkg/explorer"
	"deposit-core/pkg/localstore"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/stacksapi"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/utils/lock"
	"deposit-core/pkg/validator"
	"deposit-core/pkg/walletrpc"

	_ "deposit-core/docs/swagger"
)

// @title sBTC Deposit API
// @version 1.0
// @description Headless sBTC deposit service: wallet session, validation, PSBT signing and status lookup

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. Config / Validator / Logger
	config.Init()
	validator.Init()
	logger.Init(config.Global.App.Env,
		logger.WithLevel(config.Global.App.LogLevel),
		logger.WithFields(zap.String("service", "deposit-server"), zap.String("network", config.Global.App.Network)),
	)
	defer logger.Sync()
	cfg := config.Global

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	network, err := address.NetworkByName(cfg.App.Network)
	if err != nil {
		logger.Fatal("unknown network", zap.Error(err))
	}
	blockstreamURL, mempoolURL := network.BlockstreamURL, network.MempoolURL
	if cfg.Chain.BlockstreamURL != "" {
		blockstreamURL = cfg.Chain.BlockstreamURL
	}
	if cfg.Chain.MempoolURL != "" {
		mempoolURL = cfg.Chain.MempoolURL
	}

	// 1. Redis, 连不上时退回单进程实现
	rdb, err := database.ConnectRedis(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, using in-process lock/cache/store", zap.Error(err))
		rdb = nil
	}

	// 2. PostgreSQL (可选)
	var db *gorm.DB
	if cfg.DB.Enabled {
		db, err = database.ConnectPostgres(cfg.DB, cfg.App.Env == "development")
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		if cfg.App.Env == "development" {
			logger.Info("development: running gorm AutoMigrate")
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				logger.Fatal("auto migrate failed", zap.Error(err))
			}
		} else {
			logger.Info("skipping AutoMigrate, manage the schema with cmd/migrate")
		}
	}

	// 3. Cache: L1 memory, L2 redis
	var sharedCache cache.Cache = cache.NewMemoryCache(time.Minute, 5*time.Minute)
	var locker lock.DistributedLock = lock.NewMemoryLock()
	if rdb != nil {
		sharedCache = cache.NewMultiLevelCache(sharedCache, cache.NewRedisCache(rdb, "deposit:cache:"+network.Name+":"), cfg.Redis.LocalCacheTTL)
		locker = lock.NewRedisLock(rdb)
	}

	// 4. 外部客户端
	styxClient := styx.NewClient(cfg.Styx.BaseURL, cfg.Styx.APIKey, cfg.Styx.Timeout)
	chain := explorer.NewClient(blockstreamURL, mempoolURL, cfg.Chain.Timeout)
	stacks := stacksapi.NewClient(cfg.Stacks.APIURL, cfg.Stacks.APIKey, cfg.Chain.Timeout)

	// 5. 钱包会话 + 余额
	store := newLocalStore(cfg.Wallet, rdb)
	leather := walletrpc.NewClient(cfg.Wallet.LeatherURL, 0)
	tracker := session.NewTracker(store, network,
		session.WithInterval(cfg.Wallet.SessionPollInterval),
		session.WithLeather(leather),
	)
	fetcher := balance.NewFetcher(tracker, stacks, chain, cfg.Stacks.SBTCAssetKey)
	tracker.Subscribe(fetcher.OnSessionChange)
	tracker.Poll(ctx)
	go tracker.Start(ctx)

	// 6. 手续费 / 流动性 / 表单校验
	var feeSource fee.Source = fee.StyxSource{Client: styxClient}
	if cfg.Fees.Source == "mempool" {
		feeSource = fee.MempoolSource{Client: chain}
	}
	fees := fee.NewService(feeSource, sharedCache, cfg.Fees.CacheTTL)
	pool := intent.NewCachedPool(styxClient, cfg.Styx.PoolID, sharedCache, cfg.Deposit.PoolCacheTTL)
	builder := intent.NewBuilder(tracker, fetcher, pool, fees, intent.Limits{
		MinSats:               cfg.Deposit.MinSats,
		MaxSats:               cfg.Deposit.MaxSats,
		NetworkFeeReserveSats: cfg.Deposit.NetworkFeeReserveSats,
		MaxAmountFallbackSats: cfg.Deposit.MaxAmountFallbackSats,
	})

	// 7. 交易生命周期
	signers := []lifecycle.Signer{
		lifecycle.NewLeatherSigner(leather, chain),
		lifecycle.NewXverseSigner(walletrpc.NewClient(cfg.Wallet.XverseURL, 0), network),
	}
	var opts []lifecycle.Option
	if db != nil {
		opts = append(opts, lifecycle.WithJournal(lifecycle.NewGormJournal(db, cfg.Deposit.EventTopic)))
	} else {
		opts = append(opts, lifecycle.WithJournal(lifecycle.NewMemoryJournal()))
	}

	var hooks []func(*server.App)
	if rdb != nil && cfg.Worker.ReconcileEnabled {
		client := worker.NewClient(cfg.Redis)
		opts = append(opts, lifecycle.WithReconciler(client))

		workerServer := worker.NewServer(cfg.Redis, cfg.Worker.Concurrency, styxClient)
		if err := workerServer.Start(); err != nil {
			logger.Fatal("reconcile worker failed to start", zap.Error(err))
		}
		hooks = append(hooks, func(app *server.App) {
			app.OnShutdown("reconcile-client", func(context.Context) error { return client.Close() })
			app.OnShutdown("reconcile-worker", func(context.Context) error { workerServer.Stop(); return nil })
		})
	}
	coordinator := lifecycle.NewCoordinator(styxClient, tracker, fees, locker, signers, lifecycle.Config{
		Network: network.StacksNetwork,
		LockTTL: cfg.Deposit.LockTTL,
	}, opts...)

	statusTracker := status.NewTracker(styxClient, txURLBase(network))

	// 8. Outbox relay (需要数据库和 MQ)
	if db != nil && rdb != nil {
		producer := newProducer(cfg, rdb)
		relay := service.NewRelayService(service.NewGormOutboxStore(db), producer)
		go relay.Start(ctx)
		hooks = append(hooks, func(app *server.App) {
			app.OnShutdown("event-producer", func(context.Context) error { return producer.Close() })
		})
	}

	// 9. 定时任务
	cronService := service.NewCronService(locker, cfg.Wallet.BalanceRefresh, fetcher, fees, pool)
	if err := cronService.Start(); err != nil {
		logger.Fatal("cron service failed to start", zap.Error(err))
	}

	// 10. HTTP + gRPC
	r := server.NewHTTPRouter(server.Handlers{
		Health:  handler.NewHealthHandler(dependencyChecks(db, rdb)),
		Session: handler.NewSessionHandler(tracker, fetcher),
		Deposit: handler.NewDepositHandler(builder, coordinator, statusTracker, styxClient, tracker, cfg.Styx.PoolID),
		Market:  handler.NewMarketHandler(fees, pool),
	})
	grpcServer, healthServer := server.NewGRPCServer(coordinator.Ready())

	app, err := server.New(server.Config{
		HttpPort:   cfg.App.HttpPort,
		GrpcPort:   cfg.App.GrpcPort,
		DrainDelay: 2 * time.Second,
	}, r, grpcServer, healthServer)
	if err != nil {
		logger.Fatal("application start failed", zap.Error(err))
	}

	// 11. 清理: 逆序执行, 连接池最后关
	if db != nil {
		app.OnShutdown("postgres", func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	if rdb != nil {
		app.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	}
	for _, h := range hooks {
		h(app)
	}
	app.OnShutdown("cron", func(context.Context) error { cronService.Stop(); return nil })
	app.OnShutdown("background", func(context.Context) error { cancel(); return nil })

	if err := app.Run(ctx); err != nil {
		logger.Error("deposit server stopped with error", zap.Error(err))
	}
}

func dependencyChecks(db *gorm.DB, rdb *redis.Client) map[string]handler.DependencyCheck {
	checks := map[string]handler.DependencyCheck{}
	if db != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func newLocalStore(cfg config.WalletConfig, rdb *redis.Client) localstore.Store {
	switch cfg.LocalStore {
	case "redis":
		if rdb != nil {
			return localstore.NewRedisStore(rdb, "deposit:local:")
		}
		logger.Warn("redis local store requested without redis, using memory")
		return localstore.NewMemoryStore()
	case "memory":
		return localstore.NewMemoryStore()
	}
	return localstore.NewFileStore(cfg.LocalStorePath)
}

func newProducer(cfg config.Config, rdb *redis.Client) mq.Producer {
	if cfg.Redis.MQType == "kafka" {
		logger.Info("using kafka for lifecycle events", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers)
	}
	logger.Info("using redis streams for lifecycle events")
	return mq.NewRedisProducer(rdb)
}

func txURLBase(n *address.Network) string {
	switch n.Name {
	case "testnet":
		return "https://mempool.space/testnet/tx/"
	case "regtest":
		return ""
	}
	return "https://mempool.space/tx/"
}
