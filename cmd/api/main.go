package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/idempotency"
	"storefront/internal/infra/logging"
	"storefront/internal/infra/mail"
	"storefront/internal/infra/queue"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/infra/session"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

type dbPinger struct{ db *gorm.DB }

func (p dbPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// 二重送信ガードのキー保持時間（注文処理より十分長く）
const checkoutGuardTTL = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.GoEnv)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatal("migrate db", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartLineRepo := infraRepo.NewCartLineGormRepository(gormDB)
	cartFieldRepo := infraRepo.NewCartUserFieldGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	userFieldRepo := infraRepo.NewUserFieldGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderLineRepo := infraRepo.NewOrderLineGormRepository(gormDB)
	orderFieldRepo := infraRepo.NewOrderUserFieldGormRepository(gormDB)
	historyRepo := infraRepo.NewOrderHistoryGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	var stock usecase.StockChecker = usecase.UnlimitedStock{}
	if cfg.StockTracking {
		stock = usecase.TrackedStock{}
	}
	mailQueue := queue.NewMailQueue(rdb, cfg.MailQueueKey)
	guard := idempotency.NewCheckoutGuard(rdb, checkoutGuardTTL)
	authValidator := validator.NewAuthValidator(userRepo)

	//Usecase生成
	cartUC := usecase.NewCartUsecase(txm, usecase.CartRepos{
		Carts:      cartRepo,
		Lines:      cartLineRepo,
		Entries:    cartFieldRepo,
		Products:   productRepo,
		UserFields: userFieldRepo,
	}, stock, idGen, clock, logger)
	checkoutUC := usecase.NewCheckoutUsecase(usecase.CheckoutDeps{
		Tx:         txm,
		Carts:      cartRepo,
		Lines:      cartLineRepo,
		Entries:    cartFieldRepo,
		UserFields: userFieldRepo,
		History:    historyRepo,
		Users:      userRepo,
		Stock:      stock,
		Notifier:   mailQueue,
		Guard:      guard,
		Clock:      clock,
		BaseURL:    cfg.BaseURL,
		Log:        logger,
	})
	authUC := usecase.NewAuthUsecase(cfg, userRepo, authValidator, cartUC, clock, logger)
	catalogUC := usecase.NewCatalogUsecase(categoryRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(orderRepo, orderLineRepo, orderFieldRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, orderRepo, orderLineRepo, orderFieldRepo, historyRepo, clock)
	exportUC := usecase.NewOrderExportUsecase(categoryRepo, userFieldRepo, orderRepo, orderLineRepo, orderFieldRepo)
	adminCatalogUC := usecase.NewAdminCatalogUsecase(txm, usecase.AdminCatalogRepos{
		Categories: categoryRepo,
		UserFields: userFieldRepo,
		Products:   productRepo,
		Audit:      auditRepo,
		Inventory:  inventoryRepo,
	}, clock)
	staffUC := usecase.NewStaffUsecase(txm, userRepo, orderRepo, authValidator, clock)

	//Handler生成
	store := session.New(cfg)
	secure := cfg.GoEnv == "prod"
	e := server.New(server.Deps{
		Cfg:       cfg,
		Log:       logger,
		Users:     userRepo,
		Carts:     cartUC,
		Store:     store,
		Languages: session.NewLanguageMatcher(cfg.DefaultLanguage, cfg.SupportedLanguages),
		Health: map[string]server.HealthChecker{
			"db":    dbPinger{db: gormDB},
			"redis": redisPinger{rdb: rdb},
		},
	},
		handler.NewAuthHandler(authUC, store, cfg.JWTAccessTTL, secure),
		handler.NewCatalogHandler(catalogUC, cartUC, store),
		handler.NewCartHandler(cartUC, store),
		handler.NewCheckoutHandler(checkoutUC, store, secure),
		handler.NewOrderHandler(orderUC, store),
		handler.NewDashboardCatalogHandler(adminCatalogUC),
		handler.NewDashboardOrderHandler(adminOrderUC, exportUC),
		handler.NewDashboardStaffHandler(staffUC),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//メール送信ワーカー
	sender, err := mail.NewSender(cfg)
	if err != nil {
		logger.Fatal("init mail sender", zap.Error(err))
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = queue.NewWorker(mailQueue, sender, logger).Run(ctx)
	}()

	//Server起動
	if err := server.Start(ctx, e, ":"+cfg.Port, logger); err != nil {
		logger.Error("http server", zap.Error(err))
		stop()
	}
	wg.Wait()
	logger.Info("bye")
}
