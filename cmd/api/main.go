package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shoppingcart/internal/config"
	"shoppingcart/internal/handler"
	"shoppingcart/internal/infra/db"
	infraRepo "shoppingcart/internal/infra/repository"
	"shoppingcart/internal/logger"
	"shoppingcart/internal/oauth"
	"shoppingcart/internal/server"
	"shoppingcart/internal/session"
	"shoppingcart/internal/usecase"
	"shoppingcart/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.GoEnv)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		log.Error("db connect failed", zap.Error(err))
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Error("db migrate failed", zap.Error(err))
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	inputValidator := validator.NewInputValidator()

	//Usecase生成
	clock := &realClock{}
	authUC := usecase.NewAuthUsecase(txManager, inputValidator, clock, log.Named("auth"))
	cartUC := usecase.NewCartUsecase(cartItemRepo, txManager, inputValidator, clock, log.Named("cart"))

	google := oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL())
	loginFlow := usecase.NewLoginFlow(google, authUC, userRepo, &uuidGenerator{}, log.Named("login"))

	sessions := session.NewManager([]byte(cfg.SessionSecret), cfg.SessionTTL, cfg.CookieSecure)

	//Handler生成
	cartH := handler.NewCartHandler(cartUC, cfg.MaxImageBytes, log.Named("cart_handler"))
	loginH := handler.NewLoginHandler(loginFlow, sessions, log.Named("login_handler"))

	e := server.New(cfg, server.Routes{
		Cart:     cartH,
		Login:    loginH,
		Sessions: sessions,
		Users:    userRepo,
		Log:      log.Named("http"),
	})

	//Server起動
	return server.Start(ctx, e, cfg.Addr(), cfg.ShutdownTimeout, log)
}
