package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shoppingcart/internal/config"
	appmw "shoppingcart/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// New はmiddleware込みのechoを作ってルートを登録する
func New(cfg config.Config, r Routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	//RequestLoggerを外側に置き、panicで500になったリクエストも記録する
	e.Use(appmw.RequestLogger(r.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, "Idempotency-Key"},
		AllowCredentials: true,
	}))
	if cfg.RateLimitPerSec > 0 {
		e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitPerSec))))
	}
	//画像のbase64/multipart分の余裕を持たせる
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.MaxImageBytes*2+64*1024)))

	RegisterRoutes(e, r)
	return e
}

// Start はctxがキャンセルされるまで待ち、graceful shutdownする
func Start(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
