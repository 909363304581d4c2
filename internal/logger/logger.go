// Package logger builds the zap logger that is injected into every component.
package logger

import (
	"errors"
	"os"

	"go.uber.org/zap"
)

// New はレベルと環境からzap.Loggerを作る。
// prodはJSON、それ以外はdevelopment形式
func New(level string, goEnv string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	if goEnv == "prod" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return zl.With(zap.String("service", "shopping-cart-api")), nil
}

// Sync は終了時にバッファを書き出す
func Sync(l *zap.Logger) error {
	if err := l.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
