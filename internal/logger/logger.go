package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op until Initialize is called, so packages and tests can log
// unconditionally.
var Log *zap.Logger = zap.NewNop()

func Initialize(level string, production bool) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	var config zap.Config
	if production {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = lvl

	zl, err := config.Build()
	if err != nil {
		return err
	}
	Log = zl
	return nil
}
