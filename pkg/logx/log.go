package logx

import (
	"errors"
	"log"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is replaced by NewLogger at startup. Until then it discards
// everything, so packages can log without checking for nil.
var Logger = zap.NewNop().Sugar()

type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func NewLogger(config Config) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if config.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapConfig.DisableStacktrace = true
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf(`level=error msg="%s" desc="%s"`, err.Error(), "could not create new zap instance")
	}

	Logger = logger.Sugar()
}

// Sync flushes buffered entries. Call it once on shutdown.
func Sync() {
	err := Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		// https://github.com/uber-go/zap/issues/328
		return
	}
	if err != nil {
		log.Printf(`level=error msg="%s" desc="%s"`, err.Error(), "could not sync (flush) logger")
	}
}
