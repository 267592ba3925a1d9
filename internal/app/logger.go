package app

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig параметры логгера процесса
type LoggerConfig struct {
	Env       string
	Component string
	// Level переопределяет уровень окружения (debug в разработке, info в production)
	Level string
}

// NewLogger собирает zap логгер под окружение, component попадает в каждую запись
func NewLogger(cfg LoggerConfig) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			panic("invalid log level: " + err.Error())
		}
		config.Level = level
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.InitialFields = map[string]any{"component": cfg.Component}

	logger, err := config.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	return logger
}
