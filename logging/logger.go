package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// GetWriteSyncer returns a rotating file sink for the given log path.
func GetWriteSyncer(logName string) zapcore.WriteSyncer {
	ioWriter := &lumberjack.Logger{
		Filename:   logName,
		MaxSize:    20, // MB
		MaxBackups: 5,  // number of backups
		MaxAge:     28, // days
		LocalTime:  true,
		Compress:   false,
	}
	return zapcore.AddSync(ioWriter)
}

// SetupLogger builds the process logger: JSON-encoded records into a rotating
// file plus human-readable console output. Production environments log at
// info level, everything else at debug.
func SetupLogger(fileName, environment string) *zap.SugaredLogger {
	var encCfg zapcore.EncoderConfig
	level := zapcore.DebugLevel
	if strings.EqualFold(environment, "production") {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		level = zapcore.InfoLevel
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}

	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileEncoder := zapcore.NewJSONEncoder(encCfg)
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, GetWriteSyncer(fileName), level),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
	)

	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger.Sugar()
}
