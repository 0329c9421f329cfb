package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"futures-exec/internal/config"
)

// NewLogger 根据配置创建双通道 zap.Logger：滚动文件记录 Debug 级全量日志，
// 控制台按配置级别输出。文件按大小滚动并保留固定数量的备份。
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	consoleLevel := zapcore.InfoLevel
	if err := consoleLevel.Set(strings.ToLower(cfg.Level)); err != nil {
		return nil, fmt.Errorf("解析日志级别失败: %w", err)
	}

	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	fileEncoderConfig.TimeKey = "ts"
	fileEncoderConfig.NameKey = "logger"
	fileEncoderConfig.CallerKey = "caller"

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.FileMaxSizeMB,
		MaxBackups: cfg.FileMaxBackups,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), fileWriter, zapcore.DebugLevel)

	consoleEncoderConfig := zap.NewProductionEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.Lock(os.Stdout),
		consoleLevel,
	)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(fileCore, consoleCore), opts...)
	return logger.With(zap.String("service", "futures-exec")), nil
}
