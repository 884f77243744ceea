package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hitushen/hostsummary/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// New 根据配置创建 logrus 实例。
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	if err := setFormatter(log, cfg.Format); err != nil {
		return nil, err
	}
	out, err := output(cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		if cfg.Level != "" {
			log.Warnf("invalid log level %q, using info", cfg.Level)
		}
	}
	log.SetLevel(level)
	return log, nil
}

// SetLevel 运行时调整日志级别，无法解析时保持原级别。
func SetLevel(log *logrus.Logger, level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if parsed != log.GetLevel() {
		log.SetLevel(parsed)
		log.Infof("log level updated to %s", parsed)
	}
	return nil
}

func setFormatter(log *logrus.Logger, format string) error {
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}
	return nil
}

func output(cfg config.LogConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// debug 级别同时输出到控制台
		if cfg.Level == "debug" {
			return io.MultiWriter(os.Stdout, rotating), nil
		}
		return rotating, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
}
