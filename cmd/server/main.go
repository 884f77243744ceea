package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/projectdiscovery/goflags"
	"github.com/sirupsen/logrus"

	"github.com/hitushen/hostsummary/internal/analyzer"
	"github.com/hitushen/hostsummary/internal/config"
	"github.com/hitushen/hostsummary/internal/logger"
	"github.com/hitushen/hostsummary/internal/realtime"
	"github.com/hitushen/hostsummary/internal/server"
)

type options struct {
	ConfigFile string
	EnvFile    string
	Addr       string
}

func parseOptions() *options {
	opts := &options{}
	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription("hostsum server summarizes host scan records over HTTP.")
	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (overrides HOSTSUM_CONFIG)"),
		flagSet.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load"),
		flagSet.StringVarP(&opts.Addr, "addr", "a", "", "listen address (overrides HOSTSUM_HTTP_ADDR)"),
	)
	if err := flagSet.Parse(); err != nil {
		logrus.Fatalf("parse flags: %v", err)
	}
	return opts
}

func main() {
	opts := parseOptions()

	cfg, err := config.Load(config.Options{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile})
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	if cfg.WatchLogLevel(func(level string) {
		if err := logger.SetLevel(log, level); err != nil {
			log.WithError(err).Warn("ignoring log level from config file")
		}
	}) {
		log.WithField("file", cfg.ConfigFile()).Info("watching config file for log level changes")
	}

	a, err := analyzer.FromConfig(cfg, log)
	if err != nil {
		log.Fatalf("analyzer: %v", err)
	}
	broker := realtime.NewBroker()
	batch := analyzer.NewBatch(a, broker, log)

	srv := server.New(server.Options{
		Summarizer:  batch,
		Broker:      broker,
		Mode:        a.Mode(),
		Model:       cfg.Model,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	banner(log, cfg, a.Strategy())
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	// 优雅地关闭服务
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down...")
	srv.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}

func banner(log *logrus.Logger, cfg *config.Config, strategy analyzer.Strategy) {
	fields := logrus.Fields{
		"addr": cfg.Addr,
		"mode": strategy.Mode(),
	}
	if strategy == analyzer.StrategyGenerative {
		fields["model"] = cfg.Model
		fields["max_attempts"] = cfg.MaxAttempts
		log.WithFields(fields).Info("host summarizer listening, AI analysis enabled")
		return
	}
	log.WithFields(fields).Info("host summarizer listening, rule-based analysis (set OPENAI_API_KEY to enable AI)")
}
