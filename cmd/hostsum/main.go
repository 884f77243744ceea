package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/projectdiscovery/goflags"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"

	"github.com/hitushen/hostsummary/internal/analyzer"
	"github.com/hitushen/hostsummary/internal/config"
	"github.com/hitushen/hostsummary/internal/logger"
	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/scanner"
	"github.com/hitushen/hostsummary/internal/targets"
)

type options struct {
	Input       string
	Targets     string
	Ports       string
	ScanTimeout time.Duration
	Rate        int
	Output      string
	ConfigFile  string
	EnvFile     string
	Verbose     bool
}

func parseOptions() *options {
	opts := &options{}
	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription("hostsum summarizes host scan records from a file or a live port scan.")
	flagSet.CreateGroup("input", "Input",
		flagSet.StringVarP(&opts.Input, "input", "i", "", "host records JSON file ({\"hosts\": [...]} or array, - for stdin)"),
		flagSet.StringVarP(&opts.Targets, "target", "t", "", "comma separated hosts to scan with naabu"),
		flagSet.StringVarP(&opts.Ports, "ports", "p", "", "ports to scan (e.g. 22,80,443), default all"),
		flagSet.DurationVarP(&opts.ScanTimeout, "scan-timeout", "st", 0, "per target scan timeout (overrides HOSTSUM_SCAN_TIMEOUT)"),
		flagSet.IntVarP(&opts.Rate, "rate", "r", 3000, "packets per second for naabu"),
	)
	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&opts.Output, "output", "o", "json", "output format (json, table)"),
		flagSet.BoolVar(&opts.Verbose, "verbose", false, "debug logging"),
	)
	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file"),
		flagSet.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load"),
	)
	if err := flagSet.Parse(); err != nil {
		logrus.Fatalf("parse flags: %v", err)
	}
	return opts
}

func main() {
	opts := parseOptions()
	if err := run(opts); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	if (opts.Input == "") == (opts.Targets == "") {
		return fmt.Errorf("exactly one of -input or -target is required")
	}
	if opts.Output != "json" && opts.Output != "table" {
		return fmt.Errorf("unsupported output format: %s", opts.Output)
	}

	cfg, err := config.Load(config.Options{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// stdout 留给结果输出
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if opts.ScanTimeout > 0 {
		cfg.ScanTimeout = opts.ScanTimeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hosts []models.HostRecord
	if opts.Input != "" {
		hosts, err = readHosts(opts.Input)
	} else {
		hosts, err = scanTargets(ctx, opts, cfg, log)
	}
	if err != nil {
		return err
	}

	a, err := analyzer.FromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	resp, err := analyzer.NewBatch(a, nil, log).Run(ctx, hosts)
	if err != nil {
		return err
	}

	if opts.Output == "table" {
		return renderTable(resp.Items)
	}
	return writeJSON(os.Stdout, resp)
}

func scanTargets(ctx context.Context, opts *options, cfg *config.Config, log logrus.FieldLogger) ([]models.HostRecord, error) {
	ports, err := parsePorts(opts.Ports)
	if err != nil {
		return nil, err
	}
	var hosts []models.HostRecord
	for _, raw := range strings.Split(opts.Targets, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		target, err := targets.Resolve(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", raw, err)
		}
		record, err := scanner.Scan(ctx, target, scanner.Options{
			Ports:   ports,
			Timeout: cfg.ScanTimeout,
			Rate:    opts.Rate,
			Logger:  log,
		})
		if err != nil {
			log.WithField("target", raw).WithError(err).Error("scan failed")
			continue
		}
		hosts = append(hosts, record)
	}
	if len(hosts) == 0 {
		return nil, errNoHosts
	}
	return hosts, nil
}

// parsePorts 解析逗号分隔的端口列表，支持 a-b 区间。
func parsePorts(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ports []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
		}
		if start < 1 || end > 65535 || end < start {
			return nil, fmt.Errorf("invalid port range %q", part)
		}
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
	}
	return ports, nil
}
