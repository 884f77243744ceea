package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAPIKey 是示例 .env 中的占位密钥，视同未配置。
const PlaceholderAPIKey = "your_openai_api_key_here"

// LogConfig 日志配置。
type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config 汇总服务运行时所需的全部配置。
type Config struct {
	Addr           string
	Model          string
	APIKey         string
	BaseURL        string
	MaxAttempts    int
	AttemptTimeout time.Duration
	MockDelay      time.Duration
	ScanTimeout    time.Duration
	CORSOrigins    []string
	Log            LogConfig

	configFile string
	v          *viper.Viper
}

// Options 指定额外的配置来源，均可为空。
type Options struct {
	// ConfigFile 为 YAML 配置文件路径，为空时读取 HOSTSUM_CONFIG。
	ConfigFile string
	// EnvFile 为 dotenv 文件路径，默认 .env，不存在时忽略。
	EnvFile string
}

// envBindings 配置键与环境变量的对应关系。
var envBindings = map[string]string{
	"model":                    "MODEL",
	"openai.api_key":           "OPENAI_API_KEY",
	"openai.base_url":          "OPENAI_BASE_URL",
	"http.addr":                "HOSTSUM_HTTP_ADDR",
	"http.cors_origins":        "HOSTSUM_CORS_ORIGINS",
	"analysis.max_attempts":    "HOSTSUM_MAX_ATTEMPTS",
	"analysis.attempt_timeout": "HOSTSUM_ATTEMPT_TIMEOUT",
	"analysis.mock_delay":      "HOSTSUM_MOCK_DELAY",
	"scan.timeout":             "HOSTSUM_SCAN_TIMEOUT",
	"log.level":                "HOSTSUM_LOG_LEVEL",
	"log.format":               "HOSTSUM_LOG_FORMAT",
	"log.output":               "HOSTSUM_LOG_OUTPUT",
	"log.file":                 "HOSTSUM_LOG_FILE",
	"config":                   "HOSTSUM_CONFIG",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("analysis.max_attempts", 3)
	v.SetDefault("analysis.attempt_timeout", "60s")
	v.SetDefault("analysis.mock_delay", "0s")
	v.SetDefault("scan.timeout", "2m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/hostsum.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

// Load 依次合并默认值、配置文件、.env 与环境变量（后者优先），并校验结果。
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = strings.TrimSpace(v.GetString("config"))
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Addr:           strings.TrimSpace(v.GetString("http.addr")),
		Model:          strings.TrimSpace(v.GetString("model")),
		APIKey:         strings.TrimSpace(v.GetString("openai.api_key")),
		BaseURL:        strings.TrimSpace(v.GetString("openai.base_url")),
		MaxAttempts:    v.GetInt("analysis.max_attempts"),
		AttemptTimeout: v.GetDuration("analysis.attempt_timeout"),
		MockDelay:      v.GetDuration("analysis.mock_delay"),
		ScanTimeout:    v.GetDuration("scan.timeout"),
		CORSOrigins:    stringList(v, "http.cors_origins"),
		Log:            logConfig(v),
		configFile:     configFile,
		v:              v,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置取值是否合法。
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http address must not be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.AttemptTimeout < 0 || c.MockDelay < 0 || c.ScanTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Log.Format)
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			return fmt.Errorf("log file path is required when output is file")
		}
	default:
		return fmt.Errorf("unsupported log output: %s", c.Log.Output)
	}
	return nil
}

// UseAI 仅在配置了真实密钥时启用生成式分析。
func (c *Config) UseAI() bool {
	return c.APIKey != "" && c.APIKey != PlaceholderAPIKey
}

// ConfigFile 返回实际读取的配置文件路径，未使用时为空。
func (c *Config) ConfigFile() string {
	return c.configFile
}

// WatchLogLevel 监听配置文件变化并回调新的日志级别。
// 没有配置文件时返回 false。
func (c *Config) WatchLogLevel(fn func(level string)) bool {
	if c.configFile == "" || c.v == nil {
		return false
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := strings.ToLower(strings.TrimSpace(c.v.GetString("log.level")))
		c.Log.Level = level
		fn(level)
	})
	c.v.WatchConfig()
	return true
}

func logConfig(v *viper.Viper) LogConfig {
	return LogConfig{
		Level:      strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		Format:     strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		Output:     strings.ToLower(strings.TrimSpace(v.GetString("log.output"))),
		FilePath:   strings.TrimSpace(v.GetString("log.file")),
		MaxSize:    v.GetInt("log.max_size"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAge:     v.GetInt("log.max_age"),
		Compress:   v.GetBool("log.compress"),
	}
}

// stringList 同时接受 YAML 列表与逗号分隔的环境变量。
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
