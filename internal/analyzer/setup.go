package analyzer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hitushen/hostsummary/internal/config"
	"github.com/hitushen/hostsummary/internal/llm"
)

// FromConfig 根据配置选择策略：配置了有效密钥时使用生成式分析，否则使用规则分析。
func FromConfig(cfg *config.Config, logger logrus.FieldLogger) (*Analyzer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts := Options{
		Strategy:       StrategyRuleBased,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		MockDelay:      cfg.MockDelay,
		Logger:         logger,
	}
	if cfg.UseAI() {
		client, err := llm.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		opts.Strategy = StrategyGenerative
		opts.Completer = client
		logger.WithFields(logrus.Fields{
			"model":        client.Model(),
			"max_attempts": cfg.MaxAttempts,
		}).Info("generative analysis enabled")
	}
	return New(opts)
}
