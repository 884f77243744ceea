package analyzer

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitushen/hostsummary/internal/config"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   Strategy
	}{
		{"no key", "", StrategyRuleBased},
		{"placeholder key", config.PlaceholderAPIKey, StrategyRuleBased},
		{"real key", "sk-test", StrategyGenerative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			a, err := FromConfig(&config.Config{APIKey: tt.apiKey, Model: "gpt-4o-mini", MaxAttempts: 2}, log)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Strategy())

			if tt.want != StrategyGenerative {
				assert.Empty(t, hook.AllEntries())
				return
			}
			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, "generative analysis enabled", entry.Message)
			assert.Equal(t, "gpt-4o-mini", entry.Data["model"])
			assert.Equal(t, 2, entry.Data["max_attempts"])
		})
	}
}

func TestFromConfig_MissingModel(t *testing.T) {
	_, err := FromConfig(&config.Config{APIKey: "sk-test"}, nil)
	assert.Error(t, err)
}
