package prompt

import (
	"strings"

	"github.com/tidwall/pretty"

	"github.com/hitushen/hostsummary/internal/hostdata"
	"github.com/hitushen/hostsummary/internal/models"
)

// Sampling 是模型调用的采样参数，与提示词文本分开传递。
type Sampling struct {
	Temperature      float32
	MaxTokens        int
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// DefaultSampling 低随机性、较宽的输出上限。
var DefaultSampling = Sampling{
	Temperature:      0.1,
	MaxTokens:        2000,
	TopP:             0.9,
	FrequencyPenalty: 0.1,
	PresencePenalty:  0.1,
}

// Package 是一次模型调用所需的完整提示词。
type Package struct {
	System   string
	User     string
	Sampling Sampling
}

// Build 为主机记录生成系统提示、用户提示与采样参数。
func Build(record models.HostRecord) Package {
	user := FewShotExamples + "\n\nNow analyze this host:\n\n" + AnalysisPrompt(record)
	return Package{
		System:   SystemPrompt,
		User:     user,
		Sampling: DefaultSampling,
	}
}

// AnalysisPrompt 根据记录内容生成自适应的分析请求。
func AnalysisPrompt(record models.HostRecord) string {
	out := AnalysisPromptTemplate
	out = strings.ReplaceAll(out, "{{.Guidance}}", Guidance(hostdata.ServiceCount(record)))
	out = strings.ReplaceAll(out, "{{.HostData}}", formatRecord(record))
	return out
}

// Guidance 按服务数量选择复杂度提示：>10 多，6-10 中等，<=5 少。
func Guidance(serviceCount int) string {
	switch {
	case serviceCount > 10:
		return GuidanceMany
	case serviceCount > 5:
		return GuidanceModerate
	default:
		return GuidanceFew
	}
}

// EstimateTokens 粗略估算 token 数（约 4 字符 / token），仅用于日志。
func EstimateTokens(text string) int {
	return len(text) / 4
}

func formatRecord(record models.HostRecord) string {
	if len(record) == 0 {
		return "{}"
	}
	return strings.TrimRight(string(pretty.Pretty(record)), "\n")
}
