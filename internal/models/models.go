package models

import (
	"encoding/json"
	"strings"
)

// HostRecord 是扫描器产出的原始主机记录，结构不固定，保持原样透传。
type HostRecord = json.RawMessage

// Severity 定义风险等级枚举，按 low < medium < high < critical 排序。
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities 按等级从低到高列出全部取值。
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank 返回等级序号，非法取值返回 -1。
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid 判断是否为合法的风险等级。
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AtLeast 判断当前等级是否不低于 other。
func (s Severity) AtLeast(other Severity) bool {
	return s.Valid() && s.Rank() >= other.Rank()
}

// Software 表示服务上识别出的软件信息。
type Software struct {
	Product string `json:"product"`
	Version string `json:"version"`
}

// ServiceObject 是 services 数组中单个服务的强类型投影。
type ServiceObject struct {
	Port            int        `json:"port"`
	Protocol        string     `json:"protocol"`
	Software        []Software `json:"software,omitempty"`
	Banner          string     `json:"banner,omitempty"`
	Vulnerabilities int        `json:"vulnerabilities"`
}

// HasProtocol 忽略大小写比较协议名。
func (s ServiceObject) HasProtocol(name string) bool {
	return strings.EqualFold(s.Protocol, name)
}

// NormalizedHost 是两种输入格式统一后的规范视图，每次请求重新计算。
type NormalizedHost struct {
	HostID   string
	Ports    []int
	Services []ServiceObject
	// ServiceNames 仅来自 ports 格式中的 services 映射（端口 -> 服务名）。
	ServiceNames map[int]string
}

// ExposedCount 返回暴露服务数量：有服务对象时取服务数，否则取端口数。
func (h NormalizedHost) ExposedCount() int {
	if len(h.Services) > 0 {
		return len(h.Services)
	}
	return len(h.Ports)
}

// KeyService 是单个服务的可读摘要。
type KeyService struct {
	Port    *int    `json:"port"`
	Name    *string `json:"name"`
	Finding *string `json:"finding"`
}

// Risk 描述一条安全风险。
type Risk struct {
	Risk     string   `json:"risk" validate:"required"`
	Severity Severity `json:"severity" validate:"required,oneof=low medium high critical"`
	Evidence *string  `json:"evidence"`
}

// HostSummary 是单台主机的完整分析结果。
type HostSummary struct {
	HostID          string       `json:"host_id" validate:"required"`
	Overview        string       `json:"overview" validate:"required"`
	KeyServices     []KeyService `json:"key_services"`
	Risks           []Risk       `json:"risks" validate:"min=1,dive"`
	Recommendations []string     `json:"recommendations"`
}

// SummarizeRequest 是 /summarize 的请求体。
type SummarizeRequest struct {
	Hosts []HostRecord `json:"hosts"`
}

// SummarizeResponse 是 /summarize 的响应体。
type SummarizeResponse struct {
	Items []HostSummary `json:"items"`
}

// IntPtr 与 StringPtr 用于构造可选字段。
func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }
