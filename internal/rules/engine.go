package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/services/fingerprint"
)

const (
	// MaxRecommendations 是建议列表的上限，通用建议追加后统一截断。
	MaxRecommendations = 6

	maxKeyServices  = 4
	maxKeyPorts     = 3
	maxBannerLength = 50
)

// 数据库常见端口。
var databasePorts = []int{3306, 5432, 27017}

const (
	recUrgent   = "URGENT: Address critical and high severity risks immediately"
	recSSH      = "Configure SSH key-based authentication and disable password login"
	recFTP      = "Replace FTP with SFTP or FTPS to protect credentials in transit"
	recHTTPS    = "Implement HTTPS with proper SSL/TLS configuration"
	recDatabase = "Restrict database access to internal networks only"
)

var genericRecommendations = []string{
	"Implement network segmentation and firewall rules",
	"Enable security logging and monitoring",
	"Establish regular vulnerability scanning",
}

// Result 是规则引擎的推理输出。
type Result struct {
	Overview        string
	KeyServices     []models.KeyService
	Risks           []models.Risk
	Recommendations []string
}

// findings 记录各项检查是否命中，供建议生成使用。
type findings struct {
	ssh, ftp, http, database bool
}

// Infer 根据规范化主机数据推导风险与建议，纯函数，结果确定。
func Infer(host models.NormalizedHost) Result {
	risks, hit := inferRisks(host)
	return Result{
		Overview:        Overview(host),
		KeyServices:     KeyServices(host),
		Risks:           risks,
		Recommendations: recommend(risks, hit),
	}
}

// Summarize 组装完整的 HostSummary。
func Summarize(host models.NormalizedHost) models.HostSummary {
	res := Infer(host)
	return models.HostSummary{
		HostID:          host.HostID,
		Overview:        res.Overview,
		KeyServices:     res.KeyServices,
		Risks:           res.Risks,
		Recommendations: res.Recommendations,
	}
}

// Overview 生成概述句。
func Overview(host models.NormalizedHost) string {
	return fmt.Sprintf("Network host %s with %d exposed services requiring security assessment",
		host.HostID, host.ExposedCount())
}

// KeyServices 取前 4 个服务对象；没有服务对象时取前 3 个端口。
func KeyServices(host models.NormalizedHost) []models.KeyService {
	out := make([]models.KeyService, 0, maxKeyServices)
	if len(host.Services) > 0 {
		for i, svc := range host.Services {
			if i == maxKeyServices {
				break
			}
			out = append(out, models.KeyService{
				Port:    models.IntPtr(svc.Port),
				Name:    models.StringPtr(strings.ToUpper(svc.Protocol)),
				Finding: models.StringPtr(serviceFinding(svc)),
			})
		}
		return out
	}
	for i, port := range host.Ports {
		if i == maxKeyPorts {
			break
		}
		name := portServiceName(host, port)
		out = append(out, models.KeyService{
			Port:    models.IntPtr(port),
			Name:    models.StringPtr(strings.ToUpper(name)),
			Finding: models.StringPtr(name + " service detected"),
		})
	}
	return out
}

func serviceFinding(svc models.ServiceObject) string {
	if len(svc.Software) > 0 {
		sw := svc.Software[0]
		if sw.Product == "" {
			return svc.Protocol
		}
		return strings.TrimSpace(sw.Product + " " + sw.Version)
	}
	if svc.Banner != "" {
		return truncate(svc.Banner, maxBannerLength)
	}
	return svc.Protocol + " service detected"
}

func portServiceName(host models.NormalizedHost, port int) string {
	if name := strings.TrimSpace(host.ServiceNames[port]); name != "" {
		return name
	}
	if name := fingerprint.NameForPort(port); name != "" {
		return name
	}
	return "unknown"
}

func inferRisks(host models.NormalizedHost) ([]models.Risk, findings) {
	var (
		risks []models.Risk
		hit   findings
	)

	if ports, ok := exposure(host, 22, "ssh"); ok {
		hit.ssh = true
		risks = append(risks, newRisk("SSH service internet exposure", models.SeverityMedium,
			"SSH "+onPorts(ports)+" accessible from external networks"))
	}
	if ports, ok := exposure(host, 21, "ftp"); ok {
		hit.ftp = true
		risks = append(risks, newRisk("FTP service transmits credentials in cleartext", models.SeverityHigh,
			"FTP "+onPorts(ports)+" accessible from external networks"))
	}
	if ports, ok := exposure(host, 80, "http"); ok {
		hit.http = true
		risks = append(risks, newRisk("Unencrypted HTTP traffic vulnerability", models.SeverityMedium,
			"HTTP "+onPorts(ports)+" serves unencrypted content"))
	}
	if ports := matchPorts(host.Ports, databasePorts...); len(ports) > 0 {
		hit.database = true
		risks = append(risks, newRisk("Database service exposed to internet", models.SeverityCritical,
			"Database "+onPorts(ports)+" accessible from external networks"))
	}
	if count := vulnerabilityCount(host); count > 0 {
		risks = append(risks, newRisk("Known security vulnerabilities identified", VulnerabilitySeverity(count),
			fmt.Sprintf("%d CVE entries found in running services", count)))
	}

	if len(risks) == 0 {
		risks = append(risks, DefaultRisk())
	}
	return risks, hit
}

// DefaultRisk 是没有任何规则命中时注入的低风险条目。
func DefaultRisk() models.Risk {
	return newRisk("Network services require security assessment", models.SeverityLow,
		"Standard services detected")
}

// VulnerabilitySeverity 按漏洞数量映射等级：>5 critical，3-5 high，其余 medium。
func VulnerabilitySeverity(count int) models.Severity {
	switch {
	case count > 5:
		return models.SeverityCritical
	case count > 2:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func recommend(risks []models.Risk, hit findings) []string {
	recs := make([]string, 0, MaxRecommendations+len(genericRecommendations))
	for _, r := range risks {
		if r.Severity.AtLeast(models.SeverityHigh) {
			recs = append(recs, recUrgent)
			break
		}
	}
	if hit.ssh {
		recs = append(recs, recSSH)
	}
	if hit.ftp {
		recs = append(recs, recFTP)
	}
	if hit.http {
		recs = append(recs, recHTTPS)
	}
	if hit.database {
		recs = append(recs, recDatabase)
	}
	recs = append(recs, genericRecommendations...)
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

// exposure 判断是否命中指定端口或协议，并返回命中的端口（去重，保持顺序）。
// 协议匹配只对服务对象生效，ports 格式以端口号为准。
func exposure(host models.NormalizedHost, port int, protocol string) ([]int, bool) {
	ports := matchPorts(host.Ports, port)
	matched := len(ports) > 0
	for _, svc := range host.Services {
		if !svc.HasProtocol(protocol) {
			continue
		}
		matched = true
		if svc.Port != 0 {
			ports = appendUnique(ports, svc.Port)
		}
	}
	return ports, matched
}

func matchPorts(ports []int, want ...int) []int {
	var out []int
	for _, p := range ports {
		for _, w := range want {
			if p == w {
				out = appendUnique(out, p)
			}
		}
	}
	return out
}

func vulnerabilityCount(host models.NormalizedHost) int {
	total := 0
	for _, svc := range host.Services {
		total += svc.Vulnerabilities
	}
	return total
}

func newRisk(text string, severity models.Severity, evidence string) models.Risk {
	return models.Risk{Risk: text, Severity: severity, Evidence: models.StringPtr(evidence)}
}

func appendUnique(ports []int, port int) []int {
	for _, p := range ports {
		if p == port {
			return ports
		}
	}
	return append(ports, port)
}

// onPorts 生成 "port 22" / "ports 80, 8080" 形式的证据片段。
func onPorts(ports []int) string {
	if len(ports) == 0 {
		return "service"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	if len(parts) == 1 {
		return "port " + parts[0]
	}
	return "ports " + strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
