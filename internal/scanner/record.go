package scanner

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/services/fingerprint"
	"github.com/hitushen/hostsummary/internal/targets"
)

// OpenPort 是扫描发现的开放端口及其服务识别结果。
type OpenPort struct {
	Number  int
	Name    string
	Product string
	Version string
	Banner  string
}

// Label 返回端口的展示名称：产品+版本 > 产品 > 服务名 > 常见端口名。
func (p OpenPort) Label() string {
	switch {
	case p.Product != "" && p.Version != "":
		return fmt.Sprintf("%s %s", p.Product, p.Version)
	case p.Product != "":
		return p.Product
	case p.Name != "":
		return p.Name
	}
	return fingerprint.NameForPort(p.Number)
}

// portLabels 生成日志中使用的端口摘要，例如 "22/OpenSSH 9.6"。
func portLabels(open []OpenPort) []string {
	labels := make([]string, 0, len(open))
	for _, p := range open {
		if label := p.Label(); label != "" {
			labels = append(labels, fmt.Sprintf("%d/%s", p.Number, label))
			continue
		}
		labels = append(labels, strconv.Itoa(p.Number))
	}
	return labels
}

type recordSoftware struct {
	Product string `json:"product"`
	Version string `json:"version,omitempty"`
}

type recordService struct {
	Port     int              `json:"port"`
	Protocol string           `json:"protocol"`
	Software []recordSoftware `json:"software,omitempty"`
	Banner   string           `json:"banner,omitempty"`
}

type record struct {
	IP       string          `json:"ip"`
	Hostname string          `json:"hostname,omitempty"`
	Services []recordService `json:"services"`
}

// Record 把扫描结果转换为 services 形式的主机记录，可直接交给分析器。
func Record(target targets.Target, open []OpenPort) (models.HostRecord, error) {
	rec := record{
		IP:       target.Primary(),
		Hostname: target.Hostname(),
		Services: make([]recordService, 0, len(open)),
	}
	for _, p := range open {
		if p.Number <= 0 {
			continue
		}
		svc := recordService{
			Port:     p.Number,
			Protocol: protocolName(p),
			Banner:   p.Banner,
		}
		if p.Product != "" {
			svc.Software = []recordSoftware{{Product: p.Product, Version: p.Version}}
		}
		rec.Services = append(rec.Services, svc)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode host record: %w", err)
	}
	return models.HostRecord(data), nil
}

func protocolName(p OpenPort) string {
	if p.Name != "" {
		return p.Name
	}
	if name := fingerprint.NameForPort(p.Number); name != "" {
		return name
	}
	return "unknown"
}
