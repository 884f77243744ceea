package hostdata

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitushen/hostsummary/internal/models"
)

// UnknownHostID 是无法识别主机标识时的占位值。
const UnknownHostID = "unknown"

const unknownProtocol = "unknown"

// ErrNotObject 表示记录本身不是 JSON 对象。
var ErrNotObject = errors.New("host record is not a JSON object")

var idKeys = []string{"ip", "host", "hostname"}

// Normalize 将两种输入格式的主机记录投影为 NormalizedHost。
// 字段缺失或格式异常时降级为空值，只有记录本身不是对象时才返回错误。
func Normalize(record models.HostRecord) (models.NormalizedHost, error) {
	root := gjson.ParseBytes(record)
	if !root.IsObject() {
		return models.NormalizedHost{HostID: UnknownHostID}, ErrNotObject
	}

	host := models.NormalizedHost{HostID: HostID(record)}

	services := root.Get("services")
	if services.IsArray() {
		for _, item := range services.Array() {
			svc := projectService(item)
			if truthy(item.Get("port")) {
				host.Ports = append(host.Ports, svc.Port)
			}
			host.Services = append(host.Services, svc)
		}
		return host, nil
	}

	if ports := root.Get("ports"); ports.Exists() {
		if ports.IsArray() {
			for _, p := range ports.Array() {
				host.Ports = append(host.Ports, toInt(p))
			}
		}
		if services.IsObject() {
			host.ServiceNames = make(map[int]string)
			services.ForEach(func(key, value gjson.Result) bool {
				if port, err := strconv.Atoi(strings.TrimSpace(key.String())); err == nil {
					host.ServiceNames[port] = value.String()
				}
				return true
			})
		}
	}
	return host, nil
}

// HostID 依次尝试 ip、host、hostname，取第一个真值并转为字符串。
func HostID(record models.HostRecord) string {
	root := gjson.ParseBytes(record)
	if !root.IsObject() {
		return UnknownHostID
	}
	for _, key := range idKeys {
		v := root.Get(key)
		if !truthy(v) {
			continue
		}
		if v.Type == gjson.String {
			return v.String()
		}
		return v.Raw
	}
	return UnknownHostID
}

// ServiceCount 返回 services 数组长度，没有时返回 ports 长度。
func ServiceCount(record models.HostRecord) int {
	root := gjson.ParseBytes(record)
	if services := root.Get("services"); services.IsArray() {
		return len(services.Array())
	}
	if ports := root.Get("ports"); ports.IsArray() {
		return len(ports.Array())
	}
	return 0
}

func projectService(item gjson.Result) models.ServiceObject {
	if !item.IsObject() {
		return models.ServiceObject{}
	}
	svc := models.ServiceObject{
		Port:     toInt(item.Get("port")),
		Protocol: unknownProtocol,
	}
	if p := item.Get("protocol"); present(p) {
		svc.Protocol = p.String()
	} else if n := item.Get("name"); present(n) {
		svc.Protocol = n.String()
	}
	if software := item.Get("software"); software.IsArray() {
		for _, sw := range software.Array() {
			if !sw.IsObject() {
				continue
			}
			svc.Software = append(svc.Software, models.Software{
				Product: sw.Get("product").String(),
				Version: sw.Get("version").String(),
			})
		}
	}
	if banner := item.Get("banner"); banner.Type == gjson.String {
		svc.Banner = banner.String()
	}
	if vulns := item.Get("vulnerabilities"); vulns.IsArray() {
		svc.Vulnerabilities = len(vulns.Array())
	}
	return svc
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

// truthy 按 JSON 值的真假语义判断：空串、0、false、null、空数组/对象均为假。
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True:
		return true
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		n := 0
		v.ForEach(func(_, _ gjson.Result) bool {
			n++
			return false
		})
		return n > 0
	default:
		return false
	}
}

func toInt(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		return int(v.Int())
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
