package targets

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidTarget 表示输入无法解析出主机。
var ErrInvalidTarget = errors.New("invalid target address")

// Target 是一次实时扫描的对象：用户输入的主机以及解析出的 IP。
type Target struct {
	Host string
	IPs  []string
}

// Normalize 从 URL、host:port、[v6]:port 等写法中提取小写主机名或 IP。
func Normalize(address string) string {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, "://") {
		if u, err := url.Parse(addr); err == nil && u.Host != "" {
			addr = u.Host
		}
	}
	addr = strings.TrimPrefix(addr, "//")

	// user:pass@host
	if at := strings.LastIndex(addr, "@"); at != -1 {
		addr = addr[at+1:]
	}
	if cut := strings.IndexAny(addr, "/?#"); cut != -1 {
		addr = addr[:cut]
	}

	if strings.HasPrefix(addr, "[") {
		if end := strings.Index(addr, "]"); end != -1 {
			addr = addr[1:end]
		}
	} else if strings.Count(addr, ":") == 1 {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
	}
	return strings.ToLower(strings.Trim(addr, "[] "))
}

// Resolve 标准化输入，主机名会额外解析出 IP 地址。解析失败不视为错误。
func Resolve(ctx context.Context, address string) (Target, error) {
	host := Normalize(address)
	if host == "" {
		return Target{}, ErrInvalidTarget
	}
	t := Target{Host: host}
	if ip := net.ParseIP(host); ip != nil {
		t.IPs = []string{ip.String()}
		return t, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return t, nil
	}
	seen := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		if _, ok := seen[ip.String()]; ok {
			continue
		}
		seen[ip.String()] = struct{}{}
		t.IPs = append(t.IPs, ip.String())
	}
	return t, nil
}

// Primary 返回作为 host_id 的地址：优先第一个 IP，否则主机名。
func (t Target) Primary() string {
	if len(t.IPs) > 0 {
		return t.IPs[0]
	}
	return t.Host
}

// Hostname 在输入不是 IP 时返回主机名。
func (t Target) Hostname() string {
	if net.ParseIP(t.Host) != nil {
		return ""
	}
	return t.Host
}

// ScanList 返回去重后的扫描目标列表。
func (t Target) ScanList() []string {
	out := make([]string, 0, len(t.IPs)+1)
	seen := make(map[string]struct{}, len(t.IPs)+1)
	for _, v := range append([]string{t.Host}, t.IPs...) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
