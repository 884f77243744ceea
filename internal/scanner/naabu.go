package scanner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/projectdiscovery/goflags"
	portpkg "github.com/projectdiscovery/naabu/v2/pkg/port"
	"github.com/projectdiscovery/naabu/v2/pkg/result"
	"github.com/projectdiscovery/naabu/v2/pkg/runner"
	"github.com/sirupsen/logrus"

	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/targets"
)

// DefaultPorts 未指定端口时扫描的范围。
const DefaultPorts = "1-65535"

// Options 控制一次 naabu 扫描。
type Options struct {
	// Ports 为空时扫描 DefaultPorts。
	Ports   []int
	Timeout time.Duration
	Rate    int
	Logger  logrus.FieldLogger
}

// Scan 对目标执行 TCP connect 扫描并生成 services 形式的主机记录。
func Scan(ctx context.Context, target targets.Target, opts Options) (models.HostRecord, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	log.WithField("target", target.Primary()).Info("starting naabu scan")
	found, err := runNaabu(ctx, target.ScanList(), opts)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"target":   target.Primary(),
		"open":     len(found),
		"services": portLabels(found),
		"duration": time.Since(start).Truncate(time.Millisecond),
	}).Info("naabu scan completed")

	return Record(target, found)
}

func runNaabu(ctx context.Context, hosts []string, opts Options) ([]OpenPort, error) {
	if len(hosts) == 0 {
		return nil, targets.ErrInvalidTarget
	}

	var mu sync.Mutex
	open := make(map[int]OpenPort)
	onResult := func(hr *result.HostResult) {
		if hr == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, p := range hr.Ports {
			if p == nil {
				continue
			}
			open[p.Port] = fromNaabu(p)
		}
	}

	rate := opts.Rate
	if rate <= 0 {
		rate = 3000
	}
	runOpts := runner.Options{
		Host:             goflags.StringSlice(hosts),
		ScanType:         "c",
		OnResult:         onResult,
		NoColor:          true,
		Verbose:          false,
		Stream:           true,
		Ports:            portList(opts.Ports),
		Retries:          1,
		Rate:             rate,
		Timeout:          5000 * time.Millisecond,
		ServiceDiscovery: true,
	}

	r, err := runner.NewRunner(&runOpts)
	if err != nil {
		return nil, fmt.Errorf("naabu runner init: %w", err)
	}
	defer r.Close()

	if err := r.RunEnumeration(ctx); err != nil {
		return nil, fmt.Errorf("naabu enumeration: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]OpenPort, 0, len(open))
	for _, p := range open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func portList(ports []int) string {
	if len(ports) == 0 {
		return DefaultPorts
	}
	str := make([]string, len(ports))
	for i, p := range ports {
		str[i] = strconv.Itoa(p)
	}
	return strings.Join(str, ",")
}

func fromNaabu(p *portpkg.Port) OpenPort {
	op := OpenPort{Number: p.Port}
	if p.Service == nil {
		return op
	}
	svc := p.Service
	op.Name = svc.Name
	op.Product = svc.Product
	op.Version = svc.Version
	switch {
	case svc.ExtraInfo != "":
		op.Banner = svc.ExtraInfo
	case svc.ServiceFP != "":
		op.Banner = svc.ServiceFP
	}
	return op
}
