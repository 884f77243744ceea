package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/hitushen/hostsummary/internal/hostdata"
	"github.com/hitushen/hostsummary/internal/llm"
	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/prompt"
	"github.com/hitushen/hostsummary/internal/rules"
	"github.com/hitushen/hostsummary/internal/validate"
)

// DefaultMaxAttempts 是生成式策略的默认尝试次数。
const DefaultMaxAttempts = 3

// ErrHostFailed 表示单台主机最终没有产出摘要，批处理时该主机会被丢弃。
var ErrHostFailed = errors.New("host analysis failed")

// Strategy 表示分析策略，进程启动时确定。
type Strategy int

const (
	StrategyRuleBased Strategy = iota
	StrategyGenerative
)

// Mode 返回健康检查中展示的模式名。
func (s Strategy) Mode() string {
	if s == StrategyGenerative {
		return "AI"
	}
	return "Mock"
}

func (s Strategy) String() string {
	if s == StrategyGenerative {
		return "generative"
	}
	return "rule-based"
}

// Options 构造 Analyzer 所需的参数。
type Options struct {
	Strategy       Strategy
	Completer      llm.Completer
	MaxAttempts    int
	AttemptTimeout time.Duration
	// MockDelay 在规则策略下模拟处理耗时，0 表示不等待。
	MockDelay time.Duration
	Logger    logrus.FieldLogger
}

// Analyzer 负责单台主机的分析：生成式策略带重试，失败后回退到规则策略。
type Analyzer struct {
	strategy       Strategy
	completer      llm.Completer
	maxAttempts    int
	attemptTimeout time.Duration
	mockDelay      time.Duration
	log            logrus.FieldLogger
}

// New 校验参数并创建 Analyzer。
func New(opts Options) (*Analyzer, error) {
	if opts.Strategy == StrategyGenerative && opts.Completer == nil {
		return nil, errors.New("generative strategy requires a completer")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Analyzer{
		strategy:       opts.Strategy,
		completer:      opts.Completer,
		maxAttempts:    opts.MaxAttempts,
		attemptTimeout: opts.AttemptTimeout,
		mockDelay:      opts.MockDelay,
		log:            opts.Logger,
	}, nil
}

// Strategy 返回当前策略。
func (a *Analyzer) Strategy() Strategy {
	return a.strategy
}

// Mode 返回 "AI" 或 "Mock"。
func (a *Analyzer) Mode() string {
	return a.strategy.Mode()
}

// Analyze 分析单条主机记录。生成式策略失败时回退到规则策略，
// 只有记录不是对象或等待被取消时才返回 ErrHostFailed。
func (a *Analyzer) Analyze(ctx context.Context, record models.HostRecord) (models.HostSummary, error) {
	host, err := hostdata.Normalize(record)
	if err != nil {
		return models.HostSummary{}, fmt.Errorf("%w: %w", ErrHostFailed, err)
	}
	if a.strategy == StrategyGenerative {
		return a.generate(ctx, record, host), nil
	}
	return a.ruleBased(ctx, host)
}

func (a *Analyzer) ruleBased(ctx context.Context, host models.NormalizedHost) (models.HostSummary, error) {
	if a.mockDelay > 0 {
		timer := time.NewTimer(a.mockDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.HostSummary{}, fmt.Errorf("%w: %w", ErrHostFailed, ctx.Err())
		case <-timer.C:
		}
	}
	return rules.Summarize(host), nil
}

type phase int

const (
	phaseAttempting phase = iota
	phaseSucceeded
	phaseFallback
)

// attemptState 是重试状态机的当前状态：attempting(n) -> succeeded | attempting(n+1) | fallback。
type attemptState struct {
	phase   phase
	attempt int
	summary models.HostSummary
	errs    *multierror.Error
}

func (a *Analyzer) generate(ctx context.Context, record models.HostRecord, host models.NormalizedHost) models.HostSummary {
	log := a.log.WithField("host_id", host.HostID)
	pkg := prompt.Build(record)
	log.WithField("estimated_tokens", prompt.EstimateTokens(pkg.System+pkg.User)).Debug("built analysis prompt")

	st := attemptState{phase: phaseAttempting}
	for st.phase == phaseAttempting {
		st = a.step(ctx, pkg, host.HostID, st)
	}

	if st.phase == phaseSucceeded {
		log.WithFields(logrus.Fields{
			"attempt":         st.attempt,
			"risks":           len(st.summary.Risks),
			"recommendations": len(st.summary.Recommendations),
		}).Info("AI analysis successful")
		return st.summary
	}

	log.WithFields(logrus.Fields{
		"attempts": st.attempt,
		"error":    st.errs.ErrorOrNil(),
	}).Warn("all AI attempts failed, falling back to rule-based analysis")
	return rules.Summarize(host)
}

// step 执行一次尝试并返回下一个状态。
func (a *Analyzer) step(ctx context.Context, pkg prompt.Package, hostID string, st attemptState) attemptState {
	st.attempt++
	summary, err := a.attempt(ctx, pkg, hostID)
	if err == nil {
		st.phase = phaseSucceeded
		st.summary = summary
		return st
	}

	a.log.WithFields(logrus.Fields{
		"host_id": hostID,
		"attempt": st.attempt,
	}).WithError(err).Warn("AI attempt failed")
	st.errs = multierror.Append(st.errs, fmt.Errorf("attempt %d: %w", st.attempt, err))

	if st.attempt >= a.maxAttempts || ctx.Err() != nil {
		st.phase = phaseFallback
	}
	return st
}

func (a *Analyzer) attempt(ctx context.Context, pkg prompt.Package, hostID string) (models.HostSummary, error) {
	callCtx := ctx
	if a.attemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.attemptTimeout)
		defer cancel()
	}
	content, err := a.completer.Complete(callCtx, pkg)
	if err != nil {
		if !errors.Is(err, llm.ErrTransport) {
			err = fmt.Errorf("%w: %v", llm.ErrTransport, err)
		}
		return models.HostSummary{}, err
	}
	a.log.WithFields(logrus.Fields{
		"host_id":        hostID,
		"response_bytes": len(content),
	}).Debug("AI response received")
	return validate.CleanAndParse(content, hostID)
}
