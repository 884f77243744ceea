package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hitushen/hostsummary/internal/hostdata"
	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/realtime"
)

// ErrEmptyBatch 表示请求中没有任何主机。
var ErrEmptyBatch = errors.New("no hosts provided")

// HostAnalyzer 是批处理依赖的单主机分析接口。
type HostAnalyzer interface {
	Analyze(ctx context.Context, record models.HostRecord) (models.HostSummary, error)
	Strategy() Strategy
}

// Publisher 接收批处理进度事件。
type Publisher interface {
	Publish(evt realtime.Event)
}

// Batch 并发分析一批主机，单台失败不影响其他主机。
type Batch struct {
	analyzer  HostAnalyzer
	publisher Publisher
	log       logrus.FieldLogger
}

// NewBatch 创建批处理器，publisher 可以为 nil。
func NewBatch(a HostAnalyzer, publisher Publisher, logger logrus.FieldLogger) *Batch {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Batch{analyzer: a, publisher: publisher, log: logger}
}

// outcome 是单台主机的分析结果：摘要或失败原因二选一。
type outcome struct {
	summary models.HostSummary
	err     error
}

// Run 为每台主机启动一个协程，等待全部结束后按输入顺序汇总成功的结果。
func (b *Batch) Run(ctx context.Context, hosts []models.HostRecord) (models.SummarizeResponse, error) {
	if len(hosts) == 0 {
		return models.SummarizeResponse{}, ErrEmptyBatch
	}

	batchID := uuid.NewString()
	log := b.log.WithField("batch_id", batchID)
	log.WithFields(logrus.Fields{
		"hosts": len(hosts),
		"mode":  b.analyzer.Strategy().Mode(),
	}).Info("analyzing hosts")
	b.publish(realtime.Event{
		Type:    realtime.EventBatchStarted,
		BatchID: batchID,
		Payload: map[string]interface{}{"hosts": len(hosts), "mode": b.analyzer.Strategy().Mode()},
	})

	results := make([]outcome, len(hosts))
	var g errgroup.Group
	for i, record := range hosts {
		g.Go(func() error {
			results[i] = b.analyzeOne(ctx, record)
			b.publishOutcome(batchID, i, results[i])
			return nil
		})
	}
	_ = g.Wait()

	items := make([]models.HostSummary, 0, len(hosts))
	totalRisks := 0
	for i, res := range results {
		if res.err != nil {
			log.WithFields(logrus.Fields{
				"index":   i,
				"host_id": hostdata.HostID(hosts[i]),
			}).WithError(res.err).Error("host dropped from batch")
			continue
		}
		items = append(items, res.summary)
		totalRisks += len(res.summary.Risks)
	}

	fields := logrus.Fields{
		"successful": len(items),
		"failed":     len(hosts) - len(items),
	}
	if b.analyzer.Strategy() == StrategyGenerative && len(items) > 0 {
		fields["avg_risks"] = fmt.Sprintf("%.1f", float64(totalRisks)/float64(len(items)))
	}
	log.WithFields(fields).Info("analysis complete")
	b.publish(realtime.Event{
		Type:    realtime.EventBatchCompleted,
		BatchID: batchID,
		Payload: map[string]interface{}(fields),
	})

	return models.SummarizeResponse{Items: items}, nil
}

func (b *Batch) analyzeOne(ctx context.Context, record models.HostRecord) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: fmt.Errorf("%w: panic: %v", ErrHostFailed, r)}
		}
	}()
	summary, err := b.analyzer.Analyze(ctx, record)
	return outcome{summary: summary, err: err}
}

func (b *Batch) publishOutcome(batchID string, index int, res outcome) {
	if res.err != nil {
		b.publish(realtime.Event{
			Type:    realtime.EventHostDropped,
			BatchID: batchID,
			Payload: map[string]interface{}{"index": index, "error": res.err.Error()},
		})
		return
	}
	b.publish(realtime.Event{
		Type:    realtime.EventHostAnalyzed,
		BatchID: batchID,
		HostID:  res.summary.HostID,
		Payload: map[string]interface{}{"index": index, "risks": len(res.summary.Risks)},
	})
}

func (b *Batch) publish(evt realtime.Event) {
	if b.publisher == nil {
		return
	}
	b.publisher.Publish(evt)
}
