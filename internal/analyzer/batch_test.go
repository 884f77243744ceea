package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitushen/hostsummary/internal/hostdata"
	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/prompt"
	"github.com/hitushen/hostsummary/internal/realtime"
)

// recordingPublisher 记录所有发布的事件。
type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(evt realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// panicAnalyzer 对指定 host 触发 panic，其余委托给真实分析器。
type panicAnalyzer struct {
	*Analyzer
	panicOn string
}

func (p panicAnalyzer) Analyze(ctx context.Context, record models.HostRecord) (models.HostSummary, error) {
	var probe struct {
		IP string `json:"ip"`
	}
	_ = json.Unmarshal(record, &probe)
	if probe.IP == p.panicOn {
		panic("boom")
	}
	return p.Analyzer.Analyze(ctx, record)
}

func newRuleBatch(t *testing.T) (*Batch, *recordingPublisher, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	a, err := New(Options{Strategy: StrategyRuleBased, Logger: log})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewBatch(a, pub, log), pub, hook
}

func records(raw ...string) []models.HostRecord {
	out := make([]models.HostRecord, len(raw))
	for i, r := range raw {
		out[i] = models.HostRecord(r)
	}
	return out
}

func TestBatchRun_Empty(t *testing.T) {
	b, pub, _ := newRuleBatch(t)

	_, err := b.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	_, err = b.Run(context.Background(), []models.HostRecord{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Empty(t, pub.types())
}

func TestBatchRun_AllHostsKeepInputOrder(t *testing.T) {
	b, _, _ := newRuleBatch(t)
	hosts := records(
		`{"ip":"10.0.0.1","ports":[22]}`,
		`{"ip":"10.0.0.2","services":[{"port":80,"protocol":"http"}]}`,
		`{"hostname":"db.internal","ports":[5432]}`,
	)

	resp, err := b.Run(context.Background(), hosts)
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)

	ids := []string{resp.Items[0].HostID, resp.Items[1].HostID, resp.Items[2].HostID}
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "db.internal"}, ids)
	for _, item := range resp.Items {
		assert.NotEmpty(t, item.Risks)
	}
}

func TestBatchRun_MalformedHostDropped(t *testing.T) {
	b, pub, hook := newRuleBatch(t)
	hosts := records(
		`{"ip":"10.0.0.1","ports":[22]}`,
		`"not an object"`,
		`null`,
		`{"ip":"10.0.0.4","ports":[21]}`,
	)

	resp, err := b.Run(context.Background(), hosts)
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "10.0.0.1", resp.Items[0].HostID)
	assert.Equal(t, "10.0.0.4", resp.Items[1].HostID)

	types := pub.types()
	require.NotEmpty(t, types)
	assert.Equal(t, realtime.EventBatchStarted, types[0])
	assert.Equal(t, realtime.EventBatchCompleted, types[len(types)-1])
	assert.ElementsMatch(t,
		[]string{realtime.EventHostAnalyzed, realtime.EventHostAnalyzed, realtime.EventHostDropped, realtime.EventHostDropped},
		types[1:len(types)-1])

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "analysis complete", last.Message)
	assert.Equal(t, 2, last.Data["successful"])
	assert.Equal(t, 2, last.Data["failed"])
	assert.NotEmpty(t, last.Data["batch_id"])
}

func TestBatchRun_PanicIsolatedToHost(t *testing.T) {
	log, _ := test.NewNullLogger()
	a, err := New(Options{Strategy: StrategyRuleBased, Logger: log})
	require.NoError(t, err)
	b := NewBatch(panicAnalyzer{Analyzer: a, panicOn: "10.0.0.2"}, nil, log)

	resp, err := b.Run(context.Background(), records(
		`{"ip":"10.0.0.1","ports":[22]}`,
		`{"ip":"10.0.0.2","ports":[22]}`,
		`{"ip":"10.0.0.3","ports":[22]}`,
	))
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "10.0.0.1", resp.Items[0].HostID)
	assert.Equal(t, "10.0.0.3", resp.Items[1].HostID)
}

func TestBatchRun_GenerativeStatsAndFallback(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)
	fc := &fakeCompleter{responses: []fakeResponse{{content: "garbage"}}}
	a, err := New(Options{Strategy: StrategyGenerative, Completer: fc, Logger: log})
	require.NoError(t, err)
	b := NewBatch(a, nil, log)

	resp, err := b.Run(context.Background(), records(
		`{"ip":"10.0.0.1","ports":[22]}`,
		`{"ip":"10.0.0.2","ports":[21,3306]}`,
	))
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 2*DefaultMaxAttempts, fc.Calls())
	assert.Equal(t, ruleSummary(t, `{"ip":"10.0.0.2","ports":[21,3306]}`), resp.Items[1])

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "analysis complete", last.Message)
	assert.Equal(t, "1.5", last.Data["avg_risks"])
}

// barrierCompleter 在 n 个调用同时进行之前阻塞所有调用。
type barrierCompleter struct {
	n       int
	once    sync.Once
	release chan struct{}

	mu       sync.Mutex
	inFlight int
	peak     int
}

func newBarrierCompleter(n int) *barrierCompleter {
	return &barrierCompleter{n: n, release: make(chan struct{})}
}

func (b *barrierCompleter) Complete(ctx context.Context, _ prompt.Package) (string, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.peak {
		b.peak = b.inFlight
	}
	if b.inFlight == b.n {
		b.once.Do(func() { close(b.release) })
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()
	select {
	case <-b.release:
		return aiSummary, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestBatchRun_HostsAnalyzedConcurrently(t *testing.T) {
	const n = 5
	log, _ := test.NewNullLogger()
	bc := newBarrierCompleter(n)
	a, err := New(Options{
		Strategy:       StrategyGenerative,
		Completer:      bc,
		MaxAttempts:    1,
		AttemptTimeout: 5 * time.Second,
		Logger:         log,
	})
	require.NoError(t, err)

	hosts := make([]models.HostRecord, n)
	for i := range hosts {
		hosts[i] = models.HostRecord(fmt.Sprintf(`{"ip":"10.0.1.%d","ports":[22]}`, i+1))
	}

	resp, err := NewBatch(a, nil, log).Run(context.Background(), hosts)
	require.NoError(t, err)
	require.Len(t, resp.Items, n)
	assert.Equal(t, n, bc.peak)
	for i, item := range resp.Items {
		assert.Equal(t, fmt.Sprintf("10.0.1.%d", i+1), item.HostID)
		assert.Equal(t, "AI overview", item.Overview)
	}
}

// gatedAnalyzer 让 slow 主机等待 release，fail 主机直接失败，其余委托给真实分析器。
type gatedAnalyzer struct {
	*Analyzer
	slow, fail string
	release    chan struct{}
}

func (g gatedAnalyzer) Analyze(ctx context.Context, record models.HostRecord) (models.HostSummary, error) {
	switch hostdata.HostID(record) {
	case g.slow:
		select {
		case <-g.release:
		case <-ctx.Done():
			return models.HostSummary{}, ctx.Err()
		}
	case g.fail:
		return models.HostSummary{}, ErrHostFailed
	}
	return g.Analyzer.Analyze(ctx, record)
}

func TestBatchRun_SlowHostDoesNotBlockSiblings(t *testing.T) {
	log, _ := test.NewNullLogger()
	a, err := New(Options{Strategy: StrategyRuleBased, Logger: log})
	require.NoError(t, err)
	release := make(chan struct{})
	pub := &recordingPublisher{}
	b := NewBatch(gatedAnalyzer{Analyzer: a, slow: "10.0.0.1", fail: "10.0.0.2", release: release}, pub, log)

	done := make(chan models.SummarizeResponse, 1)
	go func() {
		resp, _ := b.Run(context.Background(), records(
			`{"ip":"10.0.0.1","ports":[22]}`,
			`{"ip":"10.0.0.2","ports":[22]}`,
			`{"ip":"10.0.0.3","ports":[80]}`,
			`{"ip":"10.0.0.4","ports":[21]}`,
		))
		done <- resp
	}()

	siblingsFinished := func() bool {
		analyzed, dropped := 0, 0
		for _, typ := range pub.types() {
			switch typ {
			case realtime.EventHostAnalyzed:
				analyzed++
			case realtime.EventHostDropped:
				dropped++
			}
		}
		return analyzed == 2 && dropped == 1
	}
	require.Eventually(t, siblingsFinished, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, done, 0)

	close(release)
	select {
	case resp := <-done:
		require.Len(t, resp.Items, 3)
		assert.Equal(t, "10.0.0.1", resp.Items[0].HostID)
		assert.Equal(t, "10.0.0.3", resp.Items[1].HostID)
		assert.Equal(t, "10.0.0.4", resp.Items[2].HostID)
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish after the slow host was released")
	}
}
