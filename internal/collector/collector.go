// Package collector 提供快照拉取任务池：消费候选代码，并发拉五档快照后输出。
// 一轮内所有拉取完成后才返回（fan-in 屏障）；单只失败按"本轮跳过该股"处理。
package collector

import (
	"context"
	"sync"

	"ztWatch/internal/model"
	"ztWatch/internal/trace"
)

const (
	defaultConcurrency = 10
	jobChannelBuffer   = 50
)

// Fetcher 快照来源，生产实现为 api.Client。
type Fetcher interface {
	GetQuoteSnapshot(ctx context.Context, code string) (model.QuoteSnapshot, error)
}

// Result 单只股票的拉取结果。
type Result struct {
	Code     string
	Snapshot model.QuoteSnapshot
}

// Config 控制并发数。
type Config struct {
	Concurrency int
}

func DefaultConfig() Config {
	return Config{Concurrency: defaultConcurrency}
}

// Pool 从 jobs 取股票代码，拉快照后写入 results；失败只记日志不输出。
type Pool struct {
	cfg     Config
	fetcher Fetcher
	jobs    <-chan string
	out     chan<- Result
}

func NewPool(cfg Config, fetcher Fetcher, jobs <-chan string, results chan<- Result) *Pool {
	if fetcher == nil {
		panic("collector: fetcher must not be nil")
	}
	if jobs == nil || results == nil {
		panic("collector: jobs and results channels must not be nil")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Pool{cfg: cfg, fetcher: fetcher, jobs: jobs, out: results}
}

func (p *Pool) Run(ctx context.Context) {
	trace.Log(ctx, "collector: Pool.Run start concurrency=%d", p.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
	close(p.out)
	trace.Log(ctx, "collector: Pool.Run done")
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case code, ok := <-p.jobs:
			if !ok {
				return
			}
			sn, err := p.fetcher.GetQuoteSnapshot(ctx, code)
			if err != nil {
				trace.Log(ctx, "collector: GetQuoteSnapshot code=%s err=%v（本轮跳过）", code, err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case p.out <- Result{Code: code, Snapshot: sn}:
			}
		}
	}
}

// Collect 一轮候选的快照并发拉取：投喂全部代码并阻塞到所有拉取完成，
// 返回 代码 -> 快照；拉取失败的代码不在结果里。
func Collect(ctx context.Context, fetcher Fetcher, concurrency int, codes []string) map[string]model.QuoteSnapshot {
	sns := make(map[string]model.QuoteSnapshot, len(codes))
	if len(codes) == 0 {
		return sns
	}
	jobs := make(chan string, jobChannelBuffer)
	results := make(chan Result, jobChannelBuffer)
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	pool := NewPool(cfg, fetcher, jobs, results)

	done := make(chan struct{})
	go func() {
		for r := range results {
			sns[r.Code] = r.Snapshot
		}
		close(done)
	}()

	go pool.Run(ctx)

	for i := range codes {
		select {
		case <-ctx.Done():
			trace.Log(ctx, "collector: ctx done, produced %d jobs", i)
			goto produced
		case jobs <- codes[i]:
		}
	}
produced:
	close(jobs)
	<-done
	return sns
}
