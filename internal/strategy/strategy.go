// Package strategy 串起一轮监控：候选扫描 -> 快照并发拉取 -> 涨停分类 -> 规则链 -> 通知。
// 跟踪记录表（代码 -> 记录）由 Strategy 独占持有，tracker 只做纯函数计算。
package strategy

import (
	"context"
	"fmt"
	"time"

	"ztWatch/internal/collector"
	"ztWatch/internal/filter"
	"ztWatch/internal/model"
	"ztWatch/internal/notify"
	"ztWatch/internal/trace"
	"ztWatch/internal/tracker"
)

// QuoteSource 候选来源：返回涨跌幅 > 8% 的股票列表，生产实现为 api.Client。
type QuoteSource interface {
	GetLimitCandidates(ctx context.Context) ([]model.StockQuote, error)
}

// Config 策略参数。
type Config struct {
	// NoticeMaxSeconds 保持涨停通知超时秒数
	NoticeMaxSeconds int
	// Concurrency 快照拉取并发数
	Concurrency int
}

func DefaultConfig() Config {
	return Config{NoticeMaxSeconds: filter.DefaultNoticeMaxSeconds, Concurrency: 10}
}

// Strategy 涨停监控策略：跨轮持有每只候选股的跟踪记录，记录只增不删。
type Strategy struct {
	cfg       Config
	quotes    QuoteSource
	snapshots collector.Fetcher
	notifier  notify.Notifier
	criterion filter.Criterion
	records   map[string]*model.StockLimitRecord
}

func New(cfg Config, quotes QuoteSource, snapshots collector.Fetcher, notifier notify.Notifier) *Strategy {
	if quotes == nil || snapshots == nil {
		panic("strategy: quote source and snapshot fetcher must not be nil")
	}
	if cfg.NoticeMaxSeconds <= 0 {
		cfg.NoticeMaxSeconds = filter.DefaultNoticeMaxSeconds
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Strategy{
		cfg:       cfg,
		quotes:    quotes,
		snapshots: snapshots,
		notifier:  notifier,
		criterion: filter.LimitUpStrategy(),
		records:   make(map[string]*model.StockLimitRecord),
	}
}

// Next 执行一轮：拉候选、并发拉快照（全部完成后才开始分类）、逐只分类与判定。
// 单只股票的快照缺失或脏数据只跳过该股，不会中断整轮；通知失败只记日志。
func (s *Strategy) Next(ctx context.Context, now time.Time) error {
	quotes, err := s.quotes.GetLimitCandidates(ctx)
	if err != nil {
		return fmt.Errorf("strategy: 候选扫描失败: %w", err)
	}
	if len(quotes) == 0 {
		trace.Log(ctx, "strategy: 本轮无候选")
		return nil
	}
	codes := make([]string, 0, len(quotes))
	for i := range quotes {
		codes = append(codes, quotes[i].Code)
	}
	sns := collector.Collect(ctx, s.snapshots, s.cfg.Concurrency, codes)
	trace.Log(ctx, "strategy: 候选 %d 只，快照到手 %d 只", len(quotes), len(sns))

	for i := range quotes {
		q := quotes[i]
		sn, ok := sns[q.Code]
		if !ok {
			continue
		}
		rec, tip := tracker.Apply(s.records[q.Code], q, sn, now)
		s.records[q.Code] = &rec
		if !filter.Triggered(tip, &rec, s.cfg.NoticeMaxSeconds) {
			continue
		}
		if !s.criterion(&rec) {
			continue
		}
		msg := notify.RenderAlert(&rec, tip)
		trace.Echo("%s", msg)
		if s.notifier != nil {
			if err := s.notifier.SendText(ctx, msg); err != nil {
				trace.Log(ctx, "strategy: 通知发送失败 code=%s err=%v", q.Code, err)
			}
		}
	}
	return nil
}

// TrackedCount 当前持有的跟踪记录数（记录只增不删）。
func (s *Strategy) TrackedCount() int {
	return len(s.records)
}
