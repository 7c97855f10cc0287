// Package main 是 A 股涨停监控程序入口：盘中轮询涨跌幅 > 8% 的候选股，
// 跟踪涨停状态变化，命中规则链时推送提醒（控制台/企业微信/邮件）。
// 支持单轮运行（once）、持续监控（watch）与调度模式（每个交易日 09:15 自动开始）。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"ztWatch/internal/api"
	"ztWatch/internal/config"
	"ztWatch/internal/notify"
	"ztWatch/internal/session"
	"ztWatch/internal/strategy"
	"ztWatch/internal/trace"
)

// 调度模式：每个交易日（周一至周五）09:15 开始一轮监控会话
const scheduleCronSpec = "15 9 * * 1-5"

// 刷新提示时间格式
const timeFormatRefresh = "01-02 15:04:05"

var flagTestMode bool

var rootCmd = &cobra.Command{
	Use:   "ztwatch",
	Short: "A 股涨停监控：跟踪涨停状态并按规则链推送提醒",
	Long: `ztwatch 盘中轮询涨跌幅 > 8% 的候选股，对每只股票跟踪涨停状态变化
（刚涨停 / 保持涨停 / 涨停炸板），命中风控规则链时推送文本提醒。

配置经 .env 或环境变量加载（ZTWATCH_ 前缀），详见 internal/config。`,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "持续监控：交易时段内循环刷新，Ctrl+C 或收盘后结束",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置: %w", err)
		}
		if flagTestMode {
			cfg.Watch.TestMode = true
		}
		if cfg.Watch.Schedule {
			return runScheduler(cfg)
		}
		runSession(cfg)
		return nil
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "只执行一轮扫描与判定后退出（忽略交易时段）",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置: %w", err)
		}
		ctx := trace.WithTraceID(context.Background(), trace.NewTraceID())
		strat := buildStrategy(cfg)
		if err := strat.Next(ctx, time.Now()); err != nil {
			trace.Log(ctx, "once: %v", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagTestMode, "test", false, "测试模式：不管是否在交易时段都执行")
	rootCmd.AddCommand(watchCmd, onceCmd)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildStrategy 按配置组装通知渠道与策略。
func buildStrategy(cfg *config.Config) *strategy.Strategy {
	apiClient := api.NewClient()
	var sinks notify.Multi
	if cfg.Webhook.Enabled() {
		sinks = append(sinks, notify.NewWebhook(cfg.Webhook.URL))
	}
	if cfg.SMTP.Enabled() {
		sinks = append(sinks, notify.NewMail(&cfg.SMTP))
	}
	return strategy.New(strategy.Config{
		NoticeMaxSeconds: cfg.Watch.NoticeMaxSeconds,
		Concurrency:      cfg.Watch.Concurrency,
	}, apiClient, apiClient, sinks)
}

// runSession 跑一个监控会话：运行标志有效且在交易时段（或测试模式）时循环刷新。
// 刷新节奏只受拉取+处理耗时约束；停止信号在轮与轮之间生效，不会打断进行中的一轮。
func runSession(cfg *config.Config) {
	ctx := trace.WithTraceID(context.Background(), trace.NewTraceID())
	sess := session.New()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		trace.Log(ctx, "main: 收到信号 %v，本轮结束后停止", sig)
		sess.Stop()
	}()

	strat := buildStrategy(cfg)
	trace.Log(ctx, "main: 会话开始 testMode=%v noticeMaxSeconds=%d", cfg.Watch.TestMode, cfg.Watch.NoticeMaxSeconds)
	for sess.Running() && (session.InSession(time.Now()) || cfg.Watch.TestMode) {
		now := time.Now()
		trace.Echo("[%s] 刷新", now.Format(timeFormatRefresh))
		cycleCtx := trace.WithTraceID(context.Background(), trace.NewTraceID())
		if err := strat.Next(cycleCtx, now); err != nil {
			// 单轮失败不终止会话，下一轮重试
			trace.Log(cycleCtx, "main: %v", err)
		}
	}
	trace.Echo("今日监控结束")
}

// runScheduler 常驻进程：每个交易日 09:15 由 cron 启动一轮监控会话；
// 启动时若已在交易时段则立即开始一轮。
func runScheduler(cfg *config.Config) error {
	ctx := trace.WithTraceID(context.Background(), trace.NewTraceID())
	trace.Log(ctx, "main: 调度模式启动 cron=%q", scheduleCronSpec)
	c := cron.New()
	if _, err := c.AddFunc(scheduleCronSpec, func() { runSession(cfg) }); err != nil {
		return fmt.Errorf("注册调度任务: %w", err)
	}
	if session.InSession(time.Now()) || cfg.Watch.TestMode {
		go runSession(cfg)
	}
	c.Run()
	return nil
}
