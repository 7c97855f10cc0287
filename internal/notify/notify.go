// Package notify 定义通知能力接口与各类通知渠道：控制台回显、企业微信机器人、SMTP 邮件。
// 通知是尽力而为的 at-most-once：发送失败只记日志，不重试，不影响跟踪状态。
package notify

import (
	"context"
	"fmt"
	"strings"

	"ztWatch/internal/model"
	"ztWatch/internal/trace"
)

// 提醒消息时间格式
const timeFormatAlert = "2006-01-02 15:04:05"

// Notifier 文本通知能力，可替换为控制台/webhook/邮件等不同渠道。
type Notifier interface {
	SendText(ctx context.Context, msg string) error
}

// RenderAlert 渲染涨停提醒消息：代码、名称、市值、换手、量额、现价、
// 买1~买5 封单量、状态标签、涨停保持秒数与观测时间。
func RenderAlert(r *model.StockLimitRecord, tip model.Tip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "股票代码: %s\n", r.Code)
	fmt.Fprintf(&b, "股票名称: %s\n", r.Name)
	fmt.Fprintf(&b, "总市值: %.0f\n", r.TotalMarketValue)
	fmt.Fprintf(&b, "换手率: %.2f\n", r.TurnoverRate)
	fmt.Fprintf(&b, "成交量: %.0f\n", r.TradingVolume)
	fmt.Fprintf(&b, "成交额: %.0f\n", r.TradingAmount)
	fmt.Fprintf(&b, "最新价: %.2f\n", r.Price)
	b.WriteString("- 封单情况 -\n")
	for i := 0; i < model.BookLevels; i++ {
		fmt.Fprintf(&b, "买 %d: %.0f\n", i+1, r.BuyCount[i])
	}
	fmt.Fprintf(&b, "- %s -\n", tip)
	fmt.Fprintf(&b, "- 涨停保持秒数: %d -\n", r.HoldSeconds())
	b.WriteString(r.ObservedAt.Format(timeFormatAlert))
	return b.String()
}

// Console 控制台回显渠道，永不失败。
type Console struct{}

func (Console) SendText(_ context.Context, msg string) error {
	trace.Echo("%s", msg)
	return nil
}

// Multi 把同一条消息发往多个渠道；单个渠道失败记日志后继续，整体始终返回 nil。
type Multi []Notifier

func (m Multi) SendText(ctx context.Context, msg string) error {
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendText(ctx, msg); err != nil {
			trace.Log(ctx, "notify: 渠道 %T 发送失败 err=%v", n, err)
		}
	}
	return nil
}
