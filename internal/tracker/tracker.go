// Package tracker 对每轮快照做涨停状态分类：刚涨停 / 保持涨停 / 涨停炸板 / 未涨停。
// Apply 是 (旧记录, 新快照, now) -> (新记录, 标签) 的纯函数，不读墙钟，便于用合成时间做单测。
package tracker

import (
	"math"
	"time"

	"ztWatch/internal/model"
)

// Epsilon 涨停价比较容差：涨停价保留两位小数，浮点噪声不能造成漏判。
const Epsilon = 0.01

// Apply 用最新快照更新跟踪记录并给出状态标签。
// prev 为 nil 表示首次观测：先以 LastOffLimitTime=now、上一轮价=当前价补全默认值，
// 保证分类逻辑不会落在半初始化状态上。
//
// 分支顺序（保留原始行为，包括容差内回落也判炸板这一分支）：
//  1. |涨停价-现价| <= Epsilon 时：
//     首次观测或价格上穿 -> 刚涨停，更新 LastAtLimitTime；
//     价格不变           -> 保持涨停，更新 LastAtLimitTime；
//     价格回落           -> 涨停炸板，更新 LastOffLimitTime。
//  2. 否则 -> 未涨停，更新 LastOffLimitTime。
//
// LastAtLimitTime 只在涨停分支写入，LastOffLimitTime 只在非涨停/炸板分支写入，
// 因此涨停分类后 HoldSeconds 恒为"距上次离开涨停的时长"。
func Apply(prev *model.StockLimitRecord, q model.StockQuote, sn model.QuoteSnapshot, now time.Time) (model.StockLimitRecord, model.Tip) {
	first := prev == nil
	var rec model.StockLimitRecord
	if first {
		rec = model.StockLimitRecord{
			Code:             q.Code,
			Name:             q.Name,
			Price:            sn.Price,
			LastOffLimitTime: now,
		}
	} else {
		rec = *prev
	}

	atLimit := math.Abs(sn.TopPrice-sn.Price) <= Epsilon
	tip := model.TipNone
	if atLimit {
		switch {
		case first || sn.Price > rec.Price:
			tip = model.TipJustHit
			rec.LastAtLimitTime = now
		case sn.Price == rec.Price:
			tip = model.TipHolding
			rec.LastAtLimitTime = now
		default:
			// 价格回落但仍在容差内：按炸板处理
			tip = model.TipBreak
			rec.LastOffLimitTime = now
		}
	} else {
		rec.LastOffLimitTime = now
	}

	// 不管有没有涨停均覆盖行情字段
	rec.Price = sn.Price
	rec.TopPrice = sn.TopPrice
	rec.BottomPrice = sn.BottomPrice
	rec.ObservedAt = now
	rec.TotalMarketValue = q.TotalMarketValue
	rec.CircMarketValue = q.CircMarketValue
	rec.TurnoverRate = sn.TurnoverRate
	rec.TradingVolume = sn.TradingVolume
	rec.TradingAmount = sn.TradingAmount
	rec.SellPrice = sn.SellPrice
	rec.SellCount = sn.SellCount
	rec.BuyPrice = sn.BuyPrice
	rec.BuyCount = sn.BuyCount
	return rec, tip
}
