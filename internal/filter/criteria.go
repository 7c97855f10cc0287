// Package filter 定义涨停提醒条件（Criterion）与组合方式（And/Or），
// LimitUpStrategy 为规则链入口，ShouldNotify 为触发门 + 规则链的完整判定。
package filter

import (
	"ztWatch/internal/model"
)

// Criterion 单条条件：入参为更新后的跟踪记录，返回是否通过。
// 规则链为严格 AND，首个失败即短路；各条件相互独立，顺序只影响效率。
type Criterion func(*model.StockLimitRecord) bool

func And(cs ...Criterion) Criterion {
	return func(r *model.StockLimitRecord) bool {
		if r == nil {
			return false
		}
		for _, c := range cs {
			if c == nil {
				continue
			}
			if !c(r) {
				return false
			}
		}
		return true
	}
}

func Or(cs ...Criterion) Criterion {
	return func(r *model.StockLimitRecord) bool {
		if r == nil {
			return false
		}
		for _, c := range cs {
			if c == nil {
				continue
			}
			if c(r) {
				return true
			}
		}
		return false
	}
}

// 规则链阈值（市值/价格/换手/成交额占比/封单占比/保持秒数）
const (
	totalMarketValueMin = 1e9  // 总市值下限 10 亿
	totalMarketValueMax = 1e11 // 总市值上限 1000 亿
	priceMin            = 3
	priceMax            = 20
	turnoverRateMin     = 5.0
	turnoverRateMax     = 15.0
	amountRatioMin      = 0.05
	amountRatioMax      = 0.15
	buyDepthRatioMin    = 0.005 // 买1挂单总额/总市值下限，低于则可能撤单出货
	holdSecondsMin      = 30
	sharesPerLot        = 100 // 每手股数，换算封单金额用
)

// DefaultNoticeMaxSeconds 保持涨停通知超时秒数默认值。
const DefaultNoticeMaxSeconds = 33

func TotalMarketValueRange(min, max float64) Criterion {
	return func(r *model.StockLimitRecord) bool {
		return r.TotalMarketValue >= min && r.TotalMarketValue <= max
	}
}

func PriceRange(min, max float64) Criterion {
	return func(r *model.StockLimitRecord) bool { return r.Price >= min && r.Price <= max }
}

func TurnoverRateRange(min, max float64) Criterion {
	return func(r *model.StockLimitRecord) bool {
		return r.TurnoverRate >= min && r.TurnoverRate <= max
	}
}

// AmountRatioRange 成交额/总市值占比区间。市值非正视为脏数据，不通过。
func AmountRatioRange(min, max float64) Criterion {
	return func(r *model.StockLimitRecord) bool {
		if r.TotalMarketValue <= 0 {
			return false
		}
		ratio := r.TradingAmount / r.TotalMarketValue
		return ratio >= min && ratio <= max
	}
}

// BuyDepthRatioMin 买1封单总额(手数×每手股数×买1价)占总市值比例下限。
func BuyDepthRatioMin(min float64) Criterion {
	return func(r *model.StockLimitRecord) bool {
		if r.TotalMarketValue <= 0 {
			return false
		}
		return r.BuyCount[0]*sharesPerLot*r.BuyPrice[0]/r.TotalMarketValue >= min
	}
}

func HoldSecondsMin(min int) Criterion {
	return func(r *model.StockLimitRecord) bool { return r.HoldSeconds() >= min }
}

// LimitUpStrategy 涨停提醒规则链：市值 10亿~1000亿、价格 3~20 元、换手 5%~15%、
// 成交额占市值 5%~15%、买1封单占市值 ≥0.5%、涨停保持 ≥30 秒。
func LimitUpStrategy() Criterion {
	return And(
		TotalMarketValueRange(totalMarketValueMin, totalMarketValueMax),
		PriceRange(priceMin, priceMax),
		TurnoverRateRange(turnoverRateMin, turnoverRateMax),
		AmountRatioRange(amountRatioMin, amountRatioMax),
		BuyDepthRatioMin(buyDepthRatioMin),
		HoldSecondsMin(holdSecondsMin),
	)
}

// Triggered 触发门：刚涨停必进规则链；保持涨停仅在保持秒数不超过 noticeMaxSeconds 时
// 进规则链（涨停太久再提醒已无意义）；炸板与未涨停不提醒。
func Triggered(tip model.Tip, r *model.StockLimitRecord, noticeMaxSeconds int) bool {
	switch tip {
	case model.TipJustHit:
		return true
	case model.TipHolding:
		return r != nil && r.HoldSeconds() <= noticeMaxSeconds
	default:
		return false
	}
}

// ShouldNotify 完整判定：触发门 + 规则链，不修改记录。
func ShouldNotify(tip model.Tip, r *model.StockLimitRecord, noticeMaxSeconds int) bool {
	if !Triggered(tip, r, noticeMaxSeconds) {
		return false
	}
	return LimitUpStrategy()(r)
}
