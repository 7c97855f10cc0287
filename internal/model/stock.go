// Package model 定义候选行情、五档快照、涨停跟踪记录等数据结构。
package model

import "time"

// BookLevels 五档档位数（买1~买5 / 卖1~卖5）。
const BookLevels = 5

// Tip 涨停状态变化标签，由 tracker 对每轮快照分类得出。
type Tip string

const (
	// TipJustHit 刚涨停：首次观测即在涨停价，或价格上穿到涨停价。
	TipJustHit Tip = "刚涨停"
	// TipHolding 保持涨停：价格与上一轮相同且仍在涨停价。
	TipHolding Tip = "保持涨停"
	// TipBreak 涨停炸板：价格较上一轮回落（仍在涨停价容差内也算炸板，保留原始行为）。
	TipBreak Tip = "涨停炸板"
	// TipNone 未涨停。
	TipNone Tip = ""
)

// StockQuote 候选列表单条：代码、名称、涨跌幅、总市值、流通市值。
// 上游扫描已按涨跌幅 > 8% 过滤。
type StockQuote struct {
	Code             string
	Name             string
	ChangePct        float64
	TotalMarketValue float64 // 总市值(元)
	CircMarketValue  float64 // 流通市值(元)
}

// QuoteSnapshot 单只股票的实时五档快照。
// 价格单位为元，成交量与档位挂单量单位为手，成交额单位为元。
type QuoteSnapshot struct {
	Price         float64
	TopPrice      float64 // 涨停价
	BottomPrice   float64 // 跌停价
	TurnoverRate  float64 // 换手率(%)
	TradingVolume float64 // 成交量(手)
	TradingAmount float64 // 成交额(元)
	SellPrice     [BookLevels]float64
	SellCount     [BookLevels]float64
	BuyPrice      [BookLevels]float64
	BuyCount      [BookLevels]float64
}

// StockLimitRecord 单只股票的涨停跟踪记录：首次进入候选集时创建，
// 之后每轮刷新都会被覆盖更新，进程存续期内不删除。
type StockLimitRecord struct {
	Code string
	Name string

	Price       float64 // 最新价
	TopPrice    float64 // 涨停价
	BottomPrice float64 // 跌停价

	LastAtLimitTime  time.Time // 最近一次处于涨停价的时刻
	LastOffLimitTime time.Time // 最近一次不在涨停价的时刻
	ObservedAt       time.Time // 最近一次刷新时刻

	TotalMarketValue float64
	CircMarketValue  float64
	TurnoverRate     float64
	TradingVolume    float64
	TradingAmount    float64
	SellPrice        [BookLevels]float64
	SellCount        [BookLevels]float64
	BuyPrice         [BookLevels]float64
	BuyCount         [BookLevels]float64
}

// HoldSeconds 涨停保持秒数 = 最近涨停时刻 - 最近非涨停时刻。
// 仅在刚完成一次涨停分类（刚涨停/保持涨停）后读取才有意义。
func (r *StockLimitRecord) HoldSeconds() int {
	return int(r.LastAtLimitTime.Sub(r.LastOffLimitTime) / time.Second)
}
