package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ztWatch/internal/model"
)

var baseTime = time.Date(2026, 8, 21, 9, 40, 0, 0, time.Local)

func quote() model.StockQuote {
	return model.StockQuote{
		Code:             "000001",
		Name:             "测试股份",
		ChangePct:        9.8,
		TotalMarketValue: 5e9,
		CircMarketValue:  4e9,
	}
}

func snapshot(price, top float64) model.QuoteSnapshot {
	sn := model.QuoteSnapshot{
		Price:         price,
		TopPrice:      top,
		BottomPrice:   top * 0.8,
		TurnoverRate:  8.5,
		TradingVolume: 350000,
		TradingAmount: 3.5e8,
	}
	sn.BuyPrice[0] = price
	sn.BuyCount[0] = 30000
	return sn
}

func TestApplyFirstSightingAtLimit(t *testing.T) {
	// 首次观测 价格 9.99 涨停价 10.00：容差内，判刚涨停
	rec, tip := Apply(nil, quote(), snapshot(9.99, 10.00), baseTime)

	assert.Equal(t, model.TipJustHit, tip)
	assert.Equal(t, baseTime, rec.LastAtLimitTime)
	assert.Equal(t, baseTime, rec.LastOffLimitTime) // 首次观测的默认值
	assert.Equal(t, "000001", rec.Code)
	assert.Equal(t, "测试股份", rec.Name)
	assert.Equal(t, 9.99, rec.Price)
	assert.Equal(t, 5e9, rec.TotalMarketValue)
}

func TestApplyHoldingKeepsLimitTime(t *testing.T) {
	rec, tip := Apply(nil, quote(), snapshot(10.00, 10.00), baseTime)
	require.Equal(t, model.TipJustHit, tip)

	// 40 秒后价格不变：保持涨停，保持秒数 = 40
	later := baseTime.Add(40 * time.Second)
	rec2, tip2 := Apply(&rec, quote(), snapshot(10.00, 10.00), later)

	assert.Equal(t, model.TipHolding, tip2)
	assert.Equal(t, later, rec2.LastAtLimitTime)
	assert.Equal(t, baseTime, rec2.LastOffLimitTime)
	assert.Equal(t, 40, rec2.HoldSeconds())
}

func TestApplyIdempotentSnapshotIsHoldingNotJustHit(t *testing.T) {
	rec, _ := Apply(nil, quote(), snapshot(10.00, 10.00), baseTime)
	// 同一快照再喂一次：第二次必须是保持涨停而不是刚涨停
	_, tip := Apply(&rec, quote(), snapshot(10.00, 10.00), baseTime)
	assert.Equal(t, model.TipHolding, tip)
}

func TestApplyBreakWithinEpsilon(t *testing.T) {
	// 价格回落但仍在容差内：按炸板处理（保留原始行为）
	rec, _ := Apply(nil, quote(), snapshot(10.00, 10.00), baseTime)
	later := baseTime.Add(5 * time.Second)
	rec2, tip := Apply(&rec, quote(), snapshot(9.99, 10.00), later)

	assert.Equal(t, model.TipBreak, tip)
	assert.Equal(t, later, rec2.LastOffLimitTime)
	assert.Equal(t, baseTime, rec2.LastAtLimitTime) // 涨停时刻不被炸板分支改写
}

func TestApplyOffLimit(t *testing.T) {
	rec, _ := Apply(nil, quote(), snapshot(10.00, 10.00), baseTime)
	later := baseTime.Add(10 * time.Second)
	rec2, tip := Apply(&rec, quote(), snapshot(9.50, 10.00), later)

	assert.Equal(t, model.TipNone, tip)
	assert.Equal(t, later, rec2.LastOffLimitTime)
	assert.Equal(t, 9.50, rec2.Price)
}

func TestApplyRisingToLimitIsJustHit(t *testing.T) {
	rec, tip := Apply(nil, quote(), snapshot(9.50, 10.00), baseTime)
	require.Equal(t, model.TipNone, tip)

	later := baseTime.Add(40 * time.Second)
	rec2, tip2 := Apply(&rec, quote(), snapshot(10.00, 10.00), later)

	assert.Equal(t, model.TipJustHit, tip2)
	assert.Equal(t, 40, rec2.HoldSeconds()) // 距上次离开涨停 40 秒
}

// 价格在涨停价 ±ε 内时永远不会判为未涨停
func TestApplyNearLimitNeverNone(t *testing.T) {
	prices := []float64{9.99, 10.00, 10.01}
	var prev *model.StockLimitRecord
	now := baseTime
	for _, p := range prices {
		rec, tip := Apply(prev, quote(), snapshot(p, 10.00), now)
		assert.NotEqual(t, model.TipNone, tip, "price=%v", p)
		assert.Contains(t, []model.Tip{model.TipJustHit, model.TipHolding, model.TipBreak}, tip)
		prev = &rec
		now = now.Add(3 * time.Second)
	}
}

// now 单调不减时，涨停分类后 HoldSeconds 恒 >= 0
func TestApplyHoldSecondsNonNegative(t *testing.T) {
	prices := []float64{9.50, 10.00, 10.00, 9.99, 10.00, 10.00}
	var prev *model.StockLimitRecord
	now := baseTime
	for _, p := range prices {
		rec, tip := Apply(prev, quote(), snapshot(p, 10.00), now)
		if tip == model.TipJustHit || tip == model.TipHolding {
			assert.GreaterOrEqual(t, rec.HoldSeconds(), 0, "price=%v", p)
		}
		prev = &rec
		now = now.Add(7 * time.Second)
	}
}

func TestApplyOverwritesMarketFields(t *testing.T) {
	rec, _ := Apply(nil, quote(), snapshot(9.50, 10.00), baseTime)

	sn := snapshot(9.60, 10.00)
	sn.TurnoverRate = 12.3
	sn.TradingAmount = 9.9e8
	sn.BuyCount[0] = 55555
	q := quote()
	q.TotalMarketValue = 6e9
	later := baseTime.Add(3 * time.Second)
	rec2, _ := Apply(&rec, q, sn, later)

	assert.Equal(t, 12.3, rec2.TurnoverRate)
	assert.Equal(t, 9.9e8, rec2.TradingAmount)
	assert.Equal(t, 55555.0, rec2.BuyCount[0])
	assert.Equal(t, 6e9, rec2.TotalMarketValue)
	assert.Equal(t, later, rec2.ObservedAt)
}

// Apply 是纯函数：不得修改传入的旧记录
func TestApplyDoesNotMutatePrev(t *testing.T) {
	rec, _ := Apply(nil, quote(), snapshot(10.00, 10.00), baseTime)
	before := rec
	_, _ = Apply(&rec, quote(), snapshot(9.50, 10.00), baseTime.Add(time.Second))
	assert.Equal(t, before, rec)
}
