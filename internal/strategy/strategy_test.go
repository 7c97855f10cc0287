package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ztWatch/internal/model"
)

var t0 = time.Date(2026, 8, 21, 9, 40, 0, 0, time.Local)

type fakeQuotes struct {
	quotes []model.StockQuote
	err    error
}

func (f *fakeQuotes) GetLimitCandidates(context.Context) ([]model.StockQuote, error) {
	return f.quotes, f.err
}

type fakeSnapshots struct {
	sns  map[string]model.QuoteSnapshot
	fail map[string]bool
}

func (f *fakeSnapshots) GetQuoteSnapshot(_ context.Context, code string) (model.QuoteSnapshot, error) {
	if f.fail[code] {
		return model.QuoteSnapshot{}, fmt.Errorf("fetch %s failed", code)
	}
	sn, ok := f.sns[code]
	if !ok {
		return model.QuoteSnapshot{}, fmt.Errorf("unknown code %s", code)
	}
	return sn, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *recordingNotifier) SendText(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

func candidate(code, name string) model.StockQuote {
	return model.StockQuote{
		Code:             code,
		Name:             name,
		ChangePct:        9.9,
		TotalMarketValue: 5e9,
		CircMarketValue:  4e9,
	}
}

// passingSnapshot 规则链全过的快照。
func passingSnapshot(price, top float64) model.QuoteSnapshot {
	sn := model.QuoteSnapshot{
		Price:         price,
		TopPrice:      top,
		BottomPrice:   top * 0.8,
		TurnoverRate:  8.0,
		TradingVolume: 350000,
		TradingAmount: 4e8,
	}
	sn.BuyPrice[0] = price
	sn.BuyCount[0] = 30000
	return sn
}

// 第一轮未涨停、40 秒后上穿涨停：刚涨停且距离上次离板 40 秒，规则链全过 -> 通知
func TestNextNotifiesOnJustHitAfterHold(t *testing.T) {
	quotes := &fakeQuotes{quotes: []model.StockQuote{candidate("000001", "测试股份")}}
	snaps := &fakeSnapshots{sns: map[string]model.QuoteSnapshot{"000001": passingSnapshot(9.50, 10.00)}}
	sink := &recordingNotifier{}
	s := New(DefaultConfig(), quotes, snaps, sink)

	require.NoError(t, s.Next(context.Background(), t0))
	assert.Empty(t, sink.messages())

	snaps.sns["000001"] = passingSnapshot(10.00, 10.00)
	require.NoError(t, s.Next(context.Background(), t0.Add(40*time.Second)))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "000001")
	assert.Contains(t, msgs[0], "测试股份")
	assert.Contains(t, msgs[0], string(model.TipJustHit))
	assert.Contains(t, msgs[0], "涨停保持秒数: 40")
}

// 首次观测即涨停：保持秒数为 0，规则 6（>=30 秒）挡住，不通知
func TestNextFirstSightingAtLimitNotNotified(t *testing.T) {
	quotes := &fakeQuotes{quotes: []model.StockQuote{candidate("000001", "测试股份")}}
	snaps := &fakeSnapshots{sns: map[string]model.QuoteSnapshot{"000001": passingSnapshot(10.00, 10.00)}}
	sink := &recordingNotifier{}
	s := New(DefaultConfig(), quotes, snaps, sink)

	require.NoError(t, s.Next(context.Background(), t0))
	assert.Empty(t, sink.messages())
}

// 保持涨停 40 秒 > 通知超时 33 秒：触发门挡住
func TestNextHoldingPastNoticeWindowNotNotified(t *testing.T) {
	quotes := &fakeQuotes{quotes: []model.StockQuote{candidate("000001", "测试股份")}}
	snaps := &fakeSnapshots{sns: map[string]model.QuoteSnapshot{"000001": passingSnapshot(10.00, 10.00)}}
	sink := &recordingNotifier{}
	s := New(DefaultConfig(), quotes, snaps, sink)

	require.NoError(t, s.Next(context.Background(), t0))
	require.NoError(t, s.Next(context.Background(), t0.Add(40*time.Second)))
	assert.Empty(t, sink.messages())
}

// 市值 5e8 低于 10 亿下限：刚涨停也不通知
func TestNextSmallCapNotNotified(t *testing.T) {
	q := candidate("000001", "测试股份")
	q.TotalMarketValue = 5e8
	quotes := &fakeQuotes{quotes: []model.StockQuote{q}}
	snaps := &fakeSnapshots{sns: map[string]model.QuoteSnapshot{"000001": passingSnapshot(9.50, 10.00)}}
	sink := &recordingNotifier{}
	s := New(DefaultConfig(), quotes, snaps, sink)

	require.NoError(t, s.Next(context.Background(), t0))
	snaps.sns["000001"] = passingSnapshot(10.00, 10.00)
	require.NoError(t, s.Next(context.Background(), t0.Add(40*time.Second)))
	assert.Empty(t, sink.messages())
}

// 快照拉取失败的股票本轮被跳过：不建记录也不影响其余股票
func TestNextSkipsFailedSnapshot(t *testing.T) {
	quotes := &fakeQuotes{quotes: []model.StockQuote{candidate("000001", "甲"), candidate("600000", "乙")}}
	snaps := &fakeSnapshots{
		sns:  map[string]model.QuoteSnapshot{"000001": passingSnapshot(9.50, 10.00)},
		fail: map[string]bool{"600000": true},
	}
	s := New(DefaultConfig(), quotes, snaps, &recordingNotifier{})

	require.NoError(t, s.Next(context.Background(), t0))
	assert.Equal(t, 1, s.TrackedCount())
}

// 记录只增不删：候选消失后记录保留
func TestNextRecordsRetained(t *testing.T) {
	quotes := &fakeQuotes{quotes: []model.StockQuote{candidate("000001", "甲")}}
	snaps := &fakeSnapshots{sns: map[string]model.QuoteSnapshot{"000001": passingSnapshot(9.50, 10.00)}}
	s := New(DefaultConfig(), quotes, snaps, &recordingNotifier{})

	require.NoError(t, s.Next(context.Background(), t0))
	require.Equal(t, 1, s.TrackedCount())

	quotes.quotes = nil
	require.NoError(t, s.Next(context.Background(), t0.Add(3*time.Second)))
	assert.Equal(t, 1, s.TrackedCount())
}

func TestNextScanFailureReturnsError(t *testing.T) {
	quotes := &fakeQuotes{err: fmt.Errorf("http 500")}
	s := New(DefaultConfig(), quotes, &fakeSnapshots{}, &recordingNotifier{})
	err := s.Next(context.Background(), t0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "候选扫描失败"))
}

// 通知渠道失败不影响 Next 的返回值与跟踪状态
func TestNextNotifierFailureNonFatal(t *testing.T) {
	quotes := &fakeQuotes{quotes: []model.StockQuote{candidate("000001", "测试股份")}}
	snaps := &fakeSnapshots{sns: map[string]model.QuoteSnapshot{"000001": passingSnapshot(9.50, 10.00)}}
	sink := &recordingNotifier{err: fmt.Errorf("webhook down")}
	s := New(DefaultConfig(), quotes, snaps, sink)

	require.NoError(t, s.Next(context.Background(), t0))
	snaps.sns["000001"] = passingSnapshot(10.00, 10.00)
	require.NoError(t, s.Next(context.Background(), t0.Add(40*time.Second)))
	assert.Equal(t, 1, s.TrackedCount())
}
