// Package api 封装东方财富行情接口（候选扫描与五档快照），含请求节流、重试与 trace 日志。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"ztWatch/internal/model"
	"ztWatch/internal/trace"
)

// 环境变量名（API 节流与并发，可选覆盖）
const (
	envAPIDelayMS       = "ZTWATCH_API_DELAY_MS"
	envAPIJitterMS      = "ZTWATCH_API_JITTER_MS"
	envAPIMaxConcurrent = "ZTWATCH_API_MAX_CONCURRENT"
)

// 东方财富接口地址
const (
	EastMoneyListURL     = "https://82.push2.eastmoney.com/api/qt/clist/get"
	EastMoneySnapshotURL = "https://push2.eastmoney.com/api/qt/stock/get"
	// 沪深 A 股全市场
	listFSAllAShares = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"
)

// 列表接口请求字段：f2 现价 f3 涨跌幅(%) f12 代码 f14 名称 f20 总市值 f21 流通市值
const listFieldsCandidates = "f2,f3,f12,f14,f20,f21"

// 快照接口请求字段：f43 现价 f47 成交量 f48 成交额 f51 涨停价 f52 跌停价 f168 换手率
// 买档 f19/f20 买1价量 ... f11/f12 买5价量；卖档 f39/f40 卖1价量 ... f31/f32 卖5价量
const snapshotFields = "f43,f47,f48,f51,f52,f168," +
	"f19,f20,f17,f18,f15,f16,f13,f14,f11,f12," +
	"f39,f40,f37,f38,f35,f36,f33,f34,f31,f32"

// CandidateChangePctMin 候选门槛：涨跌幅需大于 8%，接近涨停才进入跟踪。
const CandidateChangePctMin = 8.0

// 分页
const listPageSize = 500

// 请求超时与重试
const (
	defaultHTTPTimeout = 5 * time.Second
	maxRetries         = 3
	retryDelay         = 500 * time.Millisecond
	retryDelay429      = 5 * time.Second
	httpStatusTooMany  = 429
)

// 防封：请求间隔、抖动、并发上限
const (
	maxRespLogLen        = 1200
	defaultRequestGap    = 200 * time.Millisecond
	defaultRequestJitter = 150
	defaultMaxConcurrent = 4
	maxConcurrentCap     = 20
)

// 请求头（模拟浏览器）
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer        = "https://quote.eastmoney.com/"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

var (
	requestGap    = defaultRequestGap
	requestJitter = defaultRequestJitter
	maxConcurrent = defaultMaxConcurrent
	concurrentSem chan struct{}
	lastReqTime   time.Time
	lastReqMu     sync.Mutex
	requestGapMu  sync.Mutex
)

func init() {
	if s := os.Getenv(envAPIDelayMS); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && ms > 0 {
			requestGap = time.Duration(ms) * time.Millisecond
		}
	}
	if s := os.Getenv(envAPIJitterMS); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
			requestJitter = ms
		}
	}
	n := defaultMaxConcurrent
	if s := os.Getenv(envAPIMaxConcurrent); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			n = v
			if n > maxConcurrentCap {
				n = maxConcurrentCap
			}
			maxConcurrent = n
		}
	}
	concurrentSem = make(chan struct{}, maxConcurrent)
}

type Client struct {
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: defaultHTTPTimeout}}
}

func paceRequest(ctx context.Context) {
	requestGapMu.Lock()
	gap := requestGap
	jitter := requestJitter
	requestGapMu.Unlock()
	if gap <= 0 && jitter <= 0 {
		return
	}
	lastReqMu.Lock()
	elapsed := time.Since(lastReqTime)
	lastReqMu.Unlock()
	d := gap - elapsed
	if jitter > 0 {
		d += time.Duration(rand.Intn(jitter+1)) * time.Millisecond
	}
	if d > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
	lastReqMu.Lock()
	lastReqTime = time.Now()
	lastReqMu.Unlock()
}

func (c *Client) doWithRetry(ctx context.Context, method, url string) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryDelay
			if lastStatus == httpStatusTooMany {
				backoff = retryDelay429
				trace.Log(ctx, "api: 429 限流，等待 %s 后重试", backoff)
			} else {
				trace.Log(ctx, "api: retry %d/%d %s", attempt, maxRetries, url)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		paceRequest(ctx)
		select {
		case concurrentSem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			<-concurrentSem
			lastErr = err
			continue
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", referer)
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Accept-Language", acceptLanguage)
		trace.Log(ctx, "api: req %s %s", method, url)
		resp, err := client.Do(req)
		if err != nil {
			<-concurrentSem
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastStatus = resp.StatusCode
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			<-concurrentSem
			trace.Log(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(body), truncateForLog(body))
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			continue
		}
		lastStatus = 0
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			<-concurrentSem
			lastErr = err
			continue
		}
		_ = resp.Body.Close()
		trace.Log(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(body), truncateForLog(body))
		resp.Body = &releaseOnClose{Reader: bytes.NewReader(body), release: func() { <-concurrentSem }}
		return resp, nil
	}
	trace.Log(ctx, "api: doWithRetry fail url=%s err=%v", url, lastErr)
	return nil, lastErr
}

type releaseOnClose struct {
	io.Reader
	release func()
}

func (r *releaseOnClose) Close() error {
	if r.release != nil {
		r.release()
		r.release = nil
	}
	return nil
}

func truncateForLog(b []byte) string {
	s := string(b)
	if len(b) > maxRespLogLen {
		s = s[:maxRespLogLen] + "..."
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}

// GetLimitCandidates 扫描沪深 A 股列表，返回涨跌幅 > 8% 的候选（接近涨停）。
// 停牌等涨跌幅非数值（"-"）的行直接剔除。
func (c *Client) GetLimitCandidates(ctx context.Context) ([]model.StockQuote, error) {
	var list []model.StockQuote
	page := 1
	trace.Log(ctx, "api: GetLimitCandidates start")
	for {
		url := fmt.Sprintf("%s?pn=%d&pz=%d&po=1&fid=f3&fs=%s&fields=%s",
			EastMoneyListURL, page, listPageSize, listFSAllAShares, listFieldsCandidates)
		resp, err := c.doWithRetry(ctx, http.MethodGet, url)
		if err != nil {
			return nil, err
		}
		total, count, err := decodeCandidateListStream(ctx, resp.Body, &list)
		_ = resp.Body.Close()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if count == 0 {
			break
		}
		if total <= page*listPageSize || count < listPageSize {
			break
		}
		page++
	}
	trace.Log(ctx, "api: GetLimitCandidates done len=%d", len(list))
	return list, nil
}

// decodeCandidateListStream 解析列表接口 JSON：根对象下 data.total、data.diff（数组或对象 "0","1",...）。
// 单条用 gjson 取值：涨跌幅非数值或不过 8% 门槛的行丢弃。
func decodeCandidateListStream(ctx context.Context, r io.Reader, list *[]model.StockQuote) (total int, count int, err error) {
	dec := json.NewDecoder(r)
	if t, err := dec.Token(); err != nil {
		return 0, 0, err
	} else if d, ok := t.(json.Delim); !ok || d != '{' {
		return 0, 0, fmt.Errorf("expected {")
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return total, count, err
		}
		s, ok := key.(string)
		if !ok || s != "data" {
			if err := skipValue(dec); err != nil {
				return total, count, err
			}
			continue
		}
		if t, err := dec.Token(); err != nil {
			return total, count, err
		} else if d, ok := t.(json.Delim); !ok || d != '{' {
			return total, count, fmt.Errorf("expected data {")
		}
		for dec.More() {
			k, err := dec.Token()
			if err != nil {
				return total, count, err
			}
			ks, ok := k.(string)
			if !ok {
				return total, count, fmt.Errorf("expected key")
			}
			if ks == "total" {
				var n json.Number
				if err := dec.Decode(&n); err != nil {
					return total, count, err
				}
				v, _ := n.Int64()
				total = int(v)
				continue
			}
			if ks == "diff" {
				t, err := dec.Token()
				if err != nil {
					return total, count, err
				}
				d, ok := t.(json.Delim)
				if !ok {
					trace.Log(ctx, "api: data.diff 非数组/对象已跳过 total=%d", total)
					count = 0
					continue
				}
				start := len(*list)
				rows := 0
				if d == '[' {
					for dec.More() {
						if err := decodeCandidateItem(dec, list); err != nil {
							return total, rows, err
						}
						rows++
					}
					if _, err := dec.Token(); err != nil {
						return total, rows, err
					}
				} else if d == '{' {
					for dec.More() {
						if _, err := dec.Token(); err != nil {
							return total, rows, err
						}
						if err := decodeCandidateItem(dec, list); err != nil {
							return total, rows, err
						}
						rows++
					}
					if _, err := dec.Token(); err != nil {
						return total, rows, err
					}
				} else {
					trace.Log(ctx, "api: data.diff 非数组/对象已跳过 total=%d", total)
					count = 0
					continue
				}
				count = rows
				trace.Log(ctx, "api: 本页 %d 行，过门槛 %d 行", rows, len(*list)-start)
				continue
			}
			if err := skipValue(dec); err != nil {
				return total, count, err
			}
		}
		if _, err := dec.Token(); err != nil {
			return total, count, err
		}
		break
	}
	return total, count, nil
}

// decodeCandidateItem 解析 data.diff 单条：f2 现价 f3 涨跌幅 f12 代码 f14 名称 f20 总市值 f21 流通市值。
func decodeCandidateItem(dec *json.Decoder, list *[]model.StockQuote) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	item := gjson.ParseBytes(raw)
	code := strings.TrimSpace(item.Get("f12").String())
	if code == "" {
		return nil
	}
	// 停牌等场景 f3 返回 "-"，非数值直接剔除
	changePct := item.Get("f3")
	if changePct.Type != gjson.Number {
		return nil
	}
	if changePct.Float() <= CandidateChangePctMin {
		return nil
	}
	*list = append(*list, model.StockQuote{
		Code:             code,
		Name:             item.Get("f14").String(),
		ChangePct:        changePct.Float(),
		TotalMarketValue: item.Get("f20").Float(),
		CircMarketValue:  item.Get("f21").Float(),
	})
	return nil
}

// GetQuoteSnapshot 拉取单只股票的实时五档快照（fltt=2 返回已除权的小数价格）。
// 现价或涨停价非数值（集合竞价前、停牌）按该股当轮失败处理。
func (c *Client) GetQuoteSnapshot(ctx context.Context, code string) (model.QuoteSnapshot, error) {
	var sn model.QuoteSnapshot
	if code == "" {
		return sn, fmt.Errorf("invalid code")
	}
	url := fmt.Sprintf("%s?secid=%s&invt=2&fltt=2&fields=%s", EastMoneySnapshotURL, FormatCode(code), snapshotFields)
	resp, err := c.doWithRetry(ctx, http.MethodGet, url)
	if err != nil {
		return sn, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sn, fmt.Errorf("read snapshot body: %w", err)
	}
	return parseSnapshotGJSON(body, code)
}

func parseSnapshotGJSON(body []byte, code string) (model.QuoteSnapshot, error) {
	var sn model.QuoteSnapshot
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || !data.IsObject() {
		return sn, fmt.Errorf("api: no snapshot data for %s", code)
	}
	price := data.Get("f43")
	topPrice := data.Get("f51")
	if price.Type != gjson.Number || topPrice.Type != gjson.Number {
		return sn, fmt.Errorf("api: snapshot %s 现价/涨停价非数值", code)
	}
	sn.Price = price.Float()
	sn.TopPrice = topPrice.Float()
	sn.BottomPrice = data.Get("f52").Float()
	sn.TurnoverRate = data.Get("f168").Float()
	sn.TradingVolume = data.Get("f47").Float()
	sn.TradingAmount = data.Get("f48").Float()
	// 买1~买5：f19/f20 ... f11/f12；卖1~卖5：f39/f40 ... f31/f32
	buyFields := [model.BookLevels][2]string{{"f19", "f20"}, {"f17", "f18"}, {"f15", "f16"}, {"f13", "f14"}, {"f11", "f12"}}
	sellFields := [model.BookLevels][2]string{{"f39", "f40"}, {"f37", "f38"}, {"f35", "f36"}, {"f33", "f34"}, {"f31", "f32"}}
	for i := 0; i < model.BookLevels; i++ {
		sn.BuyPrice[i] = data.Get(buyFields[i][0]).Float()
		sn.BuyCount[i] = data.Get(buyFields[i][1]).Float()
		sn.SellPrice[i] = data.Get(sellFields[i][0]).Float()
		sn.SellCount[i] = data.Get(sellFields[i][1]).Float()
	}
	return sn, nil
}

// FormatCode 转为东方财富 secid：上海 1.600519，深圳 0.000001
func FormatCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "0.000000"
	}
	if code[0] == '6' || code[0] == '5' || code[0] == '9' {
		return "1." + code
	}
	return "0." + code
}

func skipValue(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}
	switch d := t.(type) {
	case json.Delim:
		if d == '{' || d == '[' {
			n := 1
			for n > 0 {
				tt, err := dec.Token()
				if err != nil {
					return err
				}
				if dd, ok := tt.(json.Delim); ok {
					if dd == '{' || dd == '[' {
						n++
					} else {
						n--
					}
				}
			}
		}
	}
	return nil
}
