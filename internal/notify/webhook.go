// 企业微信群机器人文本推送。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	webhookTimeout    = 10 * time.Second
	maxWebhookRespLen = 300
)

// Webhook 企业微信群机器人渠道：POST {"msgtype":"text","text":{"content":...}}。
type Webhook struct {
	URL        string
	HTTPClient *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:        url,
		HTTPClient: &http.Client{Timeout: webhookTimeout},
	}
}

type webhookText struct {
	Content string `json:"content"`
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

func (w *Webhook) SendText(ctx context.Context, msg string) error {
	if w == nil || w.URL == "" {
		return nil
	}
	body, err := json.Marshal(webhookPayload{MsgType: "text", Text: webhookText{Content: msg}})
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := w.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookRespLen))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, respBody)
	}
	// 企业微信返回 200 但 errcode 非 0 也算失败
	if code := gjson.GetBytes(respBody, "errcode"); code.Exists() && code.Int() != 0 {
		return fmt.Errorf("webhook errcode=%d errmsg=%s", code.Int(), gjson.GetBytes(respBody, "errmsg").String())
	}
	return nil
}
