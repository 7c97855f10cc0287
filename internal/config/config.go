// Package config 从 .env 文件与环境变量加载配置（envconfig 自动映射）。
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 环境变量前缀：ZTWATCH_WATCH_NOTICE_MAX_SECONDS 等
const envPrefix = "ztwatch"

// Watch 监控循环参数。
type Watch struct {
	// TestMode 为 true 时不管是否在交易时段都执行
	TestMode bool `envconfig:"TEST_MODE" default:"false"`
	// Schedule 为 true 时常驻进程，每个交易日 09:15 由 cron 启动一轮监控
	Schedule bool `envconfig:"SCHEDULE" default:"false"`
	// NoticeMaxSeconds 保持涨停通知超时秒数，涨停保持秒数超过它则不再通知
	NoticeMaxSeconds int `envconfig:"NOTICE_MAX_SECONDS" default:"33"`
	// Concurrency 快照拉取并发数
	Concurrency int `envconfig:"CONCURRENCY" default:"10"`
}

// SMTP 邮件通知配置，Server/From/To 齐全才启用。
type SMTP struct {
	Server   string `envconfig:"SERVER"`
	Port     int    `envconfig:"PORT" default:"587"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM"`
	To       string `envconfig:"TO"`
}

func (s *SMTP) Enabled() bool {
	return strings.TrimSpace(s.Server) != "" &&
		strings.TrimSpace(s.From) != "" &&
		strings.TrimSpace(s.To) != ""
}

// Webhook 企业微信机器人推送配置，URL 非空即启用。
type Webhook struct {
	URL string `envconfig:"URL"`
}

func (w *Webhook) Enabled() bool {
	return strings.TrimSpace(w.URL) != ""
}

// Config 全部配置，按前缀嵌套：ZTWATCH_WATCH_* / ZTWATCH_SMTP_* / ZTWATCH_WEBHOOK_*。
type Config struct {
	Watch   Watch   `envconfig:"WATCH"`
	SMTP    SMTP    `envconfig:"SMTP"`
	Webhook Webhook `envconfig:"WEBHOOK"`
}

// Load 先读 .env（不存在则忽略），再由环境变量映射覆盖。
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}
	if cfg.Watch.Concurrency <= 0 {
		cfg.Watch.Concurrency = 10
	}
	if cfg.SMTP.From == "" && cfg.SMTP.User != "" {
		cfg.SMTP.From = cfg.SMTP.User
	}
	return cfg, nil
}
