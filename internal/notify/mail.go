// SMTP 邮件通知渠道：把涨停提醒以纯文本邮件发出。
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"ztWatch/internal/config"
	"ztWatch/internal/trace"
)

const (
	smtpTimeout     = 15 * time.Second
	defaultSMTPPort = 587
	smtpSSLPort     = 465
	mailSubject     = "涨停提醒"
)

// Mail SMTP 邮件渠道，配置不全时视为关闭（SendText 直接返回 nil）。
type Mail struct {
	cfg *config.SMTP
}

func NewMail(cfg *config.SMTP) *Mail {
	return &Mail{cfg: cfg}
}

func (m *Mail) SendText(ctx context.Context, msg string) error {
	if m == nil || m.cfg == nil || !m.cfg.Enabled() {
		return nil
	}
	toList := strings.Split(m.cfg.To, ",")
	for i := range toList {
		toList[i] = strings.TrimSpace(toList[i])
	}
	trace.Log(ctx, "notify: 邮件发送 to=%s len=%d", m.cfg.To, len(msg))
	if err := m.send(mailSubject, msg, toList); err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	return nil
}

func (m *Mail) send(subject, textBody string, to []string) error {
	cfg := m.cfg
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(port))

	var conn net.Conn
	var err error
	if port == smtpSSLPort {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp", addr, &tls.Config{ServerName: cfg.Server})
	} else {
		conn, err = net.DialTimeout("tcp", addr, smtpTimeout)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if port != smtpSSLPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, t := range to {
		if t == "" {
			continue
		}
		if err := client.Rcpt(t); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", t, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n",
		cfg.From, strings.Join(to, ","), subject)
	if _, err := w.Write([]byte(headers + textBody)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}
