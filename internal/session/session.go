// Package session 提供监控会话上下文：运行标志（只能 true -> false，由 Stop 触发）
// 与交易时段判断。驱动循环每轮开始前各查询一次，轮内不中断。
package session

import (
	"sync"
	"time"
)

// 交易时段（本地时区），含集合竞价
const (
	sessionStartHour   = 9
	sessionStartMinute = 15
	sessionEndHour     = 15
	sessionEndMinute   = 0
)

// Session 一次监控会话：创建即处于运行态，Stop 后不再开启新一轮。
type Session struct {
	mu      sync.Mutex
	running bool
}

func New() *Session {
	return &Session{running: true}
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop 结束会话。只允许 运行 -> 停止 的单向转移，重复调用无害。
func (s *Session) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// InSession 是否在 09:15:00 - 15:00:00 交易时段内。
func InSession(now time.Time) bool {
	minutes := now.Hour()*60 + now.Minute()
	start := sessionStartHour*60 + sessionStartMinute
	end := sessionEndHour*60 + sessionEndMinute
	return minutes >= start && minutes <= end
}
