// Package trace 在 context 中传递 trace ID，Log 时每行带 TRACE=id 便于排查。
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"sync"
)

type ctxKey int

const traceIDKey ctxKey = 0

// trace ID 随机字节数，十六进制后为 8 个字符
const traceIDBytes = 4

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

func NewTraceID() string {
	b := make([]byte, traceIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "0"
	}
	return hex.EncodeToString(b)
}

var logMu sync.Mutex

// Log 打日志，每行开头固定为 TRACE=id，便于一眼看到 trace 并 grep
func Log(ctx context.Context, format string, args ...interface{}) {
	id := TraceID(ctx)
	if id == "" {
		id = "-"
	}
	logMu.Lock()
	msg := fmt.Sprintf(format, args...)
	log.Printf("TRACE=%s | %s", id, msg)
	logMu.Unlock()
}

// Echo 面向人的控制台输出（提醒消息回显等），不带 TRACE 前缀，与日志共用锁避免穿插。
func Echo(format string, args ...interface{}) {
	logMu.Lock()
	fmt.Fprintf(os.Stdout, format+"\n", args...)
	logMu.Unlock()
}
