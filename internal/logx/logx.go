package logx

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/xid"
)

var Error = tint.Err //nolint:gochecknoglobals

const (
	FieldRunID      = "run-id"
	FieldRequestID  = "request-id"
	FieldCard       = "card"
	FieldVendor     = "vendor"
	FieldURL        = "url"
	FieldStatus     = "status"
	FieldDurationMs = "duration-ms"
	FieldState      = "state"
	FieldPrice      = "price"
)

// Options 控制日志输出。日志只写 stderr（或调用方给定的 writer），不污染 stdout 的 JSON 契约。
type Options struct {
	Level   slog.Level
	NoColor bool
}

// New 构造 tint 文本 handler 的 logger。
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	}))
}

// ParseLevel 解析 debug/info/warn/error；无法识别时回退 info。
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Discard 返回丢弃一切输出的 logger（测试与未注入 logger 时使用）。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard 在 l 为 nil 时返回 Discard()。
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// WithRunID 为一次运行生成 run id，并同时挂到 logger 与 ctx 上。
func WithRunID(ctx context.Context, l *slog.Logger) (context.Context, *slog.Logger, string) {
	id := xid.New().String()
	return context.WithValue(ctx, runIDKey{}, id), l.With(slog.String(FieldRunID, id)), id
}

type runIDKey struct{}

// RunID 从 ctx 读取 run id；不存在时返回空串。
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
