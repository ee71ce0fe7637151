package provider

import "fmt"

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Error 是供应商阶段的可追溯错误（只用于日志，永不越过 Adapter 边界）。
type Error struct {
	Vendor string
	Stage  string // "fetch" / "parse" / "match"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vendor=%s stage=%s: %v", e.Vendor, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
