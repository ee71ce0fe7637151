package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/xid"

	"github.com/John-Robertt/deckprice/internal/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

type requestIDKey struct{}

// NewResty 在给定 http.Client 之上构造 resty client，并挂上 debug 级别的请求日志。
//
// 约束：resty 自身的重试保持关闭（RetryCount=0），与 Transport 的“不重试”一致。
func NewResty(c *http.Client, log *slog.Logger) *resty.Client {
	log = logx.OrDiscard(log)

	rc := resty.NewWithClient(c)
	rc.SetRetryCount(0)
	rc.JSONMarshal = json.Marshal
	rc.JSONUnmarshal = json.Unmarshal

	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		// resty 会在 header 为空时填入自己的默认 UA，因此在这里先从 UA 池取一个。
		if req.Header.Get("User-Agent") == "" {
			req.SetHeader("User-Agent", RandomUserAgent())
		}
		id := xid.New().String()
		req.SetContext(withRequestID(req.Context(), id))
		log.DebugContext(req.Context(), "http request",
			slog.String(logx.FieldRequestID, id),
			slog.String(logx.FieldURL, req.URL),
		)
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		ctx := res.Request.Context()
		log.DebugContext(ctx, "http response",
			slog.String(logx.FieldRequestID, requestID(ctx)),
			slog.String(logx.FieldURL, res.Request.URL),
			slog.Int(logx.FieldStatus, res.StatusCode()),
			slog.Int64(logx.FieldDurationMs, res.Time().Milliseconds()),
		)
		return nil
	})
	rc.OnError(func(req *resty.Request, err error) {
		log.DebugContext(req.Context(), "http error",
			slog.String(logx.FieldRequestID, requestID(req.Context())),
			slog.String(logx.FieldURL, req.URL),
			logx.Error(err),
		)
	})
	return rc
}
