package provider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/logx"
)

// Fetch 发起一次 GET 并返回 body；非 2xx 返回 *HTTPStatusError。
func Fetch(ctx context.Context, c *resty.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	res, err := c.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, &HTTPStatusError{URL: u, StatusCode: res.StatusCode()}
	}
	return res.Body(), nil
}

// Unresolved 记录失败原因并返回未解析报价。适配器在边界处统一用它把错误降级为 UNK。
func Unresolved(ctx context.Context, log *slog.Logger, id domain.VendorID, name string, err error) domain.Offer {
	if err != nil {
		logx.OrDiscard(log).WarnContext(ctx, "价格查询未命中",
			slog.String(logx.FieldVendor, string(id)),
			slog.String(logx.FieldCard, name),
			logx.Error(err),
		)
	}
	return domain.Unresolved(id)
}
