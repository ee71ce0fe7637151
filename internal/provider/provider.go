package provider

import (
	"context"

	"github.com/John-Robertt/deckprice/internal/domain"
)

// Kind 区分主市场与代理店：tie-break 优先级与 mass import 排除规则都依赖它。
type Kind int

const (
	KindMarketplace Kind = iota + 1
	KindProxyShop
)

func (k Kind) String() string {
	switch k {
	case KindMarketplace:
		return "marketplace"
	case KindProxyShop:
		return "proxy_shop"
	default:
		return "unknown"
	}
}

// Adapter 把“站点变化”限制在各自的包内部；Resolver 只依赖统一接口与 domain.Offer。
//
// 约束：
// - Lookup 永不返回错误：传输失败/非 2xx/解析失败一律返回 domain.Unresolved(ID())，并记录日志
// - name 已经是规范化后的牌名（去掉 " // ..." 后缀）
// - 不做缓存、不做重试（缓存由 Resolver 统一实现，重试按产品约束不做）
// - 每次 Lookup 最多发起一次 HTTP GET
type Adapter interface {
	ID() domain.VendorID
	Kind() Kind
	Lookup(ctx context.Context, name string) domain.Offer
}
