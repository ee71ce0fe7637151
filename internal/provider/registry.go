package provider

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/deckprice/internal/domain"
)

// Registry 是适配器的只读注册表（按 VendorID 索引）。
type Registry struct {
	byID map[domain.VendorID]Adapter
}

func NewRegistry(adapters ...Adapter) (Registry, error) {
	byID := make(map[domain.VendorID]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return Registry{}, fmt.Errorf("adapter 不能为空")
		}
		id := normID(string(a.ID()))
		if id == "" {
			return Registry{}, fmt.Errorf("adapter.ID 不能为空")
		}
		if _, ok := byID[id]; ok {
			return Registry{}, fmt.Errorf("重复的 adapter：%q", id)
		}
		byID[id] = a
	}
	return Registry{byID: byID}, nil
}

func (r Registry) Get(id string) (Adapter, bool) {
	if r.byID == nil {
		return nil, false
	}
	a, ok := r.byID[normID(id)]
	return a, ok
}

// Marketplace 返回唯一的主市场适配器。
func (r Registry) Marketplace() (Adapter, error) {
	var found Adapter
	for _, a := range r.byID {
		if a.Kind() != KindMarketplace {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("注册了多个主市场 adapter：%q 与 %q", found.ID(), a.ID())
		}
		found = a
	}
	if found == nil {
		return nil, fmt.Errorf("未注册主市场 adapter")
	}
	return found, nil
}

// Proxy 按 id 返回代理店适配器；id 不存在或不是代理店时报错。
func (r Registry) Proxy(id string) (Adapter, error) {
	a, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("未知代理店：%q", id)
	}
	if a.Kind() != KindProxyShop {
		return nil, fmt.Errorf("%q 不是代理店", id)
	}
	return a, nil
}

// IsProxyShop 判断某个来源是否为已注册的代理店。
func (r Registry) IsProxyShop(id domain.VendorID) bool {
	a, ok := r.Get(string(id))
	return ok && a.Kind() == KindProxyShop
}

func normID(s string) domain.VendorID {
	return domain.VendorID(strings.ToLower(strings.TrimSpace(s)))
}
