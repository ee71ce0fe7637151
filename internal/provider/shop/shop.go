package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/provider"
)

// Shop 描述一个 WooCommerce 代理店的差异点。
type Shop struct {
	ID             domain.VendorID
	Title          string
	DefaultBaseURL string
	// ProductOnly 为 true 时搜索带 post_type=product（只搜商品，不搜文章）。
	ProductOnly bool
	// Categories 非空时价格不取页面金额，而是按分类标签查表（取最便宜的分类）。
	Categories map[string]decimal.Decimal
}

var shops = []Shop{ //nolint:gochecknoglobals
	{
		ID:             domain.VendorBootlegMage,
		Title:          "Bootleg Mage",
		DefaultBaseURL: "https://bootlegmage.com",
	},
	{
		ID:             domain.VendorACardGameShop,
		Title:          "A Card Game Shop",
		DefaultBaseURL: "https://www.acardgameshop.com",
		ProductOnly:    true,
		Categories: map[string]decimal.Decimal{
			"metal cards":       decimal.RequireFromString("10.00"),
			"normal cards":      decimal.RequireFromString("2.20"),
			"hologram cards":    decimal.RequireFromString("3.00"),
			"foil cards":        decimal.RequireFromString("4.00"),
			"etched foil cards": decimal.RequireFromString("4.00"),
		},
	},
	{
		ID:             domain.VendorMagicCardPlus,
		Title:          "Magic Card Plus",
		DefaultBaseURL: "https://magic-cardplus.com",
		ProductOnly:    true,
	},
}

// IDs 返回所有可选代理店的 id（用于配置校验与帮助信息）。
func IDs() []string {
	return lo.Map(shops, func(s Shop, _ int) string { return string(s.ID) })
}

// Lookup 按 id 查找店铺描述。
func Lookup(id string) (Shop, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	return lo.Find(shops, func(s Shop) bool { return string(s.ID) == id })
}

// Adapter 在某个代理店上按牌名搜索，返回匹配商品中的最低价。
type Adapter struct {
	Shop Shop
	// BaseURL 为空时使用 Shop.DefaultBaseURL。
	BaseURL string

	Client *resty.Client
	Log    *slog.Logger
}

// New 按店铺 id 构造适配器；baseURL 为空时使用店铺默认域名。
func New(id, baseURL string, c *resty.Client, log *slog.Logger) (Adapter, error) {
	s, ok := Lookup(id)
	if !ok {
		return Adapter{}, fmt.Errorf("未知代理店：%q（可选：%s）", id, strings.Join(IDs(), ", "))
	}
	return Adapter{Shop: s, BaseURL: baseURL, Client: c, Log: log}, nil
}

func (a Adapter) ID() domain.VendorID { return a.Shop.ID }
func (a Adapter) Kind() provider.Kind { return provider.KindProxyShop }

func (a Adapter) Lookup(ctx context.Context, name string) domain.Offer {
	id := a.ID()
	b, err := provider.Fetch(ctx, a.Client, a.SearchURL(name))
	if err != nil {
		return provider.Unresolved(ctx, a.Log, id, name, &provider.Error{Vendor: string(id), Stage: "fetch", Err: err})
	}
	ls, err := parseListings(b)
	if err != nil {
		return provider.Unresolved(ctx, a.Log, id, name, &provider.Error{Vendor: string(id), Stage: "parse", Err: err})
	}
	href, price, err := a.pick(ls, name)
	if err != nil {
		return provider.Unresolved(ctx, a.Log, id, name, &provider.Error{Vendor: string(id), Stage: "match", Err: err})
	}
	return domain.NewOffer(id, href, price)
}

// SearchURL 返回店铺搜索页 URL。
func (a Adapter) SearchURL(name string) string {
	base := strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if base == "" {
		base = a.Shop.DefaultBaseURL
	}
	u := base + "/?s=" + url.QueryEscape(QueryFilter(name))
	if a.Shop.ProductOnly {
		u += "&post_type=product"
	}
	return u
}

// pick 在匹配的商品中选出最低价；价格相同保留页面上靠前的商品。
func (a Adapter) pick(ls []listing, name string) (string, decimal.Decimal, error) {
	if len(ls) == 0 {
		return "", decimal.Decimal{}, errors.New("搜索结果为空")
	}

	type candidate struct {
		href  string
		price decimal.Decimal
	}
	var cands []candidate
	for _, l := range ls {
		if !Matches(name, l.Title) {
			continue
		}
		p, ok := a.priceOf(l)
		if !ok {
			continue
		}
		cands = append(cands, candidate{href: l.Href, price: p})
	}
	if len(cands) == 0 {
		return "", decimal.Decimal{}, fmt.Errorf("没有匹配且带价格的商品（共 %d 个结果）", len(ls))
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].price.LessThan(cands[j].price) })
	return cands[0].href, cands[0].price, nil
}

func (a Adapter) priceOf(l listing) (decimal.Decimal, bool) {
	amounts := l.Amounts
	if len(a.Shop.Categories) > 0 {
		amounts = lo.FilterMap(l.Categories, func(c string, _ int) (decimal.Decimal, bool) {
			p, ok := a.Shop.Categories[c]
			return p, ok
		})
	}
	if len(amounts) == 0 {
		return decimal.Decimal{}, false
	}
	return lo.MinBy(amounts, func(x, cur decimal.Decimal) bool { return x.LessThan(cur) }), true
}
