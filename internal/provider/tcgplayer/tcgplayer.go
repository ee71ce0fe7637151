package tcgplayer

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/provider"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	DefaultScryfallBaseURL = "https://api.scryfall.com"
	DefaultSearchBaseURL   = "https://www.tcgplayer.com/search/magic/product"
)

// Adapter 是主市场：价格取自 Scryfall 的 prices.usd（TCGplayer 市场价），
// 链接指向 TCGplayer 的商品搜索页。
type Adapter struct {
	// ScryfallBaseURL 为空时使用 DefaultScryfallBaseURL。
	ScryfallBaseURL string
	// SearchBaseURL 为空时使用 DefaultSearchBaseURL。
	SearchBaseURL string

	Client *resty.Client
	Log    *slog.Logger
}

func (Adapter) ID() domain.VendorID { return domain.VendorTCGPlayer }
func (Adapter) Kind() provider.Kind { return provider.KindMarketplace }

type card struct {
	Name   string `json:"name"`
	Prices struct {
		USD *string `json:"usd"`
	} `json:"prices"`
}

// Lookup 查询 Scryfall 模糊匹配的牌价。非 200、usd 为 null/空/非法/非正数时返回未解析。
func (a Adapter) Lookup(ctx context.Context, name string) domain.Offer {
	id := a.ID()
	b, err := provider.Fetch(ctx, a.Client, a.namedURL(name))
	if err != nil {
		return provider.Unresolved(ctx, a.Log, id, name, &provider.Error{Vendor: string(id), Stage: "fetch", Err: err})
	}
	price, err := parsePrice(b)
	if err != nil {
		return provider.Unresolved(ctx, a.Log, id, name, &provider.Error{Vendor: string(id), Stage: "parse", Err: err})
	}
	return domain.NewOffer(id, a.SearchURL(name), price)
}

func (a Adapter) namedURL(name string) string {
	base := strings.TrimRight(strings.TrimSpace(a.ScryfallBaseURL), "/")
	if base == "" {
		base = DefaultScryfallBaseURL
	}
	return base + "/cards/named?fuzzy=" + url.QueryEscape(name)
}

// SearchURL 返回 TCGplayer 的商品搜索链接（direct=true 时单一结果会直接跳到商品页）。
func (a Adapter) SearchURL(name string) string {
	base := strings.TrimRight(strings.TrimSpace(a.SearchBaseURL), "/")
	if base == "" {
		base = DefaultSearchBaseURL
	}
	return base + "?productLineName=magic&q=" + url.QueryEscape(name) + "&view=grid&direct=true"
}

func parsePrice(b []byte) (decimal.Decimal, error) {
	var c card
	if err := json.Unmarshal(b, &c); err != nil {
		return decimal.Decimal{}, err
	}
	if c.Prices.USD == nil {
		return decimal.Decimal{}, errors.New("prices.usd 为 null")
	}
	s := strings.TrimSpace(*c.Prices.USD)
	if s == "" {
		return decimal.Decimal{}, errors.New("prices.usd 为空")
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !p.IsPositive() {
		return decimal.Decimal{}, errors.New("prices.usd 不是正数")
	}
	return p, nil
}
