package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorID 标识一个外部价格来源（小写、稳定，可直接写入缓存与 report）。
type VendorID string

const (
	VendorTCGPlayer     VendorID = "tcgplayer"
	VendorBootlegMage   VendorID = "bootlegmage"
	VendorACardGameShop VendorID = "acardgameshop"
	VendorMagicCardPlus VendorID = "magiccardplus"
)

// CardRequest 对应牌表中的一行：数量 + 牌名（牌名保持解析时的原样）。
type CardRequest struct {
	Name     string
	Quantity int
}

// Offer 是某个来源对一张牌给出的报价。
//
// 约束：
// - Price.Valid=false 表示“该来源未找到匹配”（UNK），不是 0 元
// - 未解析的 Offer 的 URL 必须为空
type Offer struct {
	Source VendorID
	URL    string
	Price  decimal.NullDecimal
}

// Unresolved 构造来源 src 的“未找到”报价。
func Unresolved(src VendorID) Offer {
	return Offer{Source: src}
}

// NewOffer 构造一个报价；非正价格一律视为未找到。
func NewOffer(src VendorID, url string, price decimal.Decimal) Offer {
	if !price.IsPositive() {
		return Unresolved(src)
	}
	return Offer{
		Source: src,
		URL:    url,
		Price:  decimal.NewNullDecimal(price),
	}
}

func (o Offer) Resolved() bool { return o.Price.Valid }

// BestOffer 选出价格最低的报价。
//
// offers 的顺序就是优先级：价格相同时保留更靠前的报价，
// 因此调用方必须把主市场放在第一位（代理店只有严格更低时才胜出）。
// 全部未解析时返回第一个来源的未解析报价。
func BestOffer(offers ...Offer) Offer {
	if len(offers) == 0 {
		return Offer{}
	}
	best := -1
	for i, o := range offers {
		if !o.Resolved() {
			continue
		}
		if best < 0 || o.Price.Decimal.LessThan(offers[best].Price.Decimal) {
			best = i
		}
	}
	if best < 0 {
		return Unresolved(offers[0].Source)
	}
	return offers[best]
}

// ResolvedCard 是一张牌（唯一牌名）的解析结果，也是缓存的单位。
type ResolvedCard struct {
	Name       string
	Best       Offer
	Offers     []Offer
	ResolvedAt time.Time
}
